package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for a searcher node.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Node     NodeConfig     `yaml:"node" json:"node"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Cluster  ClusterConfig  `yaml:"cluster" json:"cluster"`
	Ranking  RankingConfig  `yaml:"ranking" json:"ranking"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Webgraph WebgraphConfig `yaml:"webgraph" json:"webgraph"`
}

// NodeConfig identifies this node within the shard topology.
type NodeConfig struct {
	ShardID        int    `yaml:"shard_id" json:"shard_id"`
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	AdvertiseAddr  string `yaml:"advertise_addr" json:"advertise_addr"`
	SearchWorkers  int    `yaml:"search_workers" json:"search_workers"`
	AdmissionLimit int    `yaml:"admission_limit" json:"admission_limit"`
}

// IndexConfig configures where segments live and how aggressively they're
// cached.
type IndexConfig struct {
	// Path is the directory holding this shard's segments.
	Path string `yaml:"path" json:"path"`
	// ColumnCacheEntries bounds each segment's LRU cache of decoded
	// per-document column values.
	ColumnCacheEntries int `yaml:"column_cache_entries" json:"column_cache_entries"`
	// WatchForNewSegments enables fsnotify-based hot reload of the index
	// directory.
	WatchForNewSegments bool `yaml:"watch_for_new_segments" json:"watch_for_new_segments"`
}

// ClusterConfig configures gossip-based membership discovery.
type ClusterConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	ServiceName string   `yaml:"service_name" json:"service_name"`
	GossipBind  string   `yaml:"gossip_bind" json:"gossip_bind"`
	Seeds       []string `yaml:"seeds" json:"seeds"`
}

// RankingConfig points at the ranking pipeline's external resources.
type RankingConfig struct {
	LambdaMARTModelPath   string `yaml:"lambdamart_model_path" json:"lambdamart_model_path"`
	SignalOverridesPath   string `yaml:"signal_overrides_path" json:"signal_overrides_path"`
	CrossEncoderEndpoint  string `yaml:"cross_encoder_endpoint" json:"cross_encoder_endpoint"`
	CrossEncoderBatchSize int    `yaml:"cross_encoder_batch_size" json:"cross_encoder_batch_size"`
	CrossEncoderTimeout   string `yaml:"cross_encoder_timeout" json:"cross_encoder_timeout"`
}

// SearchConfig configures query-time defaults.
type SearchConfig struct {
	MaxResults            int    `yaml:"max_results" json:"max_results"`
	SnippetLength         int    `yaml:"snippet_length" json:"snippet_length"`
	SnippetLengthVariance int    `yaml:"snippet_length_variance" json:"snippet_length_variance"`
	RequestTimeout        string `yaml:"request_timeout" json:"request_timeout"`
	OpticCacheEntries     int    `yaml:"optic_cache_entries" json:"optic_cache_entries"`
	QueryCacheEntries     int    `yaml:"query_cache_entries" json:"query_cache_entries"`
	SimhashHammingThresh  int    `yaml:"simhash_hamming_threshold" json:"simhash_hamming_threshold"`
}

// ServerConfig configures the RPC listener and logging.
type ServerConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level"`
	MetricsPort int    `yaml:"metrics_port" json:"metrics_port"`
}

// WebgraphConfig points at the offline-built webgraph derivatives.
type WebgraphConfig struct {
	HostCentralityPath    string `yaml:"host_centrality_path" json:"host_centrality_path"`
	InboundSimilarityPath string `yaml:"inbound_similarity_path" json:"inbound_similarity_path"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Node: NodeConfig{
			ShardID:        0,
			Host:           "0.0.0.0",
			Port:           7700,
			SearchWorkers:  runtime.NumCPU(),
			AdmissionLimit: 256,
		},
		Index: IndexConfig{
			Path:                 "./data/index",
			ColumnCacheEntries:   4096,
			WatchForNewSegments:  true,
		},
		Cluster: ClusterConfig{
			Enabled:     false,
			ServiceName: "stract-searcher",
			GossipBind:  "0.0.0.0:7946",
		},
		Ranking: RankingConfig{
			CrossEncoderBatchSize: 32,
			CrossEncoderTimeout:   "2s",
		},
		Search: SearchConfig{
			MaxResults:            20,
			SnippetLength:         275,
			SnippetLengthVariance: 50,
			RequestTimeout:        "3s",
			OpticCacheEntries:     128,
			QueryCacheEntries:     1024,
			SimhashHammingThresh:  3,
		},
		Server: ServerConfig{
			LogLevel:    "info",
			MetricsPort: 9090,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/stract/searcher.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/stract/searcher.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stract", "searcher.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "stract", "searcher.yaml")
	}
	return filepath.Join(home, ".config", "stract", "searcher.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration from the specified directory, applying
// configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/stract/searcher.yaml)
//  3. Node config (searcher.yaml in dir)
//  4. Environment variables (STRACT_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from searcher.yaml or
// searcher.yml in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, "searcher.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, "searcher.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Node.Host != "" {
		c.Node.Host = other.Node.Host
	}
	if other.Node.Port != 0 {
		c.Node.Port = other.Node.Port
	}
	if other.Node.AdvertiseAddr != "" {
		c.Node.AdvertiseAddr = other.Node.AdvertiseAddr
	}
	if other.Node.SearchWorkers != 0 {
		c.Node.SearchWorkers = other.Node.SearchWorkers
	}
	if other.Node.AdmissionLimit != 0 {
		c.Node.AdmissionLimit = other.Node.AdmissionLimit
	}
	// ShardID of 0 is a legitimate value, so it is only ever set by
	// whichever layer parsed it last; defaults start at 0 already.
	c.Node.ShardID = other.Node.ShardID

	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}
	if other.Index.ColumnCacheEntries != 0 {
		c.Index.ColumnCacheEntries = other.Index.ColumnCacheEntries
	}

	if other.Cluster.Enabled {
		c.Cluster.Enabled = other.Cluster.Enabled
	}
	if other.Cluster.ServiceName != "" {
		c.Cluster.ServiceName = other.Cluster.ServiceName
	}
	if other.Cluster.GossipBind != "" {
		c.Cluster.GossipBind = other.Cluster.GossipBind
	}
	if len(other.Cluster.Seeds) > 0 {
		c.Cluster.Seeds = other.Cluster.Seeds
	}

	if other.Ranking.LambdaMARTModelPath != "" {
		c.Ranking.LambdaMARTModelPath = other.Ranking.LambdaMARTModelPath
	}
	if other.Ranking.SignalOverridesPath != "" {
		c.Ranking.SignalOverridesPath = other.Ranking.SignalOverridesPath
	}
	if other.Ranking.CrossEncoderEndpoint != "" {
		c.Ranking.CrossEncoderEndpoint = other.Ranking.CrossEncoderEndpoint
	}
	if other.Ranking.CrossEncoderBatchSize != 0 {
		c.Ranking.CrossEncoderBatchSize = other.Ranking.CrossEncoderBatchSize
	}
	if other.Ranking.CrossEncoderTimeout != "" {
		c.Ranking.CrossEncoderTimeout = other.Ranking.CrossEncoderTimeout
	}

	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.SnippetLength != 0 {
		c.Search.SnippetLength = other.Search.SnippetLength
	}
	if other.Search.SnippetLengthVariance != 0 {
		c.Search.SnippetLengthVariance = other.Search.SnippetLengthVariance
	}
	if other.Search.RequestTimeout != "" {
		c.Search.RequestTimeout = other.Search.RequestTimeout
	}
	if other.Search.OpticCacheEntries != 0 {
		c.Search.OpticCacheEntries = other.Search.OpticCacheEntries
	}
	if other.Search.QueryCacheEntries != 0 {
		c.Search.QueryCacheEntries = other.Search.QueryCacheEntries
	}
	if other.Search.SimhashHammingThresh != 0 {
		c.Search.SimhashHammingThresh = other.Search.SimhashHammingThresh
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.MetricsPort != 0 {
		c.Server.MetricsPort = other.Server.MetricsPort
	}

	if other.Webgraph.HostCentralityPath != "" {
		c.Webgraph.HostCentralityPath = other.Webgraph.HostCentralityPath
	}
	if other.Webgraph.InboundSimilarityPath != "" {
		c.Webgraph.InboundSimilarityPath = other.Webgraph.InboundSimilarityPath
	}
}

// applyEnvOverrides applies STRACT_* environment variable overrides, the
// highest-precedence configuration layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STRACT_SHARD_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Node.ShardID = n
		}
	}
	if v := os.Getenv("STRACT_HOST"); v != "" {
		c.Node.Host = v
	}
	if v := os.Getenv("STRACT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Node.Port = n
		}
	}
	if v := os.Getenv("STRACT_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("STRACT_ADMISSION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Node.AdmissionLimit = n
		}
	}
	// STRACT_MAX_CONCURRENT_SEARCHES is the spec's canonical name for the
	// same override; both are accepted so either convention works.
	if v := os.Getenv("STRACT_MAX_CONCURRENT_SEARCHES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Node.AdmissionLimit = n
		}
	}
	if v := os.Getenv("STRACT_GOSSIP_BIND"); v != "" {
		c.Cluster.GossipBind = v
		c.Cluster.Enabled = true
	}
	if v := os.Getenv("STRACT_SEEDS"); v != "" {
		c.Cluster.Seeds = strings.Split(v, ",")
		c.Cluster.Enabled = true
	}
	if v := os.Getenv("STRACT_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("STRACT_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("STRACT_CROSS_ENCODER_ENDPOINT"); v != "" {
		c.Ranking.CrossEncoderEndpoint = v
	}
	if v := os.Getenv("STRACT_LAMBDAMART_MODEL_PATH"); v != "" {
		c.Ranking.LambdaMARTModelPath = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Node.ShardID < 0 {
		return fmt.Errorf("node.shard_id must be non-negative, got %d", c.Node.ShardID)
	}
	if c.Node.Port <= 0 || c.Node.Port > 65535 {
		return fmt.Errorf("node.port must be between 1 and 65535, got %d", c.Node.Port)
	}
	if c.Node.AdmissionLimit <= 0 {
		return fmt.Errorf("node.admission_limit must be positive, got %d", c.Node.AdmissionLimit)
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index.path must not be empty")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.SnippetLength <= 0 {
		return fmt.Errorf("search.snippet_length must be positive, got %d", c.Search.SnippetLength)
	}
	if _, err := time.ParseDuration(c.Search.RequestTimeout); err != nil {
		return fmt.Errorf("search.request_timeout is not a valid duration: %w", err)
	}
	if c.Cluster.Enabled && len(c.Cluster.Seeds) == 0 {
		return fmt.Errorf("cluster.enabled is true but cluster.seeds is empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 1 and 65535, got %d", c.Server.MetricsPort)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
