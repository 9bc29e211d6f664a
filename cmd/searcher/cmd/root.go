// Package cmd provides the CLI for the searcher binary: a single shard
// server that opens an on-disk shard, serves its RPCs, and optionally
// joins the cluster's gossip membership, per spec.md §6.
package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stract-search/searchcore/internal/cluster"
	"github.com/stract-search/searchcore/internal/cluster/gossip"
	"github.com/stract-search/searchcore/internal/config"
	serrors "github.com/stract-search/searchcore/internal/errors"
	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/logging"
	"github.com/stract-search/searchcore/internal/metrics"
	"github.com/stract-search/searchcore/internal/output"
	"github.com/stract-search/searchcore/internal/query"
	"github.com/stract-search/searchcore/internal/schema"
	"github.com/stract-search/searchcore/internal/searcher/distributed/rpc"
	"github.com/stract-search/searchcore/internal/searcher/local"
	"github.com/stract-search/searchcore/internal/webgraph"
	"github.com/stract-search/searchcore/pkg/version"
)

const schemaFileName = "schema.json"

// flags holds the CLI surface of spec.md §6: --index, --shard-id,
// --host, --gossip, --seeds. Unset flags fall through to the
// file/env-layered config, per the precedence file < env < flags.
type flags struct {
	index   string
	shardID int64
	host    string
	gossip  string
	seeds   string
}

// NewRootCmd builds the searcher command.
func NewRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:     "searcher",
		Short:   "Serve one shard's search and retrieve RPCs",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}
	cmd.SetVersionTemplate("searcher version {{.Version}}\n")

	cmd.Flags().StringVar(&f.index, "index", "", "Path to the shard's on-disk segment directory")
	cmd.Flags().Int64Var(&f.shardID, "shard-id", -1, "This node's shard id")
	cmd.Flags().StringVar(&f.host, "host", "", "Address to serve RPCs on, host:port")
	cmd.Flags().StringVar(&f.gossip, "gossip", "", "Gossip bind address, host:port")
	cmd.Flags().StringVar(&f.seeds, "seeds", "", "Comma-separated gossip seed addresses")

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func run(cmd *cobra.Command, f flags) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(".")
	if err != nil {
		return configErr(err)
	}
	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		return configErr(fmt.Errorf("invalid configuration: %w", err))
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:         cfg.Server.LogLevel,
		FilePath:      logging.DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	})
	if err != nil {
		return fatalIOErr(fmt.Errorf("setup logging: %w", err))
	}
	defer cleanup()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sch, err := loadOrWriteSchema(cfg.Index.Path, uint64(cfg.Node.ShardID))
	if err != nil {
		return err
	}

	shard, err := index.OpenShard(cfg.Index.Path, sch, cfg.Index.ColumnCacheEntries, cfg.Index.WatchForNewSegments)
	if err != nil {
		return fatalIOErr(fmt.Errorf("open shard at %s: %w", cfg.Index.Path, err))
	}
	defer shard.Close()

	cache, err := query.NewCache(cfg.Search.QueryCacheEntries)
	if err != nil {
		return fatalIOErr(fmt.Errorf("build query cache: %w", err))
	}

	shardID := index.ShardID(cfg.Node.ShardID)
	searcher := local.NewSearcher(shard, shardID, schema.FieldTitle, cache)

	if cfg.Webgraph.HostCentralityPath != "" {
		centrality, err := webgraph.OpenApproxHostCentrality(cfg.Webgraph.HostCentralityPath)
		if err != nil {
			return fatalIOErr(fmt.Errorf("open host centrality store: %w", err))
		}
		defer centrality.Close()
		searcher.SetCentrality(centrality, nil)
	}

	handler := rpc.NewShardHandler(searcher)

	addr := fmt.Sprintf("%s:%d", cfg.Node.Host, cfg.Node.Port)
	server := rpc.NewServer(addr, handler)

	m := metrics.New("stract_searcher")
	metricsSrv := startMetricsServer(cfg.Server.MetricsPort, m)
	defer metricsSrv.Close()

	var membership *gossip.SerfMembership
	if cfg.Cluster.Enabled {
		membership, err = joinCluster(cfg, shardID, addr)
		if err != nil {
			if err == errStartupTimeout {
				return timeoutErr(fmt.Errorf("join cluster: gossip agent did not see itself as alive within %s", startupJoinTimeout))
			}
			return fatalIOErr(fmt.Errorf("join cluster: %w", err))
		}
		defer membership.Shutdown()
	}

	out.Status("", fmt.Sprintf("serving shard %d on %s", cfg.Node.ShardID, addr))
	slog.Info("searcher starting",
		slog.Int("shard_id", cfg.Node.ShardID),
		slog.String("addr", addr),
		slog.Bool("cluster_enabled", cfg.Cluster.Enabled))

	serveErr := server.ListenAndServe(ctx)
	if membership != nil {
		_ = membership.Leave()
	}
	// ctx.Err() is non-nil only once shutdown was requested (signal or a
	// cancelled parent context); any other error is a genuine failure.
	if serveErr != nil && ctx.Err() == nil {
		return fatalIOErr(fmt.Errorf("rpc server: %w", serveErr))
	}

	slog.Info("searcher stopped")
	return nil
}

// applyFlags overrides cfg with any flags the caller explicitly set,
// completing the file < env < flags precedence.
func applyFlags(cfg *config.Config, f flags) {
	if f.index != "" {
		cfg.Index.Path = f.index
	}
	if f.shardID >= 0 {
		cfg.Node.ShardID = int(f.shardID)
	}
	if f.host != "" {
		if host, port, err := net.SplitHostPort(f.host); err == nil {
			cfg.Node.Host = host
			if n, err := strconv.Atoi(port); err == nil {
				cfg.Node.Port = n
			}
		}
	}
	if f.gossip != "" {
		cfg.Cluster.GossipBind = f.gossip
		cfg.Cluster.Enabled = true
	}
	if f.seeds != "" {
		cfg.Cluster.Seeds = strings.Split(f.seeds, ",")
		cfg.Cluster.Enabled = true
	}
}

// loadOrWriteSchema reads the shard's persisted schema descriptor. If
// none exists yet, it writes the default schema for shardID so
// self-identification survives restarts, per spec.md §6.
func loadOrWriteSchema(indexPath string, shardID uint64) (*schema.Schema, error) {
	path := filepath.Join(indexPath, schemaFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		sch := schema.Default(shardID)
		if err := os.MkdirAll(indexPath, 0o755); err != nil {
			return nil, fatalIOErr(fmt.Errorf("create index directory %s: %w", indexPath, err))
		}
		out, err := sch.Marshal()
		if err != nil {
			return nil, configErr(fmt.Errorf("marshal default schema: %w", err))
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return nil, fatalIOErr(fmt.Errorf("write schema descriptor %s: %w", path, err))
		}
		return sch, nil
	}
	if err != nil {
		return nil, fatalIOErr(fmt.Errorf("read schema descriptor %s: %w", path, err))
	}

	sch, err := schema.Load(data)
	if err != nil {
		return nil, configErr(serrors.Wrap(serrors.ErrCodeSchemaMismatch, err))
	}
	if sch.ShardID != shardID {
		return nil, configErr(serrors.SchemaMismatch("shard_id", fmt.Errorf("descriptor has shard_id %d, configured %d", sch.ShardID, shardID)))
	}
	return sch, nil
}

func startMetricsServer(port int, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	return srv
}

const startupJoinTimeout = 10 * time.Second

var errStartupTimeout = fmt.Errorf("gossip agent did not converge in time")

// joinCluster starts the gossip agent, publishes this node as a
// Searcher service at rpcAddr, and joins the configured seeds. It
// waits up to startupJoinTimeout for the agent to see itself as alive
// before returning, surfacing the spec's dedicated startup-timeout
// exit code if that deadline is missed.
func joinCluster(cfg *config.Config, shardID index.ShardID, rpcAddr string) (*gossip.SerfMembership, error) {
	svc := cluster.Service{Kind: cluster.ServiceSearcher, Host: rpcAddr, ShardID: shardID}
	nodeID := fmt.Sprintf("%s-shard-%d", cfg.Cluster.ServiceName, shardID)

	m, err := gossip.New(nodeID, cfg.Cluster.GossipBind, svc)
	if err != nil {
		return nil, err
	}
	if err := m.Join(cfg.Cluster.Seeds); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(startupJoinTimeout)
	for time.Now().Before(deadline) {
		for _, member := range m.Members() {
			if member.ID == nodeID {
				return m, nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	_ = m.Shutdown()
	return nil, errStartupTimeout
}
