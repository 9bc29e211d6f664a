// Package schema defines the closed set of indexed fields, their tokenizer
// and storage options, and the document shape read from a segment.
package schema

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
)

// TokenizerKind names one of the analyzers implemented by internal/tokenizer.
type TokenizerKind string

const (
	TokenizerNone     TokenizerKind = ""
	TokenizerDefault  TokenizerKind = "default"
	TokenizerStemmed  TokenizerKind = "stemmed"
	TokenizerBigram   TokenizerKind = "bigram"
	TokenizerTrigram  TokenizerKind = "trigram"
	TokenizerURL      TokenizerKind = "url"
	TokenizerNewline  TokenizerKind = "newline"
	TokenizerWord     TokenizerKind = "word"
	TokenizerIdentity TokenizerKind = "identity"
)

// FieldName is one of the closed set of schema fields.
type FieldName string

const (
	FieldTitle           FieldName = "title"
	FieldCleanBody       FieldName = "clean_body"
	FieldAllBody         FieldName = "all_body"
	FieldURL             FieldName = "url"
	FieldURLNoTokenizer  FieldName = "url_no_tokenizer"
	FieldSite            FieldName = "site"
	FieldDomain          FieldName = "domain"
	FieldBacklinkText    FieldName = "backlink_text"
	FieldHostID          FieldName = "host_id"
	FieldSiteID          FieldName = "site_id"
	FieldSimhash         FieldName = "simhash"
	FieldHostCentrality  FieldName = "host_centrality"
	FieldFetchTimestamp  FieldName = "fetch_timestamp"
	FieldTitleEmbedding  FieldName = "title_embedding"
	FieldKeywordEmbedding FieldName = "keyword_embedding"

	// Derived field-length columns, populated by the segment builder from
	// the corresponding positional field's token count. They exist purely
	// to feed BM25's length normalization (§4.4) and are never part of a
	// BuilderDoc's own Columns map.
	FieldTitleLen     FieldName = "title_len"
	FieldCleanBodyLen FieldName = "clean_body_len"
	FieldAllBodyLen   FieldName = "all_body_len"
)

// derivedLenFields maps each length column to the positional field whose
// token count it records.
var derivedLenFields = map[FieldName]FieldName{
	FieldTitleLen:     FieldTitle,
	FieldCleanBodyLen: FieldCleanBody,
	FieldAllBodyLen:   FieldAllBody,
}

// DerivedLenFields returns the builder's map of length column to source
// field, for packages that populate or consume these columns.
func DerivedLenFields() map[FieldName]FieldName { return derivedLenFields }

// FieldOptions describes how a field is tokenized, stored, and indexed.
type FieldOptions struct {
	Tokenizer TokenizerKind `json:"tokenizer"`
	Stored    bool          `json:"stored"`
	Positions bool          `json:"positions"`
	Column    bool          `json:"column"`
}

// Schema is the ordered, versioned field descriptor persisted per shard
// (schema.json). Field order is significant: it determines the column
// index assigned to each column field at segment build time.
type Schema struct {
	Version int                        `json:"version"`
	ShardID uint64                     `json:"shard_id"`
	Fields  []FieldName                `json:"fields"`
	Options map[FieldName]FieldOptions `json:"options"`
}

// Default returns the field option matrix from the specification's
// representative table (§4.1).
func Default(shardID uint64) *Schema {
	fields := []FieldName{
		FieldTitle, FieldCleanBody, FieldAllBody, FieldURL, FieldURLNoTokenizer,
		FieldSite, FieldDomain, FieldBacklinkText, FieldHostID, FieldSiteID,
		FieldSimhash, FieldHostCentrality, FieldFetchTimestamp,
		FieldTitleEmbedding, FieldKeywordEmbedding,
		FieldTitleLen, FieldCleanBodyLen, FieldAllBodyLen,
	}
	options := map[FieldName]FieldOptions{
		FieldTitle:            {Tokenizer: TokenizerStemmed, Stored: true, Positions: true},
		FieldCleanBody:        {Tokenizer: TokenizerStemmed, Stored: true, Positions: true},
		FieldAllBody:          {Tokenizer: TokenizerStemmed, Stored: false, Positions: true},
		FieldURL:              {Tokenizer: TokenizerURL, Stored: true, Positions: true},
		FieldURLNoTokenizer:   {Tokenizer: TokenizerIdentity, Stored: false},
		FieldSite:             {Tokenizer: TokenizerIdentity, Stored: false},
		FieldDomain:           {Tokenizer: TokenizerIdentity, Stored: false},
		FieldBacklinkText:     {Tokenizer: TokenizerStemmed, Stored: false, Positions: true},
		FieldHostID:           {Column: true},
		FieldSiteID:           {Column: true},
		FieldSimhash:          {Column: true},
		FieldHostCentrality:   {Column: true},
		FieldFetchTimestamp:   {Column: true},
		FieldTitleEmbedding:   {Column: true},
		FieldKeywordEmbedding: {Column: true},
		FieldTitleLen:         {Column: true},
		FieldCleanBodyLen:     {Column: true},
		FieldAllBodyLen:       {Column: true},
	}
	return &Schema{Version: 1, ShardID: shardID, Fields: fields, Options: options}
}

// FieldOptions returns the options for field, or the zero value and false
// if field is not part of the schema.
func (s *Schema) FieldOptions(field FieldName) (FieldOptions, bool) {
	opts, ok := s.Options[field]
	return opts, ok
}

// ColumnIndex returns the 0-based position of field among the schema's
// declared column fields, in field declaration order.
func (s *Schema) ColumnIndex(field FieldName) (int, bool) {
	idx := 0
	for _, f := range s.Fields {
		opts := s.Options[f]
		if !opts.Column {
			continue
		}
		if f == field {
			return idx, true
		}
		idx++
	}
	return 0, false
}

// Load reads a schema descriptor from JSON bytes.
func Load(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}
	if s.Version == 0 {
		return nil, fmt.Errorf("schema: missing version")
	}
	return &s, nil
}

// Marshal serializes the schema descriptor to JSON.
func (s *Schema) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// NormalizeHost strips a leading "www." and lowercases the host. Public
// suffix stripping beyond that is left to the indexer, which is out of
// scope for the search core.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")
	return host
}

// ShardOf computes the pure function mapping a normalized host to a shard
// id: fnv1a(normalized_host) mod numShards. Hashing the same host always
// yields the same shard, satisfying the shard-purity invariant (§3, §8.1).
func ShardOf(host string, numShards int) uint64 {
	if numShards <= 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(NormalizeHost(host)))
	return h.Sum64() % uint64(numShards)
}
