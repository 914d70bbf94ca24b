package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/it-spirit/spiritsearch/schema"
)

// Store is the durable cache layer over database/sql. It survives redis
// restarts; hits here repopulate redis.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS cached_queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query_hash TEXT NOT NULL UNIQUE,
	query TEXT NOT NULL,
	filters TEXT,
	result_limit INTEGER,
	embedding INTEGER,
	raw_results TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cached_formats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query_hash TEXT NOT NULL,
	format_type TEXT NOT NULL,
	content TEXT NOT NULL,
	sources TEXT,
	meta TEXT,
	created_at INTEGER NOT NULL,
	UNIQUE(query_hash, format_type)
);
`

// NewStore prepares the durable cache tables on an open database handle.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(storeSchema); err != nil {
		return nil, fmt.Errorf("cache: init store: %w", err)
	}
	return &Store{db: db}, nil
}

// RawEntry is a durable raw-results row.
type RawEntry struct {
	Query        string
	Filters      schema.Filters
	Limit        int
	UseEmbedding bool
	Results      []schema.Result
}

// GetRaw loads raw results for a key, honoring maxAge. A stale row counts as
// a miss.
func (s *Store) GetRaw(ctx context.Context, key string, maxAge time.Duration) ([]schema.Result, bool, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT raw_results FROM cached_queries WHERE query_hash = ? AND created_at >= ?`,
		key, cutoff).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: store raw lookup: %w", err)
	}
	var results []schema.Result
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false, fmt.Errorf("cache: decode stored raw results: %w", err)
	}
	return results, true, nil
}

// PutRaw upserts a raw-results row.
func (s *Store) PutRaw(ctx context.Context, key string, entry RawEntry) error {
	filters, err := json.Marshal(entry.Filters)
	if err != nil {
		return fmt.Errorf("cache: encode filters: %w", err)
	}
	raw, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("cache: encode raw results: %w", err)
	}
	embedding := 0
	if entry.UseEmbedding {
		embedding = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cached_queries (query_hash, query, filters, result_limit, embedding, raw_results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_hash) DO UPDATE SET
			query = excluded.query,
			filters = excluded.filters,
			result_limit = excluded.result_limit,
			embedding = excluded.embedding,
			raw_results = excluded.raw_results,
			created_at = excluded.created_at`,
		key, entry.Query, string(filters), entry.Limit, embedding, string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: store raw write: %w", err)
	}
	return nil
}

// GetFormat loads a rendered response for (key, format), honoring maxAge.
func (s *Store) GetFormat(ctx context.Context, key, format string, maxAge time.Duration) (*schema.FormattedEntry, bool, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	var content, sources string
	var meta sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT content, sources, meta FROM cached_formats WHERE query_hash = ? AND format_type = ? AND created_at >= ?`,
		key, format, cutoff).Scan(&content, &sources, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: store format lookup: %w", err)
	}
	entry := &schema.FormattedEntry{Sources: sources}
	if err := json.Unmarshal([]byte(content), &entry.Content); err != nil {
		return nil, false, fmt.Errorf("cache: decode stored content: %w", err)
	}
	if meta.Valid && meta.String != "" {
		var m schema.ResponseMeta
		if err := json.Unmarshal([]byte(meta.String), &m); err == nil {
			entry.Meta = &m
		}
	}
	return entry, true, nil
}

// PutFormat upserts a rendered response for (key, format).
func (s *Store) PutFormat(ctx context.Context, key, format string, entry *schema.FormattedEntry) error {
	content, err := json.Marshal(entry.Content)
	if err != nil {
		return fmt.Errorf("cache: encode content: %w", err)
	}
	var meta []byte
	if entry.Meta != nil {
		meta, err = json.Marshal(entry.Meta)
		if err != nil {
			return fmt.Errorf("cache: encode meta: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cached_formats (query_hash, format_type, content, sources, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_hash, format_type) DO UPDATE SET
			content = excluded.content,
			sources = excluded.sources,
			meta = excluded.meta,
			created_at = excluded.created_at`,
		key, format, string(content), entry.Sources, string(meta), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: store format write: %w", err)
	}
	return nil
}
