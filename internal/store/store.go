// Package store persists analysis results and debugging artefacts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/stereotweet/internal/types"
)

// ErrNotCacheable is returned by Put for failed analyses.
var ErrNotCacheable = errors.New("only successful results are cached")

// Entry is one persisted result: {payload, timestamp}.
type Entry struct {
	TweetID  string               `json:"-"`
	Payload  types.AnalysisResult `json:"payload"`
	StoredAt int64                `json:"timestamp"`
}

// StoredTime returns StoredAt as a time.Time.
func (e Entry) StoredTime() time.Time {
	return time.UnixMilli(e.StoredAt)
}

// Options configures a Cache.
type Options struct {
	TTL      time.Duration
	MemoSize int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Cache is the durable, time-boxed result store keyed by post id. Entries
// older than the TTL read as absent; they are superseded by the next Put
// rather than evicted.
type Cache struct {
	db   *sql.DB
	ttl  time.Duration
	now  func() time.Time
	memo *lru.Cache[string, Entry]
}

// Open creates or opens the SQLite cache at dbPath.
func Open(dbPath string, opts Options) (*Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.MemoSize <= 0 {
		opts.MemoSize = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	memo, err := lru.New[string, Entry](opts.MemoSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &Cache{db: db, ttl: opts.TTL, now: opts.Now, memo: memo}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return c, nil
}

// Close closes the database connection
func (c *Cache) Close() error {
	return c.db.Close()
}

// migrate creates the database schema
func (c *Cache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_cache (
		tweet_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_cache_timestamp ON analysis_cache(timestamp);
	`

	_, err := c.db.Exec(schema)
	return err
}

func (c *Cache) fresh(e Entry) bool {
	return c.now().Sub(e.StoredTime()) < c.ttl
}

// Get returns the cached result for id if it is younger than the TTL. The
// database is authoritative, so a Clear or Prune from another process is
// seen immediately; the memo only saves decoding the payload again.
func (c *Cache) Get(ctx context.Context, id string) (types.AnalysisResult, bool, error) {
	var ts int64
	err := c.db.QueryRowContext(ctx,
		`SELECT timestamp FROM analysis_cache WHERE tweet_id = ?`, id,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		c.memo.Remove(id)
		return types.AnalysisResult{}, false, nil
	}
	if err != nil {
		return types.AnalysisResult{}, false, fmt.Errorf("read cache %s: %w", id, err)
	}

	e := Entry{TweetID: id, StoredAt: ts}
	if !c.fresh(e) {
		c.memo.Remove(id)
		return types.AnalysisResult{}, false, nil
	}
	if m, ok := c.memo.Get(id); ok && m.StoredAt == ts {
		return m.Payload, true, nil
	}

	var raw string
	err = c.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_cache WHERE tweet_id = ? AND timestamp = ?`, id, ts,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		// Replaced or deleted between the two reads.
		return types.AnalysisResult{}, false, nil
	}
	if err != nil {
		return types.AnalysisResult{}, false, fmt.Errorf("read cache %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(raw), &e.Payload); err != nil {
		return types.AnalysisResult{}, false, fmt.Errorf("decode cache %s: %w", id, err)
	}
	c.memo.Add(id, e)
	return e.Payload, true, nil
}

// Put stores a successful result under its tweet id, replacing any older
// entry.
func (c *Cache) Put(ctx context.Context, result types.AnalysisResult) error {
	if !result.OK {
		return ErrNotCacheable
	}
	if result.TweetID == "" {
		return errors.New("result has no tweet id")
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	e := Entry{TweetID: result.TweetID, Payload: result, StoredAt: c.now().UnixMilli()}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (tweet_id, payload, timestamp)
		VALUES (?, ?, ?)
		ON CONFLICT(tweet_id) DO UPDATE SET
			payload = excluded.payload,
			timestamp = excluded.timestamp
	`, e.TweetID, string(raw), e.StoredAt)
	if err != nil {
		return fmt.Errorf("write cache %s: %w", e.TweetID, err)
	}
	c.memo.Add(e.TweetID, e)
	return nil
}

// List returns every stored entry, newest first, expired ones included.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT tweet_id, payload, timestamp FROM analysis_cache ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var raw string
		if err := rows.Scan(&e.TweetID, &raw, &e.StoredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode cache %s: %w", e.TweetID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Expired reports whether e is past the TTL.
func (c *Cache) Expired(e Entry) bool {
	return !c.fresh(e)
}

// Prune deletes entries past the TTL. They already read as absent; this only
// reclaims space.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.ttl).UnixMilli()
	res, err := c.db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE timestamp <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	c.memo.Purge()
	return res.RowsAffected()
}

// Clear deletes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM analysis_cache`); err != nil {
		return err
	}
	c.memo.Purge()
	return nil
}
