// Package cache provides read-mostly, TTL-bounded caching of OHLCV frames
// and resolved symbol lists, backed by the "cache" database. Entries are
// msgpack-encoded blobs keyed by an opaque cache key; invalidation is
// time-based only, so entries survive a process restart until they expire.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/portfolio/internal/database"
	"github.com/vmihailenco/msgpack/v5"
)

// table names this package is allowed to touch; kept explicit rather than
// interpolating a caller-supplied string into SQL.
const (
	tableOHLCV   = "ohlcv_frames"
	tableSymbols = "symbol_lists"
)

// Store is the typed cache API over the cache database.
type Store struct {
	db *database.DB
}

// NewStore wraps an already-opened, already-migrated cache database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// StoreOHLCVFrame caches value under key with expiration = now + ttl.
func (s *Store) StoreOHLCVFrame(key string, value interface{}, ttl time.Duration) error {
	return s.store(tableOHLCV, key, value, ttl)
}

// GetOHLCVFrame unmarshals the cached frame into out if present and fresh.
// Returns found=false on miss or expiry; stale entries are not returned.
func (s *Store) GetOHLCVFrame(key string, out interface{}) (bool, error) {
	return s.getIfFresh(tableOHLCV, key, out)
}

// StoreSymbolList caches value (a resolved symbol list) under key.
func (s *Store) StoreSymbolList(key string, value interface{}, ttl time.Duration) error {
	return s.store(tableSymbols, key, value, ttl)
}

// GetSymbolList unmarshals the cached symbol list into out if present and fresh.
func (s *Store) GetSymbolList(key string, out interface{}) (bool, error) {
	return s.getIfFresh(tableSymbols, key, out)
}

func (s *Store) store(table, key string, value interface{}, ttl time.Duration) error {
	blob, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	expiresAt := time.Now().Add(ttl).Unix()

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (cache_key, data, expires_at) VALUES (?, ?, ?)`, table)
	if _, err := s.db.Exec(query, key, blob, expiresAt); err != nil {
		return fmt.Errorf("store cache entry in %s: %w", table, err)
	}
	return nil
}

func (s *Store) getIfFresh(table, key string, out interface{}) (bool, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE cache_key = ? AND expires_at > ?`, table)
	var blob []byte
	err := s.db.QueryRow(query, key, time.Now().Unix()).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get cache entry from %s: %w", table, err)
	}
	if err := msgpack.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return true, nil
}

// DeleteExpired removes stale rows from both cache tables, returning the
// count removed per table.
func (s *Store) DeleteExpired() (map[string]int64, error) {
	results := make(map[string]int64, 2)
	now := time.Now().Unix()
	for _, table := range []string{tableOHLCV, tableSymbols} {
		res, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE expires_at < ?`, table), now)
		if err != nil {
			return results, fmt.Errorf("delete expired from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return results, fmt.Errorf("rows affected for %s: %w", table, err)
		}
		results[table] = n
	}
	return results, nil
}

// OHLCVKey builds the canonical cache key for a (symbol, start, end) query.
func OHLCVKey(symbol, start, end string) string {
	return symbol + ":" + start + ":" + end
}
