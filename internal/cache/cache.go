// Package cache stores provider API responses on disk so repeated plan runs
// can revalidate with conditional requests instead of refetching everything.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one cached response. Link is kept because pagination is parsed
// from it; a replayed page 1 without Link would end the listing early.
type Entry struct {
	Body        []byte    `json:"body"`
	ETag        string    `json:"etag,omitempty"`
	LastMod     string    `json:"last_modified,omitempty"`
	Link        string    `json:"link,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	StatusCode  int       `json:"status_code"`
	CachedAt    time.Time `json:"cached_at"`
}

// Store is a TTL-bounded file cache keyed by request URL.
type Store struct {
	dir string
	ttl time.Duration
}

// New creates a Store rooted at dir.
func New(dir string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &Store{dir: dir, ttl: ttl}, nil
}

// Get returns the entry for key and whether it is still fresh. An expired
// entry is returned with fresh=false so callers can revalidate with
// If-None-Match / If-Modified-Since.
func (s *Store) Get(key string) (*Entry, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		os.Remove(s.path(key))
		return nil, false
	}
	return &entry, time.Since(entry.CachedAt) <= s.ttl
}

// Put stores an entry under key, stamping it with the current time.
func (s *Store) Put(key string, entry *Entry) error {
	entry.CachedAt = time.Now()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	return os.WriteFile(s.path(key), data, 0o644)
}

func (s *Store) path(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(h[:]))
}
