// Package cache memoizes expensive CLI calls (winget list, winget upgrade)
// in memory, optionally mirrored to disk as JSON files with TTL expiry.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/updrift/updrift/internal/sanitize"
)

// defaultSize bounds the in-memory store. Far larger than the handful of
// winget transcripts a run produces, but keeps memory bounded regardless.
const defaultSize = 128

// Entry is one cached computation. An entry is valid iff
// now - Timestamp < TTLSeconds; invalid entries are treated as absent.
type Entry struct {
	Key             string    `json:"key"`
	Timestamp       time.Time `json:"timestamp"`
	TTLSeconds      float64   `json:"ttlSeconds"`
	Data            []string  `json:"data"`
	DurationSeconds float64   `json:"durationSeconds"`
}

func (e Entry) valid(now time.Time) bool {
	return now.Sub(e.Timestamp).Seconds() < e.TTLSeconds
}

// Cache is safe for use from the parallel section pool. Disk persistence is
// enabled by passing a non-empty directory to New.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, Entry]
	dir     string
	clock   func() time.Time
	log     zerolog.Logger
}

// New creates a Cache. If dir is non-empty, entries persist as JSON files
// there; valid entries are preloaded into memory and expired files are
// deleted eagerly rather than left for lazy cleanup.
func New(dir string, log zerolog.Logger) (*Cache, error) {
	entries, err := lru.New[string, Entry](defaultSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache store: %w", err)
	}

	c := &Cache{
		entries: entries,
		dir:     dir,
		clock:   time.Now,
		log:     log,
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		c.preload()
	}

	return c, nil
}

// GetOrCompute returns the cached data for key if a valid entry exists and
// force is false; otherwise it invokes compute and stores the result with
// the given ttl. Errors from compute propagate to the caller and are never
// cached, so a failed computation cannot poison future lookups.
func (c *Cache) GetOrCompute(key string, ttl time.Duration, force bool, compute func() ([]string, error)) ([]string, error) {
	key = sanitize.FileName(key)
	now := c.clock()

	if !force {
		c.mu.Lock()
		entry, ok := c.entries.Get(key)
		if ok && entry.valid(now) {
			c.mu.Unlock()
			c.log.Debug().Str("key", key).Msg("cache hit")
			return append([]string{}, entry.Data...), nil
		}
		if ok {
			// Lazy eviction of the expired entry.
			c.entries.Remove(key)
		}
		c.mu.Unlock()
	}

	computeStart := c.clock()
	data, err := compute()
	if err != nil {
		return nil, err
	}

	entry := Entry{
		Key:             key,
		Timestamp:       c.clock(),
		TTLSeconds:      ttl.Seconds(),
		Data:            data,
		DurationSeconds: c.clock().Sub(computeStart).Seconds(),
	}

	c.mu.Lock()
	c.entries.Add(key, entry)
	c.mu.Unlock()

	if c.dir != "" {
		if err := c.persist(entry); err != nil {
			c.log.Warn().Str("key", key).Err(err).Msg("failed to persist cache entry")
		}
	}

	return append([]string{}, data...), nil
}

// Invalidate removes the entry for key from memory and disk.
func (c *Cache) Invalidate(key string) {
	key = sanitize.FileName(key)

	c.mu.Lock()
	c.entries.Remove(key)
	c.mu.Unlock()

	c.removeFile(key)
}

// InvalidatePrefix removes every entry whose key starts with prefix, e.g.
// all "winget-" entries after a source update changed package state.
func (c *Cache) InvalidatePrefix(prefix string) {
	prefix = sanitize.FileName(prefix)

	c.mu.Lock()
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Remove(key)
		}
	}
	c.mu.Unlock()

	if c.dir == "" {
		return
	}
	files, err := filepath.Glob(filepath.Join(c.dir, prefix+"*.json"))
	if err != nil {
		return
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			c.log.Warn().Str("file", f).Err(err).Msg("failed to remove cache file")
		}
	}
}

// InvalidateAll clears the whole cache, memory and disk.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries.Purge()
	c.mu.Unlock()

	if c.dir == "" {
		return
	}
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			c.log.Warn().Str("file", f).Err(err).Msg("failed to remove cache file")
		}
	}
}

// Len returns the number of in-memory entries, valid or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// persist writes the entry as JSON via atomic replace-on-write.
func (c *Cache) persist(entry Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	path := c.filePath(entry.Key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// preload loads valid on-disk entries into memory and deletes expired ones.
func (c *Cache) preload() {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return
	}

	now := c.clock()
	loaded := 0
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Key == "" {
			c.log.Debug().Str("file", f).Msg("ignoring malformed cache file")
			continue
		}
		if !entry.valid(now) {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				c.log.Warn().Str("file", f).Err(err).Msg("failed to delete expired cache file")
			}
			continue
		}
		c.entries.Add(entry.Key, entry)
		loaded++
	}

	if loaded > 0 {
		c.log.Debug().Int("entries", loaded).Msg("preloaded disk cache")
	}
}

func (c *Cache) removeFile(key string) {
	if c.dir == "" {
		return
	}
	if err := os.Remove(c.filePath(key)); err != nil && !os.IsNotExist(err) {
		c.log.Warn().Str("key", key).Err(err).Msg("failed to remove cache file")
	}
}

func (c *Cache) filePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}
