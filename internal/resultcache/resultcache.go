// Package resultcache implements a content-addressed result cache:
// Get/Put by fingerprint, age-based trimming, and hit/miss stats. Writes
// are atomic-rename so concurrent readers never observe a torn write.
package resultcache

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/renameio"
	"github.com/nodegraph/nbuild/internal/hashing"
	"golang.org/x/xerrors"
)

// Key is a content fingerprint combining a node's command fingerprint,
// inputs, and relevant environment. It must be stable across machines,
// which Hash64's xxhash contract already guarantees.
type Key uint64

// KeyFor derives a Key from its constituent parts in a fixed order, so two
// callers that assemble the same logical fingerprint always get the same
// Key regardless of argument order at the call site.
func KeyFor(commandFingerprint uint64, inputs [][]byte, env []byte) Key {
	acc := hashing.NewAccumulator()
	acc.AddUint64(commandFingerprint)
	for _, in := range inputs {
		acc.Add(in)
	}
	acc.Add(env)
	return Key(acc.Sum64())
}

// Stats reports cumulative hit/miss/store counts.
type Stats struct {
	Hits   uint64
	Misses uint64
	Stores uint64
}

// Cache is a directory-backed content-addressed cache. It is safe for
// concurrent use within one process and safe to be read by concurrent
// processes: every write goes through renameio so a reader only ever
// sees a complete file or none at all.
type Cache struct {
	dir string

	hits, misses, stores uint64
}

// Open returns a Cache rooted at dir, creating it if necessary.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Errorf("resultcache: open %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(k Key) string {
	// Two levels of fan-out (first byte, second byte) keep any one
	// directory from accumulating too many entries, the same sharding
	// scheme content-addressed stores commonly use.
	hex := keyHex(k)
	return filepath.Join(c.dir, hex[:2], hex[2:4], hex)
}

func keyHex(k Key) string {
	const digits = "0123456789abcdef"
	var b [16]byte
	v := uint64(k)
	for i := 15; i >= 0; i-- {
		b[i] = digits[v&0xf]
		v >>= 4
	}
	return string(b[:])
}

// Get returns the cached bytes for k, or (nil, false) on a miss.
func (c *Cache) Get(k Key) ([]byte, bool) {
	data, err := os.ReadFile(c.path(k))
	if err != nil {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	return data, true
}

// Put stores data under k, atomically. A concurrent Put for the same key
// from another process is safe: the loser's rename simply replaces the
// winner's with byte-identical content (cache entries are pure functions
// of their key).
func (c *Cache) Put(k Key, data []byte) error {
	p := c.path(k)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return xerrors.Errorf("resultcache: put %s: %w", p, err)
	}
	if err := renameio.WriteFile(p, data, 0o644); err != nil {
		return xerrors.Errorf("resultcache: put %s: %w", p, err)
	}
	atomic.AddUint64(&c.stores, 1)
	return nil
}

// Stats returns the cache's cumulative counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadUint64(&c.hits),
		Misses: atomic.LoadUint64(&c.misses),
		Stores: atomic.LoadUint64(&c.stores),
	}
}

// Trim deletes entries older than maxAge, as either a periodic background
// task or an explicit on-demand "cache_trim" operation.
func (c *Cache) Trim(maxAge time.Duration) (removed int, err error) {
	cutoff := time.Now().Add(-maxAge)
	err = filepath.Walk(c.dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}
