package fingerprint

import (
	"github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"

	"github.com/verimux/verimux/internal/logging"
)

// Cache is a persistent fingerprint store backed by Badger. Decoding a
// stream to raw bytes costs a full ffmpeg pass, so digests are kept
// across runs; entries self-invalidate because keys embed mtime and
// size. A nil *Cache is valid and disables caching.
type Cache struct {
	db *badger.DB
}

// OpenCache opens (or creates) the cache at dir.
func OpenCache(dir string, log zerolog.Logger) (*Cache, error) {
	l := log.With().Str("component", "fingerprint-cache").Logger()

	opts := badger.DefaultOptions(dir).
		WithLogger(&logging.Badger{L: l}).
		WithValueLogFileSize(1<<26 - 1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	if err := db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

// openInMemory creates an ephemeral cache, used by tests.
func openInMemory() (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Get returns the stored digest for key, if present.
func (c *Cache) Get(key string) ([DigestSize]byte, bool) {
	var digest [DigestSize]byte
	if c == nil {
		return digest, false
	}

	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != DigestSize {
				return nil // stale or corrupt entry; treat as miss
			}
			copy(digest[:], val)
			found = true
			return nil
		})
	})
	if err != nil {
		return digest, false
	}
	return digest, found
}

// Put stores the digest for key.
func (c *Cache) Put(key string, digest [DigestSize]byte) error {
	if c == nil {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), digest[:])
	})
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}
