// Package cache provides a best-effort read-through cache for denormalized
// equipment views. A failing or absent backend never fails a write path;
// callers degrade to direct reads.
package cache

import (
	"encoding/json"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/dgraph-io/badger/v4"
)

// Service wraps a badger store. When the store cannot be opened the service
// stays disabled and every operation becomes a no-op.
type Service struct {
	db      *badger.DB
	ttl     time.Duration
	logger  cmtlog.Logger
	enabled bool
}

// Open opens (or creates) the badger store at path. An open failure is
// logged and yields a disabled service, never an error.
func Open(path string, ttl time.Duration, logger cmtlog.Logger) *Service {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		logger.Error("Cache backend unavailable, continuing without cache", "err", err)
		return &Service{ttl: ttl, logger: logger}
	}
	return &Service{db: db, ttl: ttl, logger: logger, enabled: true}
}

// Enabled reports whether a backend is attached.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Get unmarshals the cached value for key into dest. Returns false on miss,
// expiry, backend failure, or decode failure.
func (s *Service) Get(key string, dest interface{}) bool {
	if !s.enabled {
		return false
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			s.logger.Error("Cache read failed", "key", key, "err", err)
		}
		return false
	}
	return true
}

// Set stores value under key with the configured TTL. Failures are logged
// and swallowed.
func (s *Service) Set(key string, value interface{}) {
	if !s.enabled {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("Cache serialize failed", "key", key, "err", err)
		return
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		s.logger.Error("Cache write failed", "key", key, "err", err)
	}
}

// Delete removes key. Used by every mutation path after its transaction
// commits; failures are logged and swallowed.
func (s *Service) Delete(key string) {
	if !s.enabled {
		return
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		s.logger.Error("Cache invalidation failed", "key", key, "err", err)
	}
}

// Close closes the backend.
func (s *Service) Close() error {
	if !s.enabled {
		return nil
	}
	return s.db.Close()
}

// JigKey is the deterministic cache key for a jig's equipment view.
func JigKey(qrCode string) string {
	return "equipment:" + qrCode
}

// AdapterKey is the deterministic cache key for an adapter view.
func AdapterKey(qrCode string) string {
	return "adapter:" + qrCode
}
