// Package badger implements the Tally cache on BadgerDB, an embedded
// key-value store. It is the default cache backend: no external process,
// and transactions give the atomic read-modify-write that IncrBy and
// SetNX need.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	tallycache "github.com/kyomi-dev/tally/cache"
)

// compile-time interface check
var _ tallycache.Cache = (*Cache)(nil)

// Config holds configuration for the BadgerDB cache.
type Config struct {
	// Path is the directory for BadgerDB files. Required unless InMemory
	// is true.
	Path string

	// InMemory enables in-memory mode with no disk persistence. Useful
	// for tests; the warm-up protocol makes a cold cache cheap to refill
	// either way.
	InMemory bool

	// SyncWrites enables synchronous writes. The cache is rebuildable
	// from the store, so this defaults to off.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. If nil, internal
	// logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a persistent-cache configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{Path: path}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Cache implements cache.Cache on a BadgerDB instance. Values are stored
// as decimal strings.
type Cache struct {
	db *badger.DB
}

// Open opens a BadgerDB-backed cache with the given configuration.
func Open(cfg Config) (*Cache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("tally/badger: path is required for a persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("tally/badger: create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("tally/badger: open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// OpenInMemory opens an in-memory cache for tests.
func OpenInMemory() (*Cache, error) {
	return Open(InMemoryConfig())
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Get(ctx context.Context, key string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	var (
		value int64
		found bool
	)
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return fmt.Errorf("decode %q: %w", key, err)
			}
			value, found = v, true
			return nil
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("tally/badger: get: %w", err)
	}
	return value, found, nil
}

func (c *Cache) Set(ctx context.Context, key string, value int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encode(value))
	})
	if err != nil {
		return fmt.Errorf("tally/badger: set: %w", err)
	}
	return nil
}

func (c *Cache) SetNX(ctx context.Context, key string, value int64) (bool, error) {
	var set bool
	err := c.transact(ctx, func(txn *badger.Txn) error {
		set = false
		_, err := txn.Get([]byte(key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		set = true
		return txn.Set([]byte(key), encode(value))
	})
	if err != nil {
		return false, fmt.Errorf("tally/badger: setnx: %w", err)
	}
	return set, nil
}

func (c *Cache) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var next int64
	err := c.transact(ctx, func(txn *badger.Txn) error {
		current := int64(0)
		item, err := txn.Get([]byte(key))
		if err == nil {
			err = item.Value(func(val []byte) error {
				v, perr := strconv.ParseInt(string(val), 10, 64)
				if perr != nil {
					return fmt.Errorf("decode %q: %w", key, perr)
				}
				current = v
				return nil
			})
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		next = current + delta
		return txn.Set([]byte(key), encode(next))
	})
	if err != nil {
		return 0, fmt.Errorf("tally/badger: incrby: %w", err)
	}
	return next, nil
}

func (c *Cache) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.IncrBy(ctx, key, -delta)
}

// transact runs fn in a read-write transaction and retries on commit
// conflicts so concurrent read-modify-write cycles on the same key
// serialize instead of failing.
func (c *Cache) transact(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.db.Update(fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func encode(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}
