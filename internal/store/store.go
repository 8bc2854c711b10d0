// Package store implements the directory-backed local event cache as a
// BadgerDB key-value store.
//
// Two key families are maintained:
//
//	evt:<time ms, big-endian><message id>  ->  event JSON
//	id:<message id>                        ->  evt key
//
// The evt: family gives time-ordered scans; the id: family gives O(1)
// duplicate detection during sync.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("event store is closed")
)

var (
	prefixEvent = []byte("evt:")
	prefixID    = []byte("id:")
)

// Config holds store settings.
type Config struct {
	// Path is the BadgerDB directory. Required unless InMemory is set.
	Path string

	// InMemory backs the store with memory only. Used by tests and
	// --read-only display runs.
	InMemory bool

	// SyncWrites forces fsync on every write. Off by default; the cache
	// can always be rebuilt from the archive.
	SyncWrites bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("store path is required")
	}
	return nil
}

// Store is a local cache of Gridworks events, deduplicated on MessageId.
// Safe for concurrent use.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.InMemory = cfg.InMemory
	opts.SyncWrites = cfg.SyncWrites
	// Badger's own chatter is not useful at gwd's log levels.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) guard() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func eventKey(timeMs int64, messageID string) []byte {
	key := make([]byte, 0, len(prefixEvent)+8+len(messageID))
	key = append(key, prefixEvent...)
	key = binary.BigEndian.AppendUint64(key, uint64(timeMs))
	key = append(key, messageID...)
	return key
}

func idKey(messageID string) []byte {
	return append(append([]byte{}, prefixID...), messageID...)
}

// Put inserts the event unless its MessageId is already present.
// Returns true when the event was newly inserted.
func (s *Store) Put(event *events.AnyEvent) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	if err := event.Validate(); err != nil {
		return false, fmt.Errorf("refusing to store invalid event: %w", err)
	}

	inserted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		id := idKey(event.MessageID)
		if _, err := txn.Get(id); err == nil {
			return nil // duplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		key := eventKey(event.TimeCreatedMs, event.MessageID)
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(id, key); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store event %s: %w", event.MessageID, err)
	}
	return inserted, nil
}

// Has reports whether the MessageId is already cached.
func (s *Store) Has(messageID string) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(idKey(messageID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Count returns the number of cached events.
func (s *Store) Count() (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixID
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ScanOptions filters a Scan.
type ScanOptions struct {
	// Since excludes events created before this time. Zero means no bound.
	Since time.Time

	// Src keeps only events whose Src contains this substring.
	Src string

	// Limit caps the result count; 0 means unlimited. With Tail set the
	// limit keeps the newest events instead of the oldest.
	Limit int
	Tail  bool
}

// Scan returns cached events in time-ascending order.
func (s *Store) Scan(opts ScanOptions) ([]*events.AnyEvent, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var out []*events.AnyEvent
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefixEvent
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		seek := prefixEvent
		if !opts.Since.IsZero() {
			seek = eventKey(opts.Since.UnixMilli(), "")
		}
		for it.Seek(seek); it.ValidForPrefix(prefixEvent); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var event events.AnyEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return fmt.Errorf("corrupt event at key %x: %w", it.Item().Key(), err)
			}
			if opts.Src != "" && !bytes.Contains([]byte(event.Src), []byte(opts.Src)) {
				continue
			}
			out = append(out, &event)
			if opts.Limit > 0 && !opts.Tail && len(out) >= opts.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && opts.Tail && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out, nil
}

// ImportStats summarizes a bulk import.
type ImportStats struct {
	Inserted   int
	Duplicates int
}

// ImportDir bulk-loads every event JSON file below the directory.
func (s *Store) ImportDir(dir string, strict bool) (ImportStats, error) {
	loaded, err := events.LoadDir([]string{dir}, events.LoadDirOptions{StrictParsing: strict})
	if err != nil {
		return ImportStats{}, err
	}
	return s.PutAll(loaded)
}

// PutAll inserts a batch, reporting how many were new.
func (s *Store) PutAll(batch []*events.AnyEvent) (ImportStats, error) {
	var stats ImportStats
	for _, event := range batch {
		inserted, err := s.Put(event)
		if err != nil {
			return stats, err
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}
	}
	return stats, nil
}
