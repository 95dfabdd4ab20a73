// Package store persists library entries in a BoltDB file. It is the diff
// engine's source of truth: the only durable record tying a work's identity
// to its fingerprint and EPUB identity.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mizutanik/shiori/internal/domain"
)

var bucketLibrary = []byte("library")

// LibraryStore implements domain.Store using BoltDB. Bolt gives us
// crash-consistent single-file persistence; a failed write never corrupts
// unrelated entries.
type LibraryStore struct {
	db *bolt.DB

	mu    sync.Mutex // protects locks
	locks map[string]*sync.Mutex
}

// Open opens (creating if needed) the library database at dbPath.
func Open(dbPath string) (*LibraryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStoreCorrupt, dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLibrary)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init %s: %v", domain.ErrStoreCorrupt, dbPath, err)
	}

	return &LibraryStore{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Get returns the entry for an identity, or nil when none exists.
func (s *LibraryStore) Get(id domain.Identity) (*domain.LibraryEntry, error) {
	var entry *domain.LibraryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketLibrary).Get([]byte(id.Key()))
		if data == nil {
			return nil
		}
		var e domain.LibraryEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("%w: entry %s: %v", domain.ErrStoreCorrupt, id.Key(), err)
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put inserts or replaces the entry for entry.Identity.
func (s *LibraryStore) Put(entry domain.LibraryEntry) error {
	if !entry.Identity.IsValid() {
		return fmt.Errorf("put library entry: invalid identity")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode library entry: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLibrary).Put([]byte(entry.Identity.Key()), data)
	})
	if err != nil {
		return fmt.Errorf("put library entry %s: %w", entry.Identity.Key(), err)
	}
	return nil
}

// List returns all entries.
func (s *LibraryStore) List() ([]domain.LibraryEntry, error) {
	var entries []domain.LibraryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLibrary).ForEach(func(k, v []byte) error {
			var e domain.LibraryEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("%w: entry %s: %v", domain.ErrStoreCorrupt, k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Lock serializes work on one identity so two concurrent builds of the same
// work cannot race on its entry. Distinct identities proceed in parallel.
func (s *LibraryStore) Lock(id domain.Identity) func() {
	s.mu.Lock()
	m, ok := s.locks[id.Key()]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id.Key()] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (s *LibraryStore) Close() error {
	return s.db.Close()
}
