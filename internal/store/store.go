// Package store persists named records in an embedded key-value store
// and serves them over the packet protocol.
package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

var ErrNotFound = errors.New("store: record not found")

// Store keeps record bytes keyed by name. Record contents are opaque;
// nothing in this layer inspects them.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store under dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts the record under name.
func (s *Store) Put(name string, record []byte) error {
	if name == "" {
		return errors.New("store: name required")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(name), record)
	})
}

// Get returns a copy of the record stored under name.
func (s *Store) Get(name string) ([]byte, error) {
	var record []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", name, err)
	}
	return record, nil
}

// Delete removes the record under name; deleting an absent name is a
// no-op.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(name))
	})
}

// Names lists stored record names, sorted.
func (s *Store) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, string(it.Item().Key()))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list names: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
