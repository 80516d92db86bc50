// Package snapshot persists the terminal's last known view models (Badger).
//
// The dashboard loads the previous account summary and quotes at startup so
// the screen is populated before the first REST fetch completes. Values are
// always full replacements, never merges.
package snapshot

import (
	"encoding/json"
	"errors"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound 表示快照不存在
var ErrNotFound = errors.New("snapshot: not found")

// Store is a small JSON-over-KV wrapper around Badger.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the snapshot store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("snapshot: path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// SaveJSON stores v under key as JSON, replacing any previous value.
func (s *Store) SaveJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// LoadJSON loads the JSON value stored under key into out.
func (s *Store) LoadJSON(key string, out interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// Delete removes key from the store.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
