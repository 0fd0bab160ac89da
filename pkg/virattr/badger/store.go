// Package badger persists virtual attribute cache entries in BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/attrsync/pkg/virattr"
)

// prefixEntry namespaces cache entries within the database.
const prefixEntry = "va:"

func keyEntry(k virattr.Key) []byte {
	return []byte(prefixEntry + k.String())
}

// Store implements virattr.Store on a BadgerDB database.
type Store struct {
	db    *badgerdb.DB
	owned bool
}

// Open opens (or creates) a database at path. An empty path opens an
// in-memory database.
func Open(path string) (*Store, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	return &Store{db: db, owned: true}, nil
}

// New wraps an existing database. Close leaves it open.
func New(db *badgerdb.DB) *Store {
	return &Store{db: db}
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key virattr.Key) (*virattr.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entry *virattr.Entry
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyEntry(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e virattr.Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("failed to decode entry %s: %w", key, err)
			}
			entry = &e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) Put(ctx context.Context, entry *virattr.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry %s: %w", entry.Key, err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyEntry(entry.Key), data)
	})
}

func (s *Store) Delete(ctx context.Context, key virattr.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(keyEntry(key))
	})
}

func (s *Store) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEntry)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

var _ virattr.Store = (*Store)(nil)
