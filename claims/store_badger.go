package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

const (
	// claimKeyPrefix is the keyspace of enumerable claim markers, zero-padded
	// so iteration order is numeric order.
	claimKeyPrefix = "claim/"
	// aggregateKey holds the advisory blob of all claimed indices as a JSON
	// array.
	aggregateKey = "claims-all"
)

// BadgerStore is a durable Store backed by a Badger database. Markers live
// under their own key prefix and listing pages through them with a prefix
// iterator, so the enumeration never depends on a single oversized value.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens the claim index database at path. An empty path opens
// an in-memory database, which is only useful in tests.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	db, err := openBadger(path)
	if err != nil {
		return nil, fmt.Errorf("open claim store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Record writes the marker for index. Setting the same key again is a no-op
// at the data level, which makes Record naturally idempotent.
func (s *BadgerStore) Record(_ context.Context, index uint32) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(claimKey(index), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("claim store record %d: %w", index, err)
	}
	return nil
}

// ListPage returns up to limit marker indices after the cursor, ascending,
// with the next cursor ("" when the keyspace is exhausted).
func (s *BadgerStore) ListPage(_ context.Context, cursor string, limit int) ([]uint32, string, error) {
	prefix := []byte(claimKeyPrefix)
	seek := prefix
	skipFirst := false
	if cursor != "" {
		n, err := strconv.ParseUint(cursor, 10, 32)
		if err != nil {
			return nil, "", fmt.Errorf("claim store cursor %q: %w", cursor, err)
		}
		seek = claimKey(uint32(n))
		skipFirst = true
	}

	var (
		indices []uint32
		next    string
	)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(seek)
		if skipFirst && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seek) {
			it.Next()
		}
		for ; it.ValidForPrefix(prefix); it.Next() {
			index, err := parseClaimKey(it.Item().Key())
			if err != nil {
				return err
			}
			if limit > 0 && len(indices) == limit {
				next = strconv.FormatUint(uint64(indices[len(indices)-1]), 10)
				return nil
			}
			indices = append(indices, index)
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("claim store list: %w", err)
	}
	return indices, next, nil
}

// GetAggregate returns the advisory blob, or nil when none has been written.
func (s *BadgerStore) GetAggregate(_ context.Context) ([]uint32, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(aggregateKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim store aggregate read: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var indices []uint32
	if err := json.Unmarshal(raw, &indices); err != nil {
		return nil, fmt.Errorf("claim store aggregate decode: %w", err)
	}
	return indices, nil
}

// PutAggregate overwrites the advisory blob.
func (s *BadgerStore) PutAggregate(_ context.Context, indices []uint32) error {
	raw, err := json.Marshal(indices)
	if err != nil {
		return fmt.Errorf("claim store aggregate encode: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(aggregateKey), raw)
	})
	if err != nil {
		return fmt.Errorf("claim store aggregate write: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func claimKey(index uint32) []byte {
	return []byte(fmt.Sprintf("%s%010d", claimKeyPrefix, index))
}

func parseClaimKey(key []byte) (uint32, error) {
	if len(key) <= len(claimKeyPrefix) {
		return 0, fmt.Errorf("claim store: malformed marker key %q", key)
	}
	n, err := strconv.ParseUint(string(key[len(claimKeyPrefix):]), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("claim store: malformed marker key %q: %w", key, err)
	}
	return uint32(n), nil
}

// Ensure BadgerStore implements Store
var _ Store = (*BadgerStore)(nil)
