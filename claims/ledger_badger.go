package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// lockKeyPrefix is the keyspace of authoritative grant flags. Keys are
// zero-padded so lexicographic order matches numeric order.
const lockKeyPrefix = "lock/"

var errAlreadyGranted = errors.New("claims: index already granted")

// BadgerLedger is a durable Ledger backed by a Badger database.
//
// A grant is an insert-if-absent of the index's lock key inside one
// transaction. Badger's conflict detection supplies the per-key
// serialization: when two acquires race, exactly one commit succeeds and the
// loser re-reads the now-existing key and reports OutcomeDenied. Acquires
// for different indices never conflict.
type BadgerLedger struct {
	db *badger.DB
}

// OpenBadgerLedger opens the ledger database at path. An empty path opens an
// in-memory database, which is only useful in tests.
func OpenBadgerLedger(path string) (*BadgerLedger, error) {
	db, err := openBadger(path)
	if err != nil {
		return nil, fmt.Errorf("open claim ledger: %w", err)
	}
	return &BadgerLedger{db: db}, nil
}

// AcquireOnce grants the index to the first caller and denies everyone after.
// Any storage failure is returned as an error: the outcome is then unknown
// and the caller must not treat the index as free.
func (l *BadgerLedger) AcquireOnce(_ context.Context, index uint32) (Outcome, error) {
	key := lockKey(index)

	// Two passes at most: a conflict means a racing acquire committed this
	// same key, so the retry finds it and reports Denied.
	for attempt := 0; attempt < 2; attempt++ {
		err := l.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			if err == nil {
				return errAlreadyGranted
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return txn.Set(key, []byte{1})
		})
		switch {
		case err == nil:
			return OutcomeGranted, nil
		case errors.Is(err, errAlreadyGranted):
			return OutcomeDenied, nil
		case errors.Is(err, badger.ErrConflict):
			continue
		default:
			return OutcomeDenied, fmt.Errorf("claim ledger acquire %d: %w", index, err)
		}
	}
	return OutcomeDenied, fmt.Errorf("claim ledger acquire %d: %w", index, badger.ErrConflict)
}

// Status reports whether the index has been granted.
func (l *BadgerLedger) Status(_ context.Context, index uint32) (bool, error) {
	var granted bool
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(lockKey(index))
		if err == nil {
			granted = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("claim ledger status %d: %w", index, err)
	}
	return granted, nil
}

// Close closes the underlying database.
func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

func lockKey(index uint32) []byte {
	return []byte(fmt.Sprintf("%s%010d", lockKeyPrefix, index))
}

// openBadger opens a Badger database with its own chatty logger silenced;
// an empty path selects the in-memory mode.
func openBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	return badger.Open(opts)
}

// Ensure BadgerLedger implements Ledger
var _ Ledger = (*BadgerLedger)(nil)
