package claims

import (
	"context"
	"sync"
)

// memoryLedgerShards fixes the shard count. Power of two so the modulo
// stays a mask; 64 keeps contention negligible at request-level concurrency.
const memoryLedgerShards = 64

// MemoryLedger is an in-process Ledger for single-node deployments.
//
// Grants live in a map sharded by index so that acquires for the same index
// serialize on one mutex while acquires for different indices proceed in
// parallel. State does not survive a restart; use BadgerLedger when grants
// must be durable.
type MemoryLedger struct {
	shards [memoryLedgerShards]ledgerShard
}

type ledgerShard struct {
	mu      sync.Mutex
	granted map[uint32]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	l := &MemoryLedger{}
	for i := range l.shards {
		l.shards[i].granted = make(map[uint32]struct{})
	}
	return l
}

// AcquireOnce grants the index to the first caller and denies everyone after.
// The decision section ignores ctx: once entered it completes atomically, so
// an abandoned request can never leave a half-recorded grant.
func (l *MemoryLedger) AcquireOnce(_ context.Context, index uint32) (Outcome, error) {
	s := &l.shards[index%memoryLedgerShards]
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.granted[index]; taken {
		return OutcomeDenied, nil
	}
	s.granted[index] = struct{}{}
	return OutcomeGranted, nil
}

// Status reports whether the index has been granted.
func (l *MemoryLedger) Status(_ context.Context, index uint32) (bool, error) {
	s := &l.shards[index%memoryLedgerShards]
	s.mu.Lock()
	defer s.mu.Unlock()

	_, taken := s.granted[index]
	return taken, nil
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error {
	return nil
}

// Ensure MemoryLedger implements Ledger
var _ Ledger = (*MemoryLedger)(nil)
