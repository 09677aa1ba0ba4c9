package claims

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
//
// It models the eventual consistency of a real enumeration index explicitly:
// with a visibility lag configured, a recorded index only turns up in
// ListPage once the lag has elapsed. Tests drive the lag with an injected
// clock instead of sleeping.
type MemoryStore struct {
	mu        sync.Mutex
	recorded  map[uint32]time.Time
	aggregate []uint32
	hasBlob   bool

	lag time.Duration
	now func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithVisibilityLag delays the listing visibility of newly recorded indices,
// simulating the propagation delay of a real eventually-consistent index.
//
// Default: no lag.
func WithVisibilityLag(lag time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.lag = lag
	}
}

// WithClock replaces the store's time source. Tests use this to step through
// the visibility lag deterministically.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		recorded: make(map[uint32]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record writes the marker for index. Re-recording an index keeps the
// original timestamp so its visibility window does not restart.
func (s *MemoryStore) Record(_ context.Context, index uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.recorded[index]; !exists {
		s.recorded[index] = s.now()
	}
	return nil
}

// ListPage returns up to limit visible indices after the cursor, ascending.
func (s *MemoryStore) ListPage(_ context.Context, cursor string, limit int) ([]uint32, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var after int64 = -1
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", err
		}
		after = n
	}

	now := s.now()
	visible := make([]uint32, 0, len(s.recorded))
	for index, at := range s.recorded {
		if now.Sub(at) < s.lag {
			continue
		}
		if int64(index) > after {
			visible = append(visible, index)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i] < visible[j] })

	if limit > 0 && len(visible) > limit {
		page := visible[:limit]
		return page, strconv.FormatUint(uint64(page[len(page)-1]), 10), nil
	}
	return visible, "", nil
}

// GetAggregate returns a copy of the aggregate blob, or nil when none has
// been written yet.
func (s *MemoryStore) GetAggregate(_ context.Context) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasBlob {
		return nil, nil
	}
	out := make([]uint32, len(s.aggregate))
	copy(out, s.aggregate)
	return out, nil
}

// PutAggregate overwrites the aggregate blob.
func (s *MemoryStore) PutAggregate(_ context.Context, indices []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aggregate = make([]uint32, len(indices))
	copy(s.aggregate, indices)
	s.hasBlob = true
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
