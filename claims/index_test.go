package claims

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock steps time manually so visibility-lag tests never sleep.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestIndex_ListAllMergesPages(t *testing.T) {
	store := NewMemoryStore()
	ix := NewIndex(store, 9999, zap.NewNop(), WithPageSize(3))
	ctx := context.Background()

	recorded := []uint32{5000, 17, 3, 9999, 256, 4, 1024, 0, 77, 512}
	for _, index := range recorded {
		require.NoError(t, ix.Record(ctx, index))
	}
	// Duplicate records must not produce duplicate listings.
	require.NoError(t, ix.Record(ctx, 17))

	all, err := ix.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 3, 4, 17, 77, 256, 512, 1024, 5000, 9999}, all)

	count, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestIndex_Stats(t *testing.T) {
	store := NewMemoryStore()
	ix := NewIndex(store, 9, zap.NewNop())
	ctx := context.Background()

	for _, index := range []uint32{1, 2, 3} {
		require.NoError(t, ix.Record(ctx, index))
	}

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), stats.MaxIndex)
	assert.Equal(t, 3, stats.ClaimedCount)
	assert.Equal(t, 7, stats.FreeCount)
}

func TestIndex_StalenessWindow(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithVisibilityLag(500*time.Millisecond), WithClock(clock.Now))
	ix := NewIndex(store, 9999, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, ix.Record(ctx, 42))

	// The just-recorded claim is allowed to be invisible inside the window.
	all, err := ix.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	clock.Advance(time.Second)

	all, err = ix.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{42}, all)
}

func TestIndex_StalenessWindowEventually(t *testing.T) {
	store := NewMemoryStore(WithVisibilityLag(30 * time.Millisecond))
	ix := NewIndex(store, 9999, zap.NewNop())
	ctx := context.Background()

	for _, index := range []uint32{7, 8, 9} {
		require.NoError(t, ix.Record(ctx, index))
	}

	// Read-after-write is not guaranteed, but the claims must surface within
	// the staleness bound.
	assert.Eventually(t, func() bool {
		all, err := ix.ListAll(ctx)
		return err == nil && len(all) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestIndex_AggregateFollowsRecords(t *testing.T) {
	store := NewMemoryStore()
	ix := NewIndex(store, 9999, zap.NewNop())
	ctx := context.Background()

	for _, index := range []uint32{30, 10, 20, 10} {
		require.NoError(t, ix.Record(ctx, index))
	}

	blob, err := store.GetAggregate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{10, 20, 30}, blob)
}

func TestIndex_AggregateLostUpdateAndRebuild(t *testing.T) {
	store := NewMemoryStore()
	ix := NewIndex(store, 9999, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, ix.Record(ctx, 1))

	// Interleave two read-modify-write cycles by hand: both read the same
	// blob, so the second write erases the first writer's entry. This is the
	// documented lost-update hazard of the advisory aggregate.
	base, err := store.GetAggregate(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Record(ctx, 2))
	require.NoError(t, store.PutAggregate(ctx, append(append([]uint32{}, base...), 2)))

	require.NoError(t, store.Record(ctx, 3))
	require.NoError(t, store.PutAggregate(ctx, append(append([]uint32{}, base...), 3)))

	blob, err := store.GetAggregate(ctx)
	require.NoError(t, err)
	assert.NotContains(t, blob, uint32(2), "second writer overwrote the first")

	// The markers are complete, so a rebuild repairs the blob.
	require.NoError(t, ix.RebuildAggregate(ctx))

	blob, err = store.GetAggregate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, blob)
}

func TestMemoryStore_RecordKeepsOriginalVisibility(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithVisibilityLag(time.Second), WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, 5))
	clock.Advance(900 * time.Millisecond)

	// Re-recording must not restart the visibility window.
	require.NoError(t, store.Record(ctx, 5))
	clock.Advance(200 * time.Millisecond)

	page, next, err := store.ListPage(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5}, page)
	assert.Empty(t, next)
}
