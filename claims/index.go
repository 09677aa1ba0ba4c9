package claims

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	mintgate "github.com/mintgate/mintgate"
)

// defaultPageSize is the page size used when listing markers. Tests shrink it
// to prove that page merging works.
const defaultPageSize = 1000

// Index is the advisory, eventually-consistent view of granted indices.
//
// It answers enumeration and counting questions without touching the
// authoritative Ledger. Reads may lag a grant by the store's propagation
// delay; that staleness window is part of the contract, not a defect. When
// the Ledger and the Index disagree, the Ledger is right.
type Index struct {
	store    Store
	maxIndex uint32
	pageSize int
	log      *zap.Logger
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithPageSize overrides the listing page size.
func WithPageSize(size int) IndexOption {
	return func(ix *Index) {
		ix.pageSize = size
	}
}

// NewIndex creates an Index over store. maxIndex bounds the claimable range
// (valid indices are 0..maxIndex) and feeds the Stats derivation.
func NewIndex(store Store, maxIndex uint32, log *zap.Logger, opts ...IndexOption) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	ix := &Index{
		store:    store,
		maxIndex: maxIndex,
		pageSize: defaultPageSize,
		log:      log,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Record registers a granted index in the enumeration store. Call it only
// after the Ledger granted the index; it is safe to call more than once.
//
// The marker write is the part that matters and its failure is returned. The
// aggregate blob refresh afterwards is best-effort: the blob is a cache, so
// a failed or lost update there is logged and repaired later, never
// propagated to the caller.
func (ix *Index) Record(ctx context.Context, index uint32) error {
	if err := ix.store.Record(ctx, index); err != nil {
		return fmt.Errorf("record claim %d: %w", index, err)
	}
	if err := ix.updateAggregate(ctx, index); err != nil {
		ix.log.Warn("claim aggregate update failed",
			zap.Uint32("index", index),
			zap.Error(err))
	}
	return nil
}

// ListAll returns every visible claimed index, ascending and deduplicated.
// It pages through the store until the completion marker (an empty next
// cursor) instead of assuming one page is exhaustive.
func (ix *Index) ListAll(ctx context.Context) ([]uint32, error) {
	seen := make(map[uint32]struct{})
	cursor := ""
	for {
		page, next, err := ix.store.ListPage(ctx, cursor, ix.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		for _, index := range page {
			seen[index] = struct{}{}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	out := make([]uint32, 0, len(seen))
	for index := range seen {
		out = append(out, index)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Count returns the number of visible claimed indices.
func (ix *Index) Count(ctx context.Context) (int, error) {
	all, err := ix.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// Stats summarizes the visible claim state. FreeCount counts the remaining
// slots in 0..maxIndex.
func (ix *Index) Stats(ctx context.Context) (mintgate.ClaimStats, error) {
	all, err := ix.ListAll(ctx)
	if err != nil {
		return mintgate.ClaimStats{}, err
	}
	return mintgate.ClaimStats{
		MaxIndex:     ix.maxIndex,
		ClaimedCount: len(all),
		FreeCount:    int(ix.maxIndex) + 1 - len(all),
	}, nil
}

// RebuildAggregate rewrites the aggregate blob from a full listing. This is
// the repair path for entries the blob lost to concurrent read-modify-write
// cycles.
func (ix *Index) RebuildAggregate(ctx context.Context) error {
	all, err := ix.ListAll(ctx)
	if err != nil {
		return err
	}
	if err := ix.store.PutAggregate(ctx, all); err != nil {
		return fmt.Errorf("rebuild claim aggregate: %w", err)
	}
	return nil
}

// updateAggregate folds one index into the blob with a read-modify-write
// cycle. Two concurrent cycles can lose one of the entries; that is the
// blob's documented weakness and why it is never read as truth.
func (ix *Index) updateAggregate(ctx context.Context, index uint32) error {
	current, err := ix.store.GetAggregate(ctx)
	if err != nil {
		return err
	}
	pos := sort.Search(len(current), func(i int) bool { return current[i] >= index })
	if pos < len(current) && current[pos] == index {
		return nil
	}
	updated := make([]uint32, 0, len(current)+1)
	updated = append(updated, current[:pos]...)
	updated = append(updated, index)
	updated = append(updated, current[pos:]...)
	return ix.store.PutAggregate(ctx, updated)
}
