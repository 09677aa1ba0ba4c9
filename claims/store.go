package claims

import "context"

// Store is the persistence layer of the advisory claim index: one enumerable
// marker per granted index plus an optional aggregate blob holding the whole
// sorted claimed set.
//
// Record is idempotent. ListPage returns up to limit indices starting after
// the cursor ("" starts from the beginning) together with the next cursor;
// an empty next cursor is the completion marker. Implementations may return
// pages in any size they like as long as paging terminates.
//
// The aggregate blob is a cache with a documented weakness: it is maintained
// by read-modify-write cycles and loses entries under concurrent writers. It
// must never be treated as authoritative.
type Store interface {
	Record(ctx context.Context, index uint32) error
	ListPage(ctx context.Context, cursor string, limit int) (indices []uint32, next string, err error)
	GetAggregate(ctx context.Context) ([]uint32, error)
	PutAggregate(ctx context.Context, indices []uint32) error
	Close() error
}
