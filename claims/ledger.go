package claims

import "context"

// Outcome is the binary result of a claim attempt for one index.
type Outcome int

const (
	// OutcomeDenied means the index was granted to an earlier caller.
	OutcomeDenied Outcome = iota
	// OutcomeGranted means this caller won the index. At most one caller
	// ever receives this outcome for a given index.
	OutcomeGranted
)

func (o Outcome) String() string {
	if o == OutcomeGranted {
		return "granted"
	}
	return "denied"
}

// Ledger is the authoritative allocator of claim indices.
//
// The first AcquireOnce call ever made for an index returns OutcomeGranted
// and durably records the grant; every later call for the same index,
// including retries of the same logical request, returns OutcomeDenied.
// There is no unlock or expiry.
//
// Implementations must serialize all operations addressed to the same index
// while keeping different indices fully independent, and must complete a
// grant decision atomically even if the caller has already gone away: a
// non-nil error means the outcome is unknown and the caller must fail
// closed, never assume the index is free.
type Ledger interface {
	AcquireOnce(ctx context.Context, index uint32) (Outcome, error)
	// Status reports whether the index has been granted. Read-only;
	// intended for diagnostics.
	Status(ctx context.Context, index uint32) (bool, error)
	Close() error
}
