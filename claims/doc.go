// Package claims implements the claim-allocation subsystem: the authoritative
// Ledger that grants each index to at most one caller ever, and the advisory
// Index layered over a Store for cheap enumeration of granted indices.
//
// The two halves are deliberately separate. The Ledger is strongly consistent
// per key and is the only source of truth; the Index is eventually consistent
// and exists so that listing and counting claims does not require probing
// every ledger entry. A claim that the Ledger just granted may take a bounded
// staleness window to appear in the Index.
package claims
