// Package mintgate is an edge gateway between untrusted web clients and a
// Solana JSON-RPC backend. It combines a claim-allocation ledger that reserves
// unique mint indices with an at-most-one-winner guarantee, and a resilient
// transaction relay that forwards signed transactions and RPC calls to one of
// several upstream nodes with failover, short-lived blockhash caching, and a
// single-attempt confirmation check.
//
// The root package holds the shared configuration, request/result types, and
// the error taxonomy. The subsystems live in their own packages:
//
//   - claims:  the authoritative per-index grant ledger and the advisory,
//     eventually-consistent claim index used for enumeration
//   - rpc:     the forward-with-failover JSON-RPC gateway and the blockhash cache
//   - relay:   transaction submission and the single confirmation attempt
//   - server:  the HTTP surface (gin)
//   - metrics: prometheus instrumentation
package mintgate
