// Package rpc forwards JSON-RPC traffic to the configured Solana upstreams.
//
// Gateway owns endpoint ordering and failover: the primary is tried first and
// a retryable failure (transport error, or a status the node uses for load
// shedding) triggers exactly one attempt against the backup. When every
// configured endpoint fails the gateway synthesizes a response with status
// 530 instead of surfacing the last upstream's details.
//
// BlockhashCache keeps the most recent blockhash for a short TTL so bursts of
// relay traffic do not turn into bursts of getLatestBlockhash calls.
package rpc
