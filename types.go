package mintgate

import "encoding/json"

// Commitment levels accepted on relay and simulate requests. These mirror the
// Solana commitment vocabulary; anything else is rejected before a request
// touches an upstream.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// ValidCommitment reports whether s names a known commitment level.
// The empty string is valid and means "use the upstream's default".
func ValidCommitment(s string) bool {
	switch s {
	case "", CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized:
		return true
	}
	return false
}

// RelayRequest is the inbound payload for a transaction relay submission.
// Tx carries the signed transaction as base64; the remaining submit flags are
// passed through to the upstream verbatim.
type RelayRequest struct {
	Tx                  string `json:"tx"`
	SkipPreflight       bool   `json:"skipPreflight,omitempty"`
	MaxRetries          *uint  `json:"maxRetries,omitempty"`
	PreflightCommitment string `json:"preflightCommitment,omitempty"`
	Confirm             bool   `json:"confirm,omitempty"`
	ConfirmCommitment   string `json:"confirmCommitment,omitempty"`
	RequireCreator      bool   `json:"requireCreator,omitempty"`
	Signer              string `json:"signer,omitempty"`
}

// ConfirmStatusUnknown is reported when the single confirmation attempt could
// not determine a status (signature not yet visible, or the check itself
// failed). Callers wanting eventual confirmation must ask again later.
const ConfirmStatusUnknown = "unknown"

// ConfirmResult is the outcome of the single confirmation attempt. Status is
// whatever the upstream reported (processed, confirmed, finalized) or
// "unknown"; Err carries the upstream's transaction error verbatim, if any.
type ConfirmResult struct {
	Status string          `json:"status"`
	Slot   uint64          `json:"slot,omitempty"`
	Err    json.RawMessage `json:"err,omitempty"`
}

// RelayResult is the response to a successful relay submission. Confirm is
// only present when the caller asked for the confirmation check.
type RelayResult struct {
	Signature string         `json:"signature"`
	Confirm   *ConfirmResult `json:"confirm,omitempty"`
}

// SimulateRequest is the inbound payload for a transaction simulation.
type SimulateRequest struct {
	Tx                     string `json:"tx"`
	SigVerify              bool   `json:"sigVerify,omitempty"`
	ReplaceRecentBlockhash bool   `json:"replaceRecentBlockhash,omitempty"`
}

// ClaimRequest is the inbound payload for a claim attempt. Index is an int64
// so that negative input is caught by validation instead of wrapping.
type ClaimRequest struct {
	Index *int64 `json:"index"`
}

// ClaimStats summarizes the advisory claim index. ClaimedCount and FreeCount
// derive from the eventually-consistent enumeration and may lag the
// authoritative ledger by the staleness window.
type ClaimStats struct {
	MaxIndex     uint32 `json:"maxIndex"`
	ClaimedCount int    `json:"claimedCount"`
	FreeCount    int    `json:"freeCount"`
}
