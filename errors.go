package mintgate

import (
	"errors"
	"fmt"
	"net/http"
)

// GatewayError represents a gateway-specific error with a stable machine code
// and the HTTP status it maps to on the wire.
type GatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// HTTPStatus is the status the HTTP layer responds with. Not serialized;
	// it travels in the response status line.
	HTTPStatus int `json:"-"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeInvalidRequest       = "invalid_request"
	ErrCodePayloadTooLarge      = "payload_too_large"
	ErrCodeAlreadyClaimed       = "already_claimed"
	ErrCodeCreatorForbidden     = "creator_forbidden"
	ErrCodeCreatorNotConfigured = "creator_not_configured"
	ErrCodeUpstreamUnavailable  = "upstream_unavailable"
	ErrCodeUpstreamError        = "upstream_error"
	ErrCodeLedgerUnavailable    = "ledger_unavailable"
)

// StatusAllUpstreamsFailed is the synthesized status returned when every
// configured upstream endpoint failed. It sits outside the range upstreams
// produce themselves so clients can tell "the gateway gave up" apart from
// "the upstream answered with an error".
const StatusAllUpstreamsFailed = 530

// NewGatewayError creates a new gateway error.
func NewGatewayError(code, message string, httpStatus int) *GatewayError {
	return &GatewayError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// ErrInvalidRequest reports malformed or out-of-range input. Requests failing
// this way never reach the claim ledger or an upstream.
func ErrInvalidRequest(message string) *GatewayError {
	return NewGatewayError(ErrCodeInvalidRequest, message, http.StatusBadRequest)
}

// ErrPayloadTooLarge reports a request body over the configured limit,
// detected before any parsing happens.
func ErrPayloadTooLarge(limit int64) *GatewayError {
	return NewGatewayError(ErrCodePayloadTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit), http.StatusBadRequest)
}

// ErrAlreadyClaimed reports that the index was granted to an earlier caller.
func ErrAlreadyClaimed(index uint32) *GatewayError {
	return NewGatewayError(ErrCodeAlreadyClaimed, fmt.Sprintf("index %d is already claimed", index), http.StatusConflict)
}

// ErrCreatorForbidden reports a creator-gate mismatch. The gate is a plain
// string comparison, not a signature check.
func ErrCreatorForbidden() *GatewayError {
	return NewGatewayError(ErrCodeCreatorForbidden, "declared signer does not match the configured creator", http.StatusForbidden)
}

// ErrCreatorNotConfigured reports that the request asked for the creator gate
// but no creator key is configured.
func ErrCreatorNotConfigured() *GatewayError {
	return NewGatewayError(ErrCodeCreatorNotConfigured, "creator gate requested but no creator is configured", http.StatusPreconditionFailed)
}

// ErrUpstreamUnavailable reports that every configured upstream failed.
func ErrUpstreamUnavailable() *GatewayError {
	return NewGatewayError(ErrCodeUpstreamUnavailable, "all upstream endpoints failed", StatusAllUpstreamsFailed)
}

// ErrUpstreamError surfaces an upstream-reported failure as-is, mirroring the
// given status on our side of the wire.
func ErrUpstreamError(message string, httpStatus int) *GatewayError {
	return NewGatewayError(ErrCodeUpstreamError, message, httpStatus)
}

// ErrLedgerUnavailable reports that the claim ledger was unreachable or
// answered ambiguously. Callers must fail closed: this is neither a grant nor
// a denial and must never be read as permission to proceed.
func ErrLedgerUnavailable(err error) *GatewayError {
	return NewGatewayError(ErrCodeLedgerUnavailable, fmt.Sprintf("claim ledger unavailable: %v", err), http.StatusInternalServerError)
}

// AsGatewayError unwraps err into a *GatewayError if there is one in its chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
