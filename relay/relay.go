// Package relay validates, gates and submits signed transactions through the
// RPC gateway, with an optional single confirmation check.
package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	mintgate "github.com/mintgate/mintgate"
	"github.com/mintgate/mintgate/metrics"
	"github.com/mintgate/mintgate/rpc"
)

// Relay drives a relay request through its stages: validate, creator gate,
// submit, optional confirmation check. It is stateless and safe for
// concurrent use.
type Relay struct {
	gateway *rpc.Gateway
	cache   *rpc.BlockhashCache
	creator string
	log     *zap.Logger
	metrics *metrics.Metrics
}

// Option configures the relay.
type Option func(*Relay)

// WithCreator sets the configured creator pubkey the gate compares against.
// Empty means the gate is unavailable and gated requests fail with
// PreconditionFailed.
func WithCreator(pubkey string) Option {
	return func(r *Relay) {
		r.creator = pubkey
	}
}

// WithLogger sets the relay logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Relay) {
		r.log = log
	}
}

// WithMetrics sets the relay collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// New creates a relay on top of the gateway. The cache is optional; without
// it the pre-confirmation blockhash warmup is skipped.
func New(gateway *rpc.Gateway, cache *rpc.BlockhashCache, opts ...Option) *Relay {
	r := &Relay{
		gateway: gateway,
		cache:   cache,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit runs one relay request. Validation and the creator gate reject
// before anything is sent upstream; the returned error is always a
// *mintgate.GatewayError for those stages. A signature is only returned from
// a successful, error-free upstream response.
func (r *Relay) Submit(ctx context.Context, req mintgate.RelayRequest) (*mintgate.RelayResult, error) {
	if err := validateRequest(req); err != nil {
		r.metrics.RelayRequest(metrics.RelayRejected)
		return nil, err
	}

	if req.RequireCreator {
		if err := r.checkCreator(req.Signer); err != nil {
			r.metrics.RelayRequest(metrics.RelayRejected)
			return nil, err
		}
	}

	sig, err := r.send(ctx, req)
	if err != nil {
		r.metrics.RelayRequest(metrics.RelayFailed)
		return nil, err
	}

	result := &mintgate.RelayResult{Signature: sig.String()}
	if req.Confirm {
		result.Confirm = r.confirm(ctx, sig)
	}

	r.metrics.RelayRequest(metrics.RelaySubmitted)
	r.log.Info("transaction relayed",
		zap.String("signature", result.Signature),
		zap.Bool("confirmed_checked", req.Confirm))
	return result, nil
}

// validateRequest rejects malformed input before any stateful component is
// touched. The transaction must decode, but its signatures are not verified.
func validateRequest(req mintgate.RelayRequest) error {
	if req.Tx == "" {
		return mintgate.ErrInvalidRequest("tx is required")
	}
	raw, err := base64.StdEncoding.DecodeString(req.Tx)
	if err != nil {
		return mintgate.ErrInvalidRequest("tx is not valid base64")
	}
	if _, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw)); err != nil {
		return mintgate.ErrInvalidRequest("tx does not decode to a transaction")
	}
	if !mintgate.ValidCommitment(req.PreflightCommitment) {
		return mintgate.ErrInvalidRequest(fmt.Sprintf("unknown preflightCommitment %q", req.PreflightCommitment))
	}
	if !mintgate.ValidCommitment(req.ConfirmCommitment) {
		return mintgate.ErrInvalidRequest(fmt.Sprintf("unknown confirmCommitment %q", req.ConfirmCommitment))
	}
	return nil
}

// checkCreator is policy, not proof: a plain string comparison of the
// declared signer against the configured creator.
func (r *Relay) checkCreator(signer string) error {
	if r.creator == "" {
		return mintgate.ErrCreatorNotConfigured()
	}
	if signer != r.creator {
		return mintgate.ErrCreatorForbidden()
	}
	return nil
}

func (r *Relay) send(ctx context.Context, req mintgate.RelayRequest) (solana.Signature, error) {
	opts := map[string]interface{}{
		"encoding":      "base64",
		"skipPreflight": req.SkipPreflight,
	}
	if req.MaxRetries != nil {
		opts["maxRetries"] = *req.MaxRetries
	}
	if req.PreflightCommitment != "" {
		opts["preflightCommitment"] = req.PreflightCommitment
	}

	resp, err := r.gateway.Call(ctx, rpc.NewRequest(rpc.MethodSendTransaction, req.Tx, opts))
	if err != nil {
		return solana.Signature{}, err
	}
	if resp.StatusCode == mintgate.StatusAllUpstreamsFailed {
		return solana.Signature{}, mintgate.ErrUpstreamUnavailable()
	}
	if resp.StatusCode != http.StatusOK {
		return solana.Signature{}, mintgate.ErrUpstreamError(
			fmt.Sprintf("sendTransaction returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if code, message, found := rpc.ResponseError(resp.Body); found {
		r.log.Warn("sendTransaction rejected by upstream",
			zap.Int64("code", code),
			zap.String("message", message))
		return solana.Signature{}, mintgate.ErrUpstreamError(message, http.StatusBadGateway)
	}

	sig, err := solana.SignatureFromBase58(rpc.Result(resp.Body).String())
	if err != nil {
		return solana.Signature{}, mintgate.ErrUpstreamError("sendTransaction returned an unparseable signature", http.StatusBadGateway)
	}
	return sig, nil
}

// confirm makes the single confirmation attempt. The transaction was already
// accepted upstream, so every failure here degrades to status "unknown"
// rather than failing the request; callers wanting certainty ask again later.
func (r *Relay) confirm(ctx context.Context, sig solana.Signature) *mintgate.ConfirmResult {
	// Warming the blockhash cache is best effort.
	if r.cache != nil {
		if _, err := r.cache.Get(ctx); err != nil {
			r.log.Debug("blockhash warmup failed", zap.Error(err))
		}
	}

	req := rpc.NewRequest(rpc.MethodGetSignatureStatuses,
		[]string{sig.String()},
		map[string]bool{"searchTransactionHistory": false})
	resp, err := r.gateway.Call(ctx, req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return &mintgate.ConfirmResult{Status: mintgate.ConfirmStatusUnknown}
	}
	if _, _, found := rpc.ResponseError(resp.Body); found {
		return &mintgate.ConfirmResult{Status: mintgate.ConfirmStatusUnknown}
	}

	status := rpc.Result(resp.Body).Get("value.0")
	if !status.Exists() || status.Type == gjson.Null {
		// Not visible yet at any commitment level.
		return &mintgate.ConfirmResult{Status: mintgate.ConfirmStatusUnknown}
	}

	out := &mintgate.ConfirmResult{
		Status: status.Get("confirmationStatus").String(),
		Slot:   status.Get("slot").Uint(),
	}
	if out.Status == "" {
		out.Status = mintgate.ConfirmStatusUnknown
	}
	if txErr := status.Get("err"); txErr.Exists() && txErr.Type != gjson.Null {
		out.Err = json.RawMessage(txErr.Raw)
	}
	return out
}

// Simulate forwards a simulateTransaction call and returns the raw upstream
// response for the HTTP layer to mirror. The transaction is validated the
// same way as a relay submission.
func (r *Relay) Simulate(ctx context.Context, req mintgate.SimulateRequest) (*rpc.Response, error) {
	if req.Tx == "" {
		return nil, mintgate.ErrInvalidRequest("tx is required")
	}
	raw, err := base64.StdEncoding.DecodeString(req.Tx)
	if err != nil {
		return nil, mintgate.ErrInvalidRequest("tx is not valid base64")
	}
	if _, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw)); err != nil {
		return nil, mintgate.ErrInvalidRequest("tx does not decode to a transaction")
	}

	opts := map[string]interface{}{
		"encoding":  "base64",
		"sigVerify": req.SigVerify,
	}
	if req.ReplaceRecentBlockhash {
		// sigVerify and replaceRecentBlockhash are mutually exclusive upstream.
		opts["replaceRecentBlockhash"] = true
		opts["sigVerify"] = false
	}

	return r.gateway.Call(ctx, rpc.NewRequest(rpc.MethodSimulateTransaction, req.Tx, opts))
}
