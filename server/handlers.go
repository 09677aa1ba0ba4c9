package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mintgate "github.com/mintgate/mintgate"
	"github.com/mintgate/mintgate/claims"
	"github.com/mintgate/mintgate/metrics"
	"github.com/mintgate/mintgate/rpc"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleLatestBlockhash(c *gin.Context) {
	blockhash, err := s.opts.Cache.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blockhash": blockhash})
}

func (s *Server) handleSimulate(c *gin.Context) {
	var req mintgate.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	resp, err := s.opts.Relay.Simulate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	mirror(c, resp)
}

// handleRPC is the raw JSON-RPC passthrough. The body is forwarded untouched;
// only the size cap and non-emptiness are checked here.
func (s *Server) handleRPC(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, bindError(err))
		return
	}
	if len(body) == 0 {
		writeError(c, mintgate.ErrInvalidRequest("request body is empty"))
		return
	}

	resp, err := s.opts.Gateway.Forward(c.Request.Context(), body)
	if err != nil {
		writeError(c, err)
		return
	}
	mirror(c, resp)
}

func (s *Server) handleRelay(c *gin.Context) {
	var req mintgate.RelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	result, err := s.opts.Relay.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListClaims(c *gin.Context) {
	indices, err := s.opts.Index.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	tag := claimsETag(indices)
	c.Header("ETag", tag)
	if match := c.GetHeader("If-None-Match"); match != "" && etagMatches(match, tag) {
		c.Status(http.StatusNotModified)
		return
	}

	if indices == nil {
		indices = []uint32{}
	}
	c.JSON(http.StatusOK, indices)
}

func (s *Server) handleClaim(c *gin.Context) {
	var req mintgate.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	if req.Index == nil {
		writeError(c, mintgate.ErrInvalidRequest("index is required"))
		return
	}
	if *req.Index < 0 || *req.Index > int64(s.opts.MaxIndex) {
		writeError(c, mintgate.ErrInvalidRequest(fmt.Sprintf("index must be between 0 and %d", s.opts.MaxIndex)))
		return
	}
	index := uint32(*req.Index)

	outcome, err := s.opts.Ledger.AcquireOnce(c.Request.Context(), index)
	if err != nil {
		// Ambiguity fails closed: an unreachable ledger is never "free".
		s.opts.Metrics.ClaimRequest(metrics.OutcomeError)
		writeError(c, mintgate.ErrLedgerUnavailable(err))
		return
	}
	if outcome != claims.OutcomeGranted {
		s.opts.Metrics.ClaimRequest(metrics.OutcomeDenied)
		writeError(c, mintgate.ErrAlreadyClaimed(index))
		return
	}
	s.opts.Metrics.ClaimRequest(metrics.OutcomeGranted)

	// The grant is authoritative at this point; index visibility is
	// best-effort and may lag.
	if err := s.opts.Index.Record(c.Request.Context(), index); err != nil {
		s.opts.Logger.Warn("claim granted but not recorded in index",
			zap.Uint32("index", index), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"index": index, "granted": true})
}

func (s *Server) handleClaimStats(c *gin.Context) {
	stats, err := s.opts.Index.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// writeError maps an error onto the wire shape {"error":{code,message}}.
// Unrecognized errors become an opaque 500.
func writeError(c *gin.Context, err error) {
	if ge, ok := mintgate.AsGatewayError(err); ok {
		c.JSON(ge.HTTPStatus, gin.H{"error": ge})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
		"code":    "internal_error",
		"message": "internal error",
	}})
}

// bindError distinguishes an over-limit body from plain malformed JSON.
func bindError(err error) *mintgate.GatewayError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return mintgate.ErrPayloadTooLarge(tooLarge.Limit)
	}
	return mintgate.ErrInvalidRequest("malformed JSON body")
}

// mirror writes an upstream response through: status, body and headers, the
// framing headers excepted.
func mirror(c *gin.Context, resp *rpc.Response) {
	for key, values := range resp.Header {
		switch key {
		case "Content-Length", "Content-Type", "Transfer-Encoding", "Connection":
			continue
		}
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}

// claimsETag derives a weak validator from the listing shape. Weak because
// the index is eventually consistent; byte identity is not promised.
func claimsETag(indices []uint32) string {
	if len(indices) == 0 {
		return `W/"0"`
	}
	return fmt.Sprintf(`W/"%d-%d-%d"`, len(indices), indices[0], indices[len(indices)-1])
}

func etagMatches(ifNoneMatch, tag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == tag || candidate == "*" {
			return true
		}
	}
	return false
}
