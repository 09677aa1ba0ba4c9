package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	mintgate "github.com/mintgate/mintgate"
	"github.com/mintgate/mintgate/metrics"
)

// Endpoints is the ordered upstream set. The primary carries all traffic;
// the optional backup absorbs retryable primary failures.
type Endpoints struct {
	Primary string
	Backup  string
}

// Response is the outcome of a forward, upstream-served or synthesized.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Endpoint   string // endpoint that answered; empty for a synthesized response
}

// Gateway forwards JSON-RPC bodies to the upstreams. It holds no mutable
// state, so one instance serves all requests concurrently.
type Gateway struct {
	endpoints Endpoints
	client    *http.Client
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures the gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the upstream HTTP client, typically to set the
// configured timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithLogger sets the gateway logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Gateway) {
		g.log = log
	}
}

// WithMetrics sets the gateway collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New creates a gateway for the given endpoints.
func New(endpoints Endpoints, opts ...Option) (*Gateway, error) {
	if endpoints.Primary == "" {
		return nil, errors.New("primary endpoint is required")
	}

	g := &Gateway{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Forward posts body to the primary and, on a retryable failure, once to the
// backup. A retryable failure is a transport error or a status the node uses
// for load shedding (403, 429) or a 5xx. Non-retryable statuses return
// verbatim; when every configured endpoint fails the response is synthesized
// with StatusAllUpstreamsFailed and a generic body.
//
// The error return is reserved for context cancellation; upstream failures
// are reported through the Response.
func (g *Gateway) Forward(ctx context.Context, body []byte) (*Response, error) {
	resp, err := g.post(ctx, g.endpoints.Primary, body)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.metrics.UpstreamAttempt(metrics.EndpointPrimary, metrics.AttemptTransport)
		g.log.Warn("primary upstream unreachable", zap.String("endpoint", g.endpoints.Primary), zap.Error(err))
	case retryableStatus(resp.StatusCode):
		g.metrics.UpstreamAttempt(metrics.EndpointPrimary, metrics.AttemptRetryable)
		g.log.Warn("primary upstream shed the request", zap.String("endpoint", g.endpoints.Primary), zap.Int("status", resp.StatusCode))
	default:
		g.metrics.UpstreamAttempt(metrics.EndpointPrimary, metrics.AttemptOK)
		return resp, nil
	}

	if g.endpoints.Backup == "" {
		return g.unavailable(body), nil
	}

	resp, err = g.post(ctx, g.endpoints.Backup, body)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.metrics.UpstreamAttempt(metrics.EndpointBackup, metrics.AttemptTransport)
		g.log.Warn("backup upstream unreachable", zap.String("endpoint", g.endpoints.Backup), zap.Error(err))
	case retryableStatus(resp.StatusCode):
		g.metrics.UpstreamAttempt(metrics.EndpointBackup, metrics.AttemptRetryable)
		g.log.Warn("backup upstream shed the request", zap.String("endpoint", g.endpoints.Backup), zap.Int("status", resp.StatusCode))
	default:
		g.metrics.UpstreamAttempt(metrics.EndpointBackup, metrics.AttemptOK)
		return resp, nil
	}

	return g.unavailable(body), nil
}

// Call marshals req and forwards it.
func (g *Gateway) Call(ctx context.Context, req Request) (*Response, error) {
	body, err := req.Marshal()
	if err != nil {
		return nil, err
	}
	return g.Forward(ctx, body)
}

func (g *Gateway) post(ctx context.Context, endpoint string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Header:     stripUpstreamCORS(httpResp.Header),
		Endpoint:   endpoint,
	}, nil
}

func (g *Gateway) unavailable(reqBody []byte) *Response {
	g.metrics.UpstreamExhausted()
	g.log.Error("all configured upstreams failed")

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &Response{
		StatusCode: mintgate.StatusAllUpstreamsFailed,
		Body:       UnavailableBody(reqBody),
		Header:     header,
	}
}

// retryableStatus reports whether the status should trigger failover.
// 403 and 429 are what public RPC nodes return when shedding load; any 5xx
// is a node-side failure. Other 4xx statuses mean the request itself is bad
// and would fail identically on the backup.
func retryableStatus(code int) bool {
	switch {
	case code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return true
	case code >= 500 && code <= 599:
		return true
	}
	return false
}

// stripUpstreamCORS drops the upstream's Access-Control-* headers. The edge
// sets its own CORS policy; upstream values must not leak through.
func stripUpstreamCORS(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for key, values := range h {
		if strings.HasPrefix(http.CanonicalHeaderKey(key), "Access-Control-") {
			continue
		}
		out[key] = append([]string(nil), values...)
	}
	return out
}
