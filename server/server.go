// Package server exposes the gateway's HTTP surface: claim allocation, RPC
// passthrough, transaction relay and the operational endpoints.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	mintgate "github.com/mintgate/mintgate"
	"github.com/mintgate/mintgate/claims"
	"github.com/mintgate/mintgate/metrics"
	"github.com/mintgate/mintgate/relay"
	"github.com/mintgate/mintgate/rpc"
)

// Options carries the server's collaborators. Ledger, Index, Gateway, Cache
// and Relay are required; the rest defaults sensibly.
type Options struct {
	Ledger  claims.Ledger
	Index   *claims.Index
	Gateway *rpc.Gateway
	Cache   *rpc.BlockhashCache
	Relay   *relay.Relay

	MaxIndex  uint32
	BodyLimit int64

	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // optional; enables GET /metrics
}

// Server is the gin-backed HTTP surface.
type Server struct {
	opts   Options
	router *gin.Engine
}

// New builds the router with its middleware chain and routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = mintgate.DefaultBodyLimit
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(opts.Logger))
	router.Use(bodyLimit(opts.BodyLimit))

	s := &Server{opts: opts, router: router}

	router.GET("/healthz", s.handleHealthz)
	router.GET("/latest-blockhash", s.handleLatestBlockhash)
	router.POST("/simulate", s.handleSimulate)
	router.POST("/rpc", s.handleRPC)
	router.POST("/relay", s.handleRelay)
	router.GET("/claims", s.handleListClaims)
	router.POST("/claims", s.handleClaim)
	router.GET("/claims/stats", s.handleClaimStats)

	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return s
}

// Handler returns the router for mounting, typically wrapped with CORS by
// the caller.
func (s *Server) Handler() http.Handler {
	return s.router
}
