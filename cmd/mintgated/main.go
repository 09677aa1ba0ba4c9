// Command mintgated runs the mint gateway: a claim-allocation ledger and a
// resilient Solana JSON-RPC relay behind one HTTP surface.
//
// All configuration comes from MINTGATE_* environment variables; a .env file
// in the working directory is loaded when present. See the package
// documentation of github.com/mintgate/mintgate for the full list.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	mintgate "github.com/mintgate/mintgate"
	"github.com/mintgate/mintgate/claims"
	"github.com/mintgate/mintgate/metrics"
	"github.com/mintgate/mintgate/relay"
	"github.com/mintgate/mintgate/rpc"
	"github.com/mintgate/mintgate/server"
)

const shutdownGrace = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:          "mintgated",
		Short:        "Claim-allocation ledger and Solana RPC relay gateway",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg, err := mintgate.FromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ledger, store, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close claim index store", zap.Error(err))
		}
		if err := ledger.Close(); err != nil {
			log.Warn("failed to close claim ledger", zap.Error(err))
		}
	}()

	gateway, err := rpc.New(
		rpc.Endpoints{Primary: cfg.RPCPrimary, Backup: cfg.RPCBackup},
		rpc.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}),
		rpc.WithLogger(log),
		rpc.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("failed to create rpc gateway: %w", err)
	}

	cache := rpc.NewBlockhashCache(gateway, cfg.BlockhashTTL,
		rpc.WithCacheLogger(log),
		rpc.WithCacheMetrics(m),
	)

	srv := server.New(server.Options{
		Ledger:  ledger,
		Index:   claims.NewIndex(store, cfg.MaxIndex, log),
		Gateway: gateway,
		Cache:   cache,
		Relay: relay.New(gateway, cache,
			relay.WithCreator(cfg.CreatorPubkey),
			relay.WithLogger(log),
			relay.WithMetrics(m),
		),
		MaxIndex:  cfg.MaxIndex,
		BodyLimit: cfg.BodyLimit,
		Logger:    log,
		Metrics:   m,
		Gatherer:  reg,
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id", "If-None-Match"},
	}).Handler(srv.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("gateway listening",
			zap.String("addr", cfg.Listen),
			zap.String("rpc_primary", cfg.RPCPrimary),
			zap.Bool("rpc_backup_configured", cfg.RPCBackup != ""),
			zap.Bool("creator_gate_configured", cfg.CreatorPubkey != ""),
			zap.Uint32("max_index", cfg.MaxIndex),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}

// openStorage picks the claim backend: Badger under DataDir when configured,
// otherwise everything stays in memory and dies with the process.
func openStorage(cfg *mintgate.Config, log *zap.Logger) (claims.Ledger, claims.Store, error) {
	if cfg.DataDir == "" {
		log.Info("claim state kept in memory; set MINTGATE_DATA_DIR to persist grants")
		return claims.NewMemoryLedger(), claims.NewMemoryStore(), nil
	}

	ledger, err := claims.OpenBadgerLedger(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open claim ledger: %w", err)
	}
	store, err := claims.OpenBadgerStore(filepath.Join(cfg.DataDir, "index"))
	if err != nil {
		_ = ledger.Close()
		return nil, nil, fmt.Errorf("failed to open claim index store: %w", err)
	}
	log.Info("claim state persisted", zap.String("data_dir", cfg.DataDir))
	return ledger, store, nil
}

// newLogger builds the process logger: JSON to stderr, plus a size-rotated
// file sink when MINTGATE_LOG_FILE is set.
func newLogger(cfg *mintgate.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}
	if cfg.LogFile != "" {
		rolling := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rolling), level))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}
