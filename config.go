package mintgate

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
)

// Configuration defaults
const (
	DefaultListen          = ":8080"
	DefaultMaxIndex        = 9999
	DefaultBlockhashTTL    = 10 * time.Second
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultBodyLimit       = 64 * 1024
	DefaultLogLevel        = "info"
)

// Config validation errors
var (
	ErrMissingPrimaryRPC   = errors.New("mintgate: primary rpc url is required")
	ErrInvalidPrimaryRPC   = errors.New("mintgate: primary rpc url is not a valid http(s) url")
	ErrInvalidBackupRPC    = errors.New("mintgate: backup rpc url is not a valid http(s) url")
	ErrInvalidCreator      = errors.New("mintgate: creator is not a valid base58 public key")
	ErrInvalidBlockhashTTL = errors.New("mintgate: blockhash ttl must be positive")
	ErrInvalidBodyLimit    = errors.New("mintgate: body limit must be positive")
)

// Config holds the gateway configuration. It is populated from the
// environment by FromEnv and checked with Validate before anything is wired.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string
	// RPCPrimary is the upstream tried first for every forwarded call.
	RPCPrimary string
	// RPCBackup, when set, receives exactly one attempt after a retryable
	// primary failure.
	RPCBackup string
	// MaxIndex is the highest claimable index; valid indices are 0..MaxIndex.
	MaxIndex uint32
	// CreatorPubkey enables the relay creator gate when set. The gate is a
	// plain string comparison against the declared signer, not a signature
	// check.
	CreatorPubkey string
	// BlockhashTTL bounds how long a cached blockhash is served without a
	// fresh upstream fetch.
	BlockhashTTL time.Duration
	// UpstreamTimeout caps each individual upstream attempt.
	UpstreamTimeout time.Duration
	// BodyLimit caps inbound request bodies, enforced before parsing.
	BodyLimit int64
	// DataDir selects the durable claim store when set; empty keeps the
	// ledger and index in memory.
	DataDir string
	// CORSOrigins is the allowed-origin list applied around the router.
	CORSOrigins []string
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string
	// LogFile, when set, adds a size-rotated file sink next to stderr.
	LogFile string
}

// FromEnv builds a Config from MINTGATE_* environment variables, applying
// defaults for everything optional. Malformed numeric or duration values are
// reported instead of silently defaulted.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Listen:          envOr("MINTGATE_LISTEN", DefaultListen),
		RPCPrimary:      os.Getenv("MINTGATE_RPC_PRIMARY"),
		RPCBackup:       os.Getenv("MINTGATE_RPC_BACKUP"),
		MaxIndex:        DefaultMaxIndex,
		CreatorPubkey:   os.Getenv("MINTGATE_CREATOR"),
		BlockhashTTL:    DefaultBlockhashTTL,
		UpstreamTimeout: DefaultUpstreamTimeout,
		BodyLimit:       DefaultBodyLimit,
		DataDir:         os.Getenv("MINTGATE_DATA_DIR"),
		CORSOrigins:     []string{"*"},
		LogLevel:        envOr("MINTGATE_LOG_LEVEL", DefaultLogLevel),
		LogFile:         os.Getenv("MINTGATE_LOG_FILE"),
	}

	if v := os.Getenv("MINTGATE_MAX_INDEX"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("MINTGATE_MAX_INDEX: %w", err)
		}
		cfg.MaxIndex = uint32(n)
	}
	if v := os.Getenv("MINTGATE_BLOCKHASH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("MINTGATE_BLOCKHASH_TTL: %w", err)
		}
		cfg.BlockhashTTL = d
	}
	if v := os.Getenv("MINTGATE_UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("MINTGATE_UPSTREAM_TIMEOUT: %w", err)
		}
		cfg.UpstreamTimeout = d
	}
	if v := os.Getenv("MINTGATE_BODY_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MINTGATE_BODY_LIMIT: %w", err)
		}
		cfg.BodyLimit = n
	}
	if v := os.Getenv("MINTGATE_CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSOrigins = origins
	}

	return cfg, nil
}

// Validate checks the config for the fields the gateway cannot run without.
func (c *Config) Validate() error {
	if c.RPCPrimary == "" {
		return ErrMissingPrimaryRPC
	}
	if !validHTTPURL(c.RPCPrimary) {
		return ErrInvalidPrimaryRPC
	}
	if c.RPCBackup != "" && !validHTTPURL(c.RPCBackup) {
		return ErrInvalidBackupRPC
	}
	if c.CreatorPubkey != "" {
		if _, err := solana.PublicKeyFromBase58(c.CreatorPubkey); err != nil {
			return ErrInvalidCreator
		}
	}
	if c.BlockhashTTL <= 0 {
		return ErrInvalidBlockhashTTL
	}
	if c.BodyLimit <= 0 {
		return ErrInvalidBodyLimit
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
