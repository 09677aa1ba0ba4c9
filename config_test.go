package mintgate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("MINTGATE_RPC_PRIMARY", "https://api.mainnet-beta.solana.com")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPCPrimary)
	assert.Empty(t, cfg.RPCBackup)
	assert.Equal(t, uint32(DefaultMaxIndex), cfg.MaxIndex)
	assert.Equal(t, DefaultBlockhashTTL, cfg.BlockhashTTL)
	assert.Equal(t, DefaultUpstreamTimeout, cfg.UpstreamTimeout)
	assert.Equal(t, int64(DefaultBodyLimit), cfg.BodyLimit)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)

	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MINTGATE_RPC_PRIMARY", "https://rpc.example.com")
	t.Setenv("MINTGATE_RPC_BACKUP", "https://backup.example.com")
	t.Setenv("MINTGATE_LISTEN", ":9090")
	t.Setenv("MINTGATE_MAX_INDEX", "4999")
	t.Setenv("MINTGATE_BLOCKHASH_TTL", "5s")
	t.Setenv("MINTGATE_UPSTREAM_TIMEOUT", "10s")
	t.Setenv("MINTGATE_BODY_LIMIT", "1024")
	t.Setenv("MINTGATE_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "https://backup.example.com", cfg.RPCBackup)
	assert.Equal(t, uint32(4999), cfg.MaxIndex)
	assert.Equal(t, 5*time.Second, cfg.BlockhashTTL)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, int64(1024), cfg.BodyLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)

	require.NoError(t, cfg.Validate())
}

func TestFromEnv_MalformedValues(t *testing.T) {
	t.Setenv("MINTGATE_RPC_PRIMARY", "https://rpc.example.com")
	t.Setenv("MINTGATE_MAX_INDEX", "not-a-number")

	_, err := FromEnv()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "MINTGATE_MAX_INDEX")
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RPCPrimary:      "https://rpc.example.com",
			MaxIndex:        9999,
			BlockhashTTL:    DefaultBlockhashTTL,
			UpstreamTimeout: DefaultUpstreamTimeout,
			BodyLimit:       DefaultBodyLimit,
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing primary", func(t *testing.T) {
		cfg := valid()
		cfg.RPCPrimary = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingPrimaryRPC)
	})

	t.Run("primary not a url", func(t *testing.T) {
		cfg := valid()
		cfg.RPCPrimary = "not a url"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidPrimaryRPC)
	})

	t.Run("backup not a url", func(t *testing.T) {
		cfg := valid()
		cfg.RPCBackup = "ftp://nope"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidBackupRPC)
	})

	t.Run("creator must be base58 pubkey", func(t *testing.T) {
		cfg := valid()
		cfg.CreatorPubkey = "WRONGKEY-0O"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidCreator)
	})

	t.Run("valid creator passes", func(t *testing.T) {
		cfg := valid()
		cfg.CreatorPubkey = "So11111111111111111111111111111111111111112"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("non-positive ttl", func(t *testing.T) {
		cfg := valid()
		cfg.BlockhashTTL = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidBlockhashTTL)
	})

	t.Run("non-positive body limit", func(t *testing.T) {
		cfg := valid()
		cfg.BodyLimit = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidBodyLimit)
	})
}
