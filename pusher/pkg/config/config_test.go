package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redstone-finance/solana-connector/internal/gateway"
	"github.com/redstone-finance/solana-connector/internal/redstone"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVICE_NAME", "ENV", "LOG_LEVEL", "PORT", "NETWORK", "RPC_URL", "RPC_URL_FORCE",
		"PRIVATE_KEY", "PRIVATE_KEY_PATH", "PRIVATE_KEY_SECRET", "PROGRAM_ID",
		"DATA_SERVICE_ID", "UNIQUE_SIGNERS_COUNT", "FEED_IDS", "GATEWAY_URLS",
		"PUSH_INTERVAL", "DELIVERY_MODE", "RELAY_URL", "RELAY_MAX_ATTEMPTS",
		"RELAY_INITIAL_BACKOFF", "RELAY_BACKOFF_MULTIPLIER", "CONFIRM_TIMEOUT",
		"COMMITMENT", "REDIS_ADDR", "DATABASE_URL", "NATS_URL", "RABBITMQ_URL",
		"EVENT_SUBJECT", "PRICE_CACHE_TTL", "GATEWAY_RPS", "RELAY_RPS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, "solana-pusher", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 9040, cfg.Port)
	assert.Equal(t, NetworkTestnet, cfg.Network)
	assert.Equal(t, redstone.DefaultProgramID, cfg.ProgramID)
	assert.Equal(t, "redstone-avalanche-prod", cfg.DataServiceID)
	assert.Equal(t, 3, cfg.UniqueSignersCount)
	assert.Equal(t, []string{"AVAX"}, cfg.FeedIDs)
	assert.Equal(t, gateway.DefaultGatewayURLs, cfg.GatewayURLs)
	assert.Equal(t, time.Minute, cfg.PushInterval)
	assert.Equal(t, "rpc", cfg.DeliveryMode)
	assert.Equal(t, 3, cfg.RelayMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.RelayInitialBackoff)
	assert.Equal(t, 2.0, cfg.RelayBackoffMultiplier)
	assert.Equal(t, 35*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, "evt.oracle.push.v1", cfg.EventSubject)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("NETWORK", "devnet")
	t.Setenv("FEED_IDS", "AVAX, ETH ,BTC")
	t.Setenv("UNIQUE_SIGNERS_COUNT", "5")
	t.Setenv("PUSH_INTERVAL", "10s")
	t.Setenv("DELIVERY_MODE", "relay")
	t.Setenv("RELAY_MAX_ATTEMPTS", "2")
	t.Setenv("RELAY_BACKOFF_MULTIPLIER", "1.5")
	t.Setenv("RPC_URL_FORCE", "true")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, NetworkDevnet, cfg.Network)
	assert.Equal(t, []string{"AVAX", "ETH", "BTC"}, cfg.FeedIDs)
	assert.Equal(t, 5, cfg.UniqueSignersCount)
	assert.Equal(t, 10*time.Second, cfg.PushInterval)
	assert.Equal(t, "relay", cfg.DeliveryMode)
	assert.Equal(t, 2, cfg.RelayMaxAttempts)
	assert.Equal(t, 1.5, cfg.RelayBackoffMultiplier)
	assert.True(t, cfg.RPCURLForce)
}

func TestRPCEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"testnet", Config{Network: NetworkTestnet}, "https://api.testnet.solana.com", false},
		{"devnet", Config{Network: NetworkDevnet}, "https://api.devnet.solana.com", false},
		{"mainnet", Config{Network: NetworkMainnet}, "https://api.mainnet-beta.solana.com", false},
		{"mainnet override", Config{Network: NetworkMainnet, RPCURL: "https://rpc.example"}, "https://rpc.example", false},
		{"override ignored off mainnet", Config{Network: NetworkDevnet, RPCURL: "https://rpc.example"}, "https://api.devnet.solana.com", false},
		{"forced override", Config{Network: NetworkDevnet, RPCURL: "https://rpc.example", RPCURLForce: true}, "https://rpc.example", false},
		{"localnet", Config{Network: NetworkLocalnet}, "http://127.0.0.1:8899", false},
		{"unknown", Config{Network: "moon"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.RPCEndpoint()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIVATE_KEY")

	cfg.PrivateKeyPath = "/keys/id.json"
	require.NoError(t, cfg.Validate())

	cfg.DeliveryMode = "carrier-pigeon"
	cfg.FeedIDs = nil
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELIVERY_MODE")
	assert.Contains(t, err.Error(), "FEED_IDS")
}

func TestValidate_RejectsUnusableSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"oversized feed id", func(c *Config) { c.FeedIDs = []string{"AVAX", strings.Repeat("X", 33)} }, "FEED_IDS entry"},
		{"zero gateway rps", func(c *Config) { c.GatewayRPS = 0 }, "GATEWAY_RPS"},
		{"negative relay rps", func(c *Config) { c.RelayRPS = -1 }, "RELAY_RPS"},
		{"postgres without redis", func(c *Config) { c.DatabaseURL = "postgres://localhost/pusher" }, "DATABASE_URL requires REDIS_ADDR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg := Load()
			cfg.PrivateKeyPath = "/keys/id.json"
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_PostgresWithRedis(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	cfg.PrivateKeyPath = "/keys/id.json"
	cfg.RedisAddr = "localhost:6379"
	cfg.DatabaseURL = "postgres://localhost/pusher"
	require.NoError(t, cfg.Validate())
}

func TestProgramConfig(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	pc, err := cfg.ProgramConfig()
	require.NoError(t, err)
	assert.Equal(t, redstone.DefaultDiscriminator, pc.Discriminator)
	assert.Equal(t, redstone.DefaultProgramID, pc.ProgramID.String())

	cfg.ProgramID = "not-base58!"
	_, err = cfg.ProgramConfig()
	require.Error(t, err)
}
