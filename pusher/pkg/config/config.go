package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/redstone-finance/solana-connector/internal/gateway"
	"github.com/redstone-finance/solana-connector/internal/redstone"
	pkgconfig "github.com/redstone-finance/solana-connector/pkg/config"
)

// Known cluster names.
const (
	NetworkMainnet  = "mainnet-beta"
	NetworkTestnet  = "testnet"
	NetworkDevnet   = "devnet"
	NetworkLocalnet = "localnet"
)

const localnetRPC = "http://127.0.0.1:8899"

// Config holds the runtime configuration of the pusher.
type Config struct {
	ServiceName string
	Env         string // "dev", "uat", "prod"
	LogLevel    string
	AWSRegion   string
	Port        int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Cluster and signer
	Network          string
	RPCURL           string
	RPCURLForce      bool
	PrivateKey       string // base58
	PrivateKeyPath   string // JSON keypair file
	PrivateKeySecret string // AWS Secrets Manager name
	SecretCacheTTL   time.Duration

	// Program and data
	ProgramID          string
	DataServiceID      string
	UniqueSignersCount int
	FeedIDs            []string
	GatewayURLs        []string
	GatewayTimeout     time.Duration
	GatewayRPS         float64

	// Delivery
	PushInterval           time.Duration
	DeliveryMode           string // "rpc" or "relay"
	RelayURL               string
	RelayMaxAttempts       int
	RelayInitialBackoff    time.Duration
	RelayBackoffMultiplier float64
	RelayTimeout           time.Duration
	RelayRPS               float64
	ConfirmTimeout         time.Duration
	Commitment             string

	// Reads
	PriceCacheTTL time.Duration

	// Optional side outputs; empty disables them.
	RedisAddr    string
	RedisDB      int
	RedisPass    string
	LastPushTTL  time.Duration
	DatabaseURL  string
	NATSURL      string
	RabbitMQURL  string
	EventSubject string

	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:      pkgconfig.GetEnv("SERVICE_NAME", "solana-pusher"),
		Env:              pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:         pkgconfig.GetEnv("LOG_LEVEL", "info"),
		AWSRegion:        pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		Port:             pkgconfig.GetEnvInt("PORT", 9040),
		HTTPReadTimeout:  pkgconfig.GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: pkgconfig.GetEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
		HTTPIdleTimeout:  pkgconfig.GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    pkgconfig.GetEnvInt("HTTP_BODY_LIMIT", 64*1024),

		Network:          pkgconfig.GetEnv("NETWORK", NetworkTestnet),
		RPCURL:           pkgconfig.GetEnv("RPC_URL", ""),
		RPCURLForce:      pkgconfig.GetEnvBool("RPC_URL_FORCE", false),
		PrivateKey:       pkgconfig.GetEnv("PRIVATE_KEY", ""),
		PrivateKeyPath:   pkgconfig.GetEnv("PRIVATE_KEY_PATH", ""),
		PrivateKeySecret: pkgconfig.GetEnv("PRIVATE_KEY_SECRET", ""),
		SecretCacheTTL:   pkgconfig.GetEnvDuration("SECRET_CACHE_TTL", 24*time.Hour),

		ProgramID:          pkgconfig.GetEnv("PROGRAM_ID", redstone.DefaultProgramID),
		DataServiceID:      pkgconfig.GetEnv("DATA_SERVICE_ID", redstone.DefaultDataServiceID),
		UniqueSignersCount: pkgconfig.GetEnvInt("UNIQUE_SIGNERS_COUNT", redstone.DefaultUniqueSignersCount),
		FeedIDs:            pkgconfig.GetEnvList("FEED_IDS", []string{"AVAX"}),
		GatewayURLs:        pkgconfig.GetEnvList("GATEWAY_URLS", gateway.DefaultGatewayURLs),
		GatewayTimeout:     pkgconfig.GetEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		GatewayRPS:         pkgconfig.GetEnvFloat("GATEWAY_RPS", 5),

		PushInterval:           pkgconfig.GetEnvDuration("PUSH_INTERVAL", time.Minute),
		DeliveryMode:           pkgconfig.GetEnv("DELIVERY_MODE", "rpc"),
		RelayURL:               pkgconfig.GetEnv("RELAY_URL", ""),
		RelayMaxAttempts:       pkgconfig.GetEnvInt("RELAY_MAX_ATTEMPTS", 3),
		RelayInitialBackoff:    pkgconfig.GetEnvDuration("RELAY_INITIAL_BACKOFF", 100*time.Millisecond),
		RelayBackoffMultiplier: pkgconfig.GetEnvFloat("RELAY_BACKOFF_MULTIPLIER", 2),
		RelayTimeout:           pkgconfig.GetEnvDuration("RELAY_TIMEOUT", 10*time.Second),
		RelayRPS:               pkgconfig.GetEnvFloat("RELAY_RPS", 5),
		ConfirmTimeout:         pkgconfig.GetEnvDuration("CONFIRM_TIMEOUT", 35*time.Second),
		Commitment:             pkgconfig.GetEnv("COMMITMENT", "confirmed"),

		PriceCacheTTL: pkgconfig.GetEnvDuration("PRICE_CACHE_TTL", 5*time.Second),

		RedisAddr:    pkgconfig.GetEnv("REDIS_ADDR", ""),
		RedisDB:      pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass:    pkgconfig.GetEnv("REDIS_PASS", ""),
		LastPushTTL:  pkgconfig.GetEnvDuration("LAST_PUSH_TTL", 24*time.Hour),
		DatabaseURL:  pkgconfig.GetEnv("DATABASE_URL", ""),
		NATSURL:      pkgconfig.GetEnv("NATS_URL", ""),
		RabbitMQURL:  pkgconfig.GetEnv("RABBITMQ_URL", ""),
		EventSubject: pkgconfig.GetEnv("EVENT_SUBJECT", "evt.oracle.push.v1"),

		PGMaxConns:          pkgconfig.GetEnvInt("PG_MAX_CONNS", 5),
		PGMinConns:          pkgconfig.GetEnvInt("PG_MIN_CONNS", 1),
		PGMaxConnLifetime:   pkgconfig.GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   pkgconfig.GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: pkgconfig.GetEnvDuration("PG_HEALTH_CHECK_PERIOD", time.Minute),
	}
}

// RPCEndpoint resolves the JSON-RPC URL for the configured network. RPC_URL
// replaces the public mainnet endpoint, and any other one when RPCURLForce is set.
func (c *Config) RPCEndpoint() (string, error) {
	if c.RPCURL != "" && (c.RPCURLForce || c.Network == NetworkMainnet) {
		return c.RPCURL, nil
	}
	switch c.Network {
	case NetworkMainnet, NetworkTestnet, NetworkDevnet:
		return fmt.Sprintf("https://api.%s.solana.com", c.Network), nil
	case NetworkLocalnet:
		return localnetRPC, nil
	default:
		return "", fmt.Errorf("unknown network %q", c.Network)
	}
}

// ProgramConfig builds the immutable program constants.
func (c *Config) ProgramConfig() (redstone.ProgramConfig, error) {
	return redstone.NewProgramConfig(c.ProgramID, c.DataServiceID, c.UniqueSignersCount)
}

// Validate reports startup misconfiguration.
func (c *Config) Validate() error {
	var problems []string
	if len(c.FeedIDs) == 0 {
		problems = append(problems, "FEED_IDS is empty")
	}
	for _, id := range c.FeedIDs {
		if _, err := redstone.EncodeFeedID(id); err != nil {
			problems = append(problems, fmt.Sprintf("FEED_IDS entry %q: %v", id, err))
		}
	}
	if c.GatewayRPS <= 0 {
		problems = append(problems, "GATEWAY_RPS must be positive")
	}
	if c.RelayRPS <= 0 {
		problems = append(problems, "RELAY_RPS must be positive")
	}
	if c.DatabaseURL != "" && c.RedisAddr == "" {
		problems = append(problems, "DATABASE_URL requires REDIS_ADDR")
	}
	if len(c.GatewayURLs) == 0 {
		problems = append(problems, "GATEWAY_URLS is empty")
	}
	if c.UniqueSignersCount <= 0 {
		problems = append(problems, "UNIQUE_SIGNERS_COUNT must be positive")
	}
	if c.DeliveryMode != "rpc" && c.DeliveryMode != "relay" {
		problems = append(problems, fmt.Sprintf("DELIVERY_MODE %q is not rpc or relay", c.DeliveryMode))
	}
	if c.PrivateKey == "" && c.PrivateKeyPath == "" && c.PrivateKeySecret == "" {
		problems = append(problems, "one of PRIVATE_KEY, PRIVATE_KEY_PATH or PRIVATE_KEY_SECRET is required")
	}
	if _, err := c.RPCEndpoint(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
