package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/delivery"
	"github.com/redstone-finance/solana-connector/internal/gateway"
	"github.com/redstone-finance/solana-connector/internal/httpclient"
	"github.com/redstone-finance/solana-connector/internal/publisher"
	"github.com/redstone-finance/solana-connector/internal/pusher"
	"github.com/redstone-finance/solana-connector/internal/rate"
	"github.com/redstone-finance/solana-connector/internal/redstone"
	internalsecrets "github.com/redstone-finance/solana-connector/internal/secrets"
	"github.com/redstone-finance/solana-connector/internal/store"
	"github.com/redstone-finance/solana-connector/pkg/logger"
	"github.com/redstone-finance/solana-connector/pkg/secrets"
	"github.com/redstone-finance/solana-connector/pkg/utils"
	"github.com/redstone-finance/solana-connector/pusher/pkg/config"
)

// stack holds the wired components of one process.
type stack struct {
	cfg     *config.Config
	log     *zap.Logger
	program redstone.ProgramConfig
	client  *rpc.Client
	reader  *pusher.Reader

	// set by withPusher
	service *pusher.Service
	nc      *nats.Conn
	store   store.Store
	events  publisher.Publisher
}

// newStack connects to the cluster RPC and builds the price reader.
func newStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	log := logger.L()

	endpoint, err := cfg.RPCEndpoint()
	if err != nil {
		return nil, err
	}
	program, err := cfg.ProgramConfig()
	if err != nil {
		return nil, err
	}

	client := rpc.New(endpoint)
	log.Info("rpc.connecting",
		zap.String("network", cfg.Network),
		zap.String("endpoint", utils.MaskURL(endpoint)))
	if slot, err := client.GetSlot(ctx, rpc.CommitmentFinalized); err != nil {
		log.Warn("rpc.slot_failed", zap.Error(err))
	} else {
		log.Info("rpc.connected", zap.Uint64("slot", slot))
	}

	return &stack{
		cfg:     cfg,
		log:     log,
		program: program,
		client:  client,
		reader:  pusher.NewReader(logger.Named("reader"), client, program, cfg.PriceCacheTTL),
	}, nil
}

// withPusher loads the signer and wires the push flow with its optional sinks.
func (s *stack) withPusher(ctx context.Context) error {
	cfg := s.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	signer, err := s.loadSigner(ctx)
	if err != nil {
		return fmt.Errorf("load signer: %w", err)
	}
	s.log.Info("Using signer", zap.String("pubkey", signer.PublicKey().String()))

	path, err := delivery.ParsePath(cfg.DeliveryMode)
	if err != nil {
		return err
	}

	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.GatewayRPS,
		Burst:             int(cfg.GatewayRPS) + 1,
	})
	gw := gateway.NewClient(logger.Named("gateway"), cfg.GatewayURLs, cfg.GatewayTimeout, rateMgr)

	var relay *delivery.Relay
	if path == delivery.PathRelay {
		exec := httpclient.New(logger.Named("relay"), rateMgr, &http.Client{Timeout: cfg.RelayTimeout},
			httpclient.RetryPolicy{
				InitialBackoff: cfg.RelayInitialBackoff,
				Multiplier:     cfg.RelayBackoffMultiplier,
				MaxAttempts:    cfg.RelayMaxAttempts,
			}, "relay")
		relayURL := cfg.RelayURL
		if relayURL == "" {
			relayURL = delivery.DefaultRelayURL
		}
		rateMgr.Configure(relayURL, rate.Config{RequestsPerSecond: cfg.RelayRPS, Burst: int(cfg.RelayRPS)})
		relay = delivery.NewRelay(logger.Named("relay"), exec, relayURL)
		s.log.Info("relay.configured",
			zap.String("url", utils.MaskURL(relayURL)),
			zap.Int("max_attempts", cfg.RelayMaxAttempts))
	}
	engine := delivery.NewEngine(logger.Named("delivery"), s.client, relay, delivery.Options{
		Commitment:     rpc.CommitmentType(cfg.Commitment),
		ConfirmTimeout: cfg.ConfirmTimeout,
	})

	opts := []pusher.Option{pusher.WithReader(s.reader)}

	if cfg.RedisAddr != "" {
		s.log.Info("store.connecting",
			zap.String("redis", cfg.RedisAddr),
			zap.String("dsn", utils.MaskDSN(cfg.DatabaseURL)))
		st, err := store.NewHybrid(ctx, store.Options{
			RedisAddr:   cfg.RedisAddr,
			RedisDB:     cfg.RedisDB,
			RedisPass:   cfg.RedisPass,
			PGURL:       cfg.DatabaseURL,
			LastPushTTL: cfg.LastPushTTL,
			PGPool: store.PGPoolConfig{
				MaxConns:          int32(cfg.PGMaxConns),
				MinConns:          int32(cfg.PGMinConns),
				MaxConnLifetime:   cfg.PGMaxConnLifetime,
				MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
				HealthCheckPeriod: cfg.PGHealthCheckPeriod,
			},
		}, logger.Named("store"))
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		s.store = st
		opts = append(opts, pusher.WithRecorder(st))
	}

	var sinks publisher.Fanout
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		pub, err := publisher.NewNATS(nc, cfg.EventSubject, cfg.ServiceName, logger.Named("publisher"))
		if err != nil {
			nc.Close()
			return fmt.Errorf("init nats publisher: %w", err)
		}
		s.nc = nc
		sinks = append(sinks, pub)
	}
	if cfg.RabbitMQURL != "" {
		pub, err := publisher.NewRabbit(cfg.RabbitMQURL, cfg.EventSubject, cfg.ServiceName, logger.Named("publisher"))
		if err != nil {
			return err
		}
		sinks = append(sinks, pub)
	}
	if len(sinks) > 0 {
		s.events = sinks
		opts = append(opts, pusher.WithEventPublisher(sinks))
	}

	s.service = pusher.NewService(logger.Named("pusher"), s.program, cfg.FeedIDs, path, signer, gw, engine, opts...)
	return nil
}

func (s *stack) loadSigner(ctx context.Context) (solana.PrivateKey, error) {
	src := internalsecrets.KeySource{
		PrivateKey: s.cfg.PrivateKey,
		Path:       s.cfg.PrivateKeyPath,
		SecretName: s.cfg.PrivateKeySecret,
	}
	var resolver *internalsecrets.Resolver[solana.PrivateKey]
	if src.PrivateKey == "" && src.Path == "" && src.SecretName != "" {
		provider, err := secrets.NewAWSProvider(ctx, s.cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("create AWS Secrets Manager provider: %w", err)
		}
		resolver = internalsecrets.NewResolver(logger.Named("secrets"), provider,
			secrets.NewCache[solana.PrivateKey](s.cfg.SecretCacheTTL))
	}
	s.log.Info("signer.loading", zap.String("source", signerSource(src)))
	return internalsecrets.LoadSigner(ctx, src, resolver)
}

// signerSource describes where the signer key comes from without exposing it.
func signerSource(src internalsecrets.KeySource) string {
	switch {
	case src.PrivateKey != "":
		return "env:" + utils.MaskKey(src.PrivateKey)
	case src.Path != "":
		return "file:" + src.Path
	case src.SecretName != "":
		return "aws:" + src.SecretName
	default:
		return "none"
	}
}

// close releases connections in reverse order of creation.
func (s *stack) close() {
	var errs []error
	if s.events != nil {
		errs = append(errs, s.events.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Warn("shutdown.close_failed", zap.Error(err))
	}
}
