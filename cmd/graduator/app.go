package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krazyTry/meteora-graduator/internal/config"
	"github.com/krazyTry/meteora-graduator/internal/curve"
	"github.com/krazyTry/meteora-graduator/internal/fees"
	"github.com/krazyTry/meteora-graduator/internal/metrics"
	"github.com/krazyTry/meteora-graduator/internal/migration"
	"github.com/krazyTry/meteora-graduator/internal/mirror"
	"github.com/krazyTry/meteora-graduator/internal/mirror/mongo"
	"github.com/krazyTry/meteora-graduator/internal/mirror/postgres"
	"github.com/krazyTry/meteora-graduator/internal/pricing"
	"github.com/krazyTry/meteora-graduator/internal/service"
	"github.com/krazyTry/meteora-graduator/internal/trade"
	solanago "github.com/krazyTry/meteora-graduator/solana"
)

// app owns every client the engine uses. Close releases them in reverse order.
type app struct {
	cfg          config.Config
	log          *zap.Logger
	engine       *service.Engine
	orchestrator *migration.Orchestrator
	server       *metrics.Server
	closers      []func()
}

type signers struct {
	payer, creator, partner, trader solana.PrivateKey
}

func loadSigners(cfg config.Config) (signers, error) {
	var s signers
	for _, k := range []struct {
		name  string
		value string
		dst   *solana.PrivateKey
	}{
		{"payer-key", cfg.PayerKey, &s.payer},
		{"creator-key", cfg.CreatorKey, &s.creator},
		{"partner-key", cfg.PartnerKey, &s.partner},
		{"trader-key", cfg.TraderKey, &s.trader},
	} {
		key, err := config.Key(k.value)
		if err != nil {
			return signers{}, fmt.Errorf("%s: %w", k.name, err)
		}
		*k.dst = key
	}
	if s.trader == nil {
		s.trader = s.payer
	}
	return s, nil
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	keys, err := loadSigners(cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	a.server = metrics.NewServer(cfg.MetricsAddr, registry)

	rpcClient := rpc.New(cfg.RPCURL)
	a.closers = append(a.closers, func() { _ = rpcClient.Close() })
	var chain solanago.RPC = rpcClient
	if cfg.RPCRPS > 0 {
		chain = solanago.NewLimitedRPC(chain, cfg.RPCRPS, cfg.RPCBurst)
	}

	var wsClient *ws.Client
	if cfg.WSURL != "" {
		wsClient, err = ws.Connect(ctx, cfg.WSURL)
		if err != nil {
			return fmt.Errorf("connect ws: %w", err)
		}
		a.closers = append(a.closers, wsClient.Close)
	}

	reader := curve.NewReader(chain,
		curve.WithCommitment(cfg.Commitment),
		curve.WithConcurrency(cfg.SweepConcurrency),
		curve.WithLogger(log.Named("reader")),
	)
	sender := solanago.NewSender(chain, wsClient, solanago.SenderConfig{
		Commitment:       cfg.Commitment,
		MaxRetries:       cfg.SendRetries,
		ConfirmTimeout:   cfg.ConfirmTimeout,
		ComputeUnitPrice: cfg.ComputeUnitPrice,
	}, log.Named("sender"))

	store, err := a.openMirror(ctx)
	if err != nil {
		return err
	}

	var redisClient redis.UniversalClient
	var source pricing.ReferencePriceSource
	if cfg.RedisAddr != "" {
		redisSource, err := pricing.NewRedisSource(pricing.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.PricePrefix,
		}, m)
		if err != nil {
			return err
		}
		redisClient = redisSource.Client()
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		source = redisSource
	} else {
		prices, err := config.Prices(cfg.StaticPrices)
		if err != nil {
			return err
		}
		source = pricing.NewStaticSource(prices)
	}

	var lease migration.Lease = migration.NewLocalLease()
	if cfg.Lease == "redis" {
		lease = migration.NewRedisLease(redisClient, "", cfg.LeaseTTL)
	}

	a.orchestrator = migration.NewOrchestrator(reader, store, sender, keys.payer, migration.Config{
		Concurrency:  cfg.SweepConcurrency,
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
		MaxBackoff:   cfg.MaxBackoff,
		Lease:        lease,
	}, log.Named("migration"), m)

	a.engine = service.New(service.Components{
		Oracle:   pricing.NewOracle(reader, source, log.Named("pricing"), m),
		Trader:   trade.NewExecutor(reader, sender, keys.trader, log.Named("trade"), m),
		Migrator: a.orchestrator,
		Fees:     fees.NewService(reader, sender, keys.creator, keys.partner, log.Named("fees"), m),
	}, log.Named("service"))
	return nil
}

func (a *app) openMirror(ctx context.Context) (mirror.Store, error) {
	var store mirror.Store
	switch a.cfg.Mirror {
	case "postgres":
		pg, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close(ctx)
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		store = pg
	case "mongo":
		mg, err := mongo.NewStore(ctx, a.cfg.MongoURI, a.cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := mg.EnsureIndexes(ctx); err != nil {
			_ = mg.Close(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		store = mg
	default:
		a.log.Warn("memory mirror selected, tracked pools are lost on exit")
		store = mirror.NewMemoryStore()
	}
	a.closers = append(a.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	})
	return store, nil
}
