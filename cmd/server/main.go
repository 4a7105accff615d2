package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/olyamironova/deferswap/internal/adapter/cache"
	"github.com/olyamironova/deferswap/internal/adapter/in_memory"
	"github.com/olyamironova/deferswap/internal/adapter/pebblestore"
	"github.com/olyamironova/deferswap/internal/adapter/pg"
	apigrpc "github.com/olyamironova/deferswap/internal/api/grpc"
	apihttp "github.com/olyamironova/deferswap/internal/api/http"
	"github.com/olyamironova/deferswap/internal/api/ws"
	"github.com/olyamironova/deferswap/internal/config"
	"github.com/olyamironova/deferswap/internal/core"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/logger"
	"github.com/olyamironova/deferswap/internal/notify"
	"github.com/olyamironova/deferswap/internal/port"
	"go.uber.org/zap"
	"gopkg.in/tomb.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("deferswap: %v", err)
	}
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	zl, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	sugar := zl.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())

	tokens := make([]domain.Token, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens = append(tokens, t.Token())
	}
	warnVolatileBank(sugar, cfg.Store.Driver)
	registry := in_memory.NewRegistry(tokens...)
	bank := in_memory.NewBank(cfg.Ledger.LedgerAddress())

	dispatcher := notify.NewDispatcher(sugar.Named("notify"), cfg.Notify.QueueSize, cfg.Notify.Timeout)
	dispatcher.AddHook(notify.NewLogHook(sugar.Named("hook")))
	hub := ws.NewHub(sugar.Named("ws"))
	defer hub.Close()
	dispatcher.AddHook(hub)
	dispatcher.AddSink(hub)

	opts := []core.Option{
		core.WithNotifier(dispatcher),
		core.WithLogger(sugar.Named("engine")),
	}
	if cfg.Redis.Enabled {
		rdb := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		opts = append(opts, core.WithCache(cache.NewRedisCache(rdb, cfg.Redis.TTL)))
		pub := notify.NewRedisPublisher(rdb, cfg.Redis.Channel)
		dispatcher.AddHook(pub)
		dispatcher.AddSink(pub)
	} else {
		opts = append(opts, core.WithCache(in_memory.NewCache()))
	}
	dispatcher.Start()
	defer func() {
		if err := dispatcher.Stop(); err != nil {
			sugar.Warnw("dispatcher_stop_failed", "err", err)
		}
	}()

	eng := core.NewEngine(core.Config{
		Admin:  cfg.Ledger.AdminAddress(),
		Ledger: cfg.Ledger.LedgerAddress(),
		Fee: domain.FeeSchedule{
			RateBps: cfg.Ledger.FeeRateBps,
			Sink:    cfg.Ledger.FeeSinkAddress(),
		},
		HookEnabled: cfg.Ledger.HookEnabled,
	}, repo, bank, registry, opts...)

	httpSrv := apihttp.NewHTTPServer(eng, bank,
		apihttp.WithWallet(bank, cfg.Bank.Faucet),
		apihttp.WithStream(hub),
		apihttp.WithRateLimit(cfg.RateLimit),
		apihttp.WithLogger(sugar.Named("http")),
	)
	grpcSrv := apigrpc.NewGRPCServer(eng, sugar.Named("grpc"))

	t, tctx := tomb.WithContext(ctx)
	t.Go(func() error { return httpSrv.Run(tctx, cfg.HTTPAddr) })
	t.Go(func() error { return grpcSrv.Run(tctx, cfg.GRPCAddr) })
	sugar.Infow("server_started",
		"http", cfg.HTTPAddr,
		"grpc", cfg.GRPCAddr,
		"store", cfg.Store.Driver,
		"redis", cfg.Redis.Enabled,
		"tokens", len(tokens),
	)

	err = t.Wait()
	sugar.Infow("server_stopped", "err", err)
	return err
}

// warnVolatileBank flags stores that outlive the in-memory bank.
func warnVolatileBank(log *zap.SugaredLogger, driver string) {
	if driver == "memory" {
		return
	}
	log.Warnw("bank_not_persistent",
		"store", driver,
		"note", "orders survive restarts but bank balances and escrow do not",
	)
}

func openRepository(ctx context.Context, sc config.StoreConfig) (port.Repository, error) {
	switch sc.Driver {
	case "postgres":
		repo, err := pg.NewPgRepo(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close(ctx)
			return nil, fmt.Errorf("postgres: migrate: %w", err)
		}
		return repo, nil
	case "pebble":
		store, err := pebblestore.Open(sc.PebblePath)
		if err != nil {
			return nil, fmt.Errorf("pebble: %w", err)
		}
		return store, nil
	default:
		return in_memory.NewMemoryRepo(), nil
	}
}
