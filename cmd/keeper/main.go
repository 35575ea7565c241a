// Command keeper periodically flips agreements whose grace period has run out
// into default and relays outbox events that missed their publish.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yield-agreement-backend/internal/adapter/guard"
	"yield-agreement-backend/internal/adapter/publisher"
	"yield-agreement-backend/internal/adapter/repository/mysql"
	"yield-agreement-backend/internal/config"
	"yield-agreement-backend/internal/domain/access"
	domguard "yield-agreement-backend/internal/domain/guard"
	"yield-agreement-backend/internal/infrastructure/cache"
	"yield-agreement-backend/internal/infrastructure/db"
	"yield-agreement-backend/internal/infrastructure/logging"
	"yield-agreement-backend/internal/infrastructure/metrics"
	"yield-agreement-backend/internal/usecase/delinquency"
	"yield-agreement-backend/internal/usecase/outbox"
	"yield-agreement-backend/internal/usecase/runner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.Setup("yield-agreement-keeper", cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Error("database", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	rdb, err := cache.OpenRedis(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
	if err != nil {
		log.Error("redis", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	var g domguard.Guard = domguard.NewLocal()
	if cfg.GuardBackend == config.GuardRedis {
		g = guard.NewRedis(rdb, guard.DefaultKey, time.Duration(cfg.GuardTTLSecs)*time.Second, log)
	}
	var uowOpts []mysql.UoWOption
	if cfg.KYCRegistry {
		uowOpts = append(uowOpts, mysql.WithKYCRegistry())
	}
	run := runner.New(mysql.NewGormUoW(gdb, uowOpts...),
		runner.WithGuard(g),
		runner.WithPublisher(publisher.NewRedisStream(rdb, cfg.EventStream, 100_000)),
		runner.WithMetrics(metrics.Agreements()),
		runner.WithLogger(log),
	)
	uc := delinquency.NewUsecase(run, access.NewPolicy(cfg.AdminIDs, cfg.KeeperIDs))
	relay := outbox.NewRelay(run, outbox.DefaultBatch, outbox.DefaultMinAge)

	interval := time.Duration(cfg.KeeperIntervalS) * time.Second
	log.Info("keeper started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweep(ctx, uc, log)
		if _, err := relay.RelayPending(ctx); err != nil {
			log.Warn("event relay failed", "err", err)
		}
		select {
		case <-ctx.Done():
			log.Info("keeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, uc *delinquency.Usecase, log *slog.Logger) {
	flipped, err := uc.SweepGracePeriods(ctx)
	if err != nil {
		log.Warn("grace period sweep incomplete", "flipped", flipped, "err", err)
		return
	}
	if flipped > 0 {
		log.Info("agreements defaulted", "count", flipped)
	}
}
