package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yield-agreement-backend/internal/adapter/guard"
	httpadp "yield-agreement-backend/internal/adapter/http"
	mw "yield-agreement-backend/internal/adapter/middleware"
	"yield-agreement-backend/internal/adapter/publisher"
	"yield-agreement-backend/internal/adapter/repository/mysql"
	"yield-agreement-backend/internal/config"
	"yield-agreement-backend/internal/domain/access"
	domguard "yield-agreement-backend/internal/domain/guard"
	"yield-agreement-backend/internal/infrastructure/cache"
	"yield-agreement-backend/internal/infrastructure/db"
	"yield-agreement-backend/internal/infrastructure/logging"
	"yield-agreement-backend/internal/infrastructure/metrics"
	"yield-agreement-backend/internal/usecase/agreement"
	"yield-agreement-backend/internal/usecase/delinquency"
	"yield-agreement-backend/internal/usecase/distribution"
	"yield-agreement-backend/internal/usecase/governance"
	"yield-agreement-backend/internal/usecase/repayment"
	"yield-agreement-backend/internal/usecase/runner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.Setup("yield-agreement-api", cfg.AppEnv)
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
	if err := mysql.Migrate(gdb); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Error("database handle", "err", err)
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
	m := metrics.Agreements()
	var uowOpts []mysql.UoWOption
	if cfg.KYCRegistry {
		uowOpts = append(uowOpts, mysql.WithKYCRegistry())
	}
	run := runner.New(mysql.NewGormUoW(gdb, uowOpts...),
		runner.WithGuard(g),
		runner.WithPublisher(publisher.NewRedisStream(rdb, cfg.EventStream, 100_000)),
		runner.WithMetrics(m),
		runner.WithLogger(log),
	)
	policy := access.NewPolicy(cfg.AdminIDs, cfg.KeeperIDs)
	engine := distribution.NewEngine(m, log)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover())
	e.Use(mw.Caller(), mw.IdempotencyMiddleware(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second))

	httpadp.Register(e, httpadp.Handlers{
		Health: httpadp.NewHealthHandler(
			httpadp.Check{Name: "db", Ping: sqlDB.PingContext},
			httpadp.Check{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		),
		Agreements:   httpadp.NewAgreementHandler(agreement.NewUsecase(run, policy, cfg.EarlyRepaymentRebateBps)),
		Payments:     httpadp.NewPaymentHandler(repayment.NewUsecase(run, engine, policy, cfg.EarlyRepaymentRebateBps)),
		Delinquency:  httpadp.NewDelinquencyHandler(delinquency.NewUsecase(run, policy)),
		Governance:   httpadp.NewGovernanceHandler(governance.NewUsecase(run, policy)),
		Distribution: httpadp.NewDistributionHandler(distribution.NewUsecase(run)),
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	addr := ":" + cfg.AppPort
	go func() {
		log.Info("listening", "addr", addr, "db_driver", cfg.DBDriver, "guard", cfg.GuardBackend)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		log.Error("shutdown", "err", err)
	}
}
