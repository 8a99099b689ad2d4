package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/groom-salon/internal/config"
	"github.com/Spok95/groom-salon/internal/domain/catalog"
	"github.com/Spok95/groom-salon/internal/domain/pets"
	"github.com/Spok95/groom-salon/internal/domain/reservations"
	"github.com/Spok95/groom-salon/internal/domain/staff"
	"github.com/Spok95/groom-salon/internal/domain/subscriptions"
	"github.com/Spok95/groom-salon/internal/infra/db"
	httpx "github.com/Spok95/groom-salon/internal/infra/http"
	"github.com/Spok95/groom-salon/internal/infra/logger"
	"github.com/Spok95/groom-salon/internal/infra/notify"
	"github.com/Spok95/groom-salon/internal/report"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"
)

// Системный actor для фоновых проходов (метла статусов, реконсиляция).
const systemActorID = 0

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func interval(log *slog.Logger, raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn("bad interval, using default", "raw", raw, "default", fallback)
		return fallback
	}
	return d
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	tg, err := notify.New(cfg.Telegram.Token, cfg.Telegram.AdminChatID, log)
	if err != nil {
		log.Error("telegram init failed", "err", err)
		return
	}
	if tg == nil {
		log.Info("telegram notifications disabled")
	}

	ledger := subscriptions.NewLedger(subscriptions.NewPgStore(pool), log)
	resRepo := reservations.NewRepo(pool)
	catalogRepo := catalog.NewRepo(pool)
	coord := reservations.NewCoordinator(resRepo, ledger, catalogRepo, tg, log)

	api := httpx.NewAPI(coord, ledger,
		pets.NewRepo(pool), catalogRepo, staff.NewRepo(pool),
		report.NewRepo(pool), log)

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, api)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	// Метла статусов: expired/exhausted только для отчётности,
	// корректность списаний от неё не зависит.
	go func() {
		t := time.NewTicker(interval(log, cfg.Sweep.StatusInterval, 10*time.Minute))
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := ledger.AutoUpdateStatus(ctx); err != nil {
					log.Error("status sweep failed", "err", err)
				}
			}
		}
	}()

	// Реконсиляция: снимаем резервы, оставшиеся без брони после
	// падения процесса между резервом и записью брони.
	go func() {
		t := time.NewTicker(interval(log, cfg.Sweep.ReconcileInterval, 30*time.Minute))
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := coord.ReconcileOrphans(ctx, systemActorID, time.Hour)
				if err != nil {
					log.Error("reconcile failed", "err", err)
				} else if n > 0 {
					log.Warn("orphaned reserves released", "count", n)
				}
			}
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
