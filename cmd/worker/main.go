package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"donationledger/internal/bootstrap"
	"donationledger/internal/infra"
	"donationledger/internal/ledger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")
	if cfg.WatchUserID == "" {
		logger.Fatal().Msg("worker: WATCH_USER_ID is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("worker: failed to open store")
	}
	defer backend.Close()

	svc := bootstrap.NewService(cfg, backend, logger)
	observer := ledger.ObserverFuncs{
		OnApplied: func(s ledger.Snapshot) {
			pending := 0
			for _, tx := range s.Transactions {
				if !tx.Status.Terminal() {
					pending++
				}
			}
			evt := logger.Info().Str("user_id", s.UserID).Int("transactions", len(s.Transactions)).Int("pending", pending)
			if len(s.Transactions) > 0 {
				evt = evt.Time("latest", s.Transactions[0].CreatedAt)
			}
			evt.Msg("worker: history refreshed")
		},
		OnFailed: func(userID string, err error) {
			logger.Error().Err(err).Str("user_id", userID).Msg("worker: history unavailable")
		},
	}
	controller := ledger.NewController(svc, ledger.PollConfig{UserID: cfg.WatchUserID, Interval: cfg.PollInterval}, observer, logger)

	logger.Info().Str("user_id", cfg.WatchUserID).Dur("interval", cfg.PollInterval).Str("backend", backend.Name).Msg("worker started")
	sub := controller.Start(ctx)
	<-sub.Done()
	logger.Info().Msg("worker stopped")
}
