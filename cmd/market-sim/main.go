package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"housemarket/internal/config"
	"housemarket/internal/db"
	"housemarket/internal/market"
	"housemarket/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadSimFromEnv(time.Now())
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	seeds, err := config.LoadHouseSeeds(cfg.HousesFile)
	if err != nil {
		logger.Error("load houses failed", "err", err)
		os.Exit(1)
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	m, err := market.New(seeds, market.NewSource(cfg.Seed), cfg.Dynamics(), logger)
	if err != nil {
		logger.Error("market init failed", "err", err)
		os.Exit(1)
	}

	logger.Info("simulation started", "seed", cfg.Seed, "days", cfg.Days, "start", cfg.StartDate.Format(market.DateLayout))
	reports, err := market.NewSimulator(m, nil, cfg.Simulation(), logger).Run(ctx)
	if err != nil {
		logger.Error("simulation failed", "err", err, "days_completed", len(reports))
		os.Exit(1)
	}

	if err := st.Save(ctx, m.Snapshot()); err != nil {
		logger.Error("save snapshot failed", "err", err)
		os.Exit(1)
	}

	executed := 0
	for _, r := range reports {
		executed += r.TradesExecuted
	}
	logger.Info("simulation complete", "days", len(reports), "users", m.UserCount(), "trades_executed", executed)
}

func openStore(ctx context.Context, cfg config.SimConfig, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using file store", "dir", cfg.DataDir)
		return store.NewFile(cfg.DataDir), func() {}, nil
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg := store.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("using postgres store")
	return pg, pool.Close, nil
}
