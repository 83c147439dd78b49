package main

import (
	"context"
	"flag"
	"os"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logging"
	"storefront/internal/seed"
)

func main() {
	var staffPassword string
	flag.StringVar(&staffPassword, "staff-password", os.Getenv("SEED_STAFF_PASSWORD"),
		"Password for the seeded admin, support and cashier accounts; empty skips them")
	flag.Parse()

	cfg := config.FromEnv()
	logger := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("app", "seed").Logger()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	if err := seed.Apply(ctx, pool, staffPassword); err != nil {
		logger.Fatal().Err(err).Msg("seed apply")
	}

	logger.Info().Bool("staff", staffPassword != "").Msg("seed applied")
}
