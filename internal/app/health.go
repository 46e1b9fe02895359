package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/news-gatherer/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Connectivity check timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, closer, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closer.Close()

	ctx, cancel := signalContext(*timeout)
	defer cancel()

	st, err := openStorage(ctx, cfg, true)
	if err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer st.Close()

	if _, err := st.ledger.LoadAll(ctx); err != nil {
		logger.Error().Err(err).Msg("seen ledger read failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}

	database := "skipped"
	if st.pool != nil {
		database = "ok"
	}
	logger.Info().
		Dur("timeout", *timeout).
		Str("ledger", cfg.LedgerBackendName()).
		Str("database", database).
		Msg("health check passed")
	fmt.Printf("ok: ledger=%s database=%s\n", cfg.LedgerBackendName(), database)
	return 0
}
