package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/news-gatherer/internal/cli"
	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/metrics"
)

func runPrune(args []string) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", time.Minute, "Command timeout")
	ledgerBackend := fs.String("ledger", "", "Seen ledger backend: postgres, redis or memory (default NG_LEDGER_BACKEND)")
	var retention config.Span
	fs.Var(&retention, "retention", "Override NG_SEEN_RETENTION (e.g. 72h, 7d)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, closer, err := loadRuntime(envLoader, func(c *config.Config) {
		if v := strings.TrimSpace(*ledgerBackend); v != "" {
			c.LedgerBackend = v
		}
		if retention.IsSet {
			c.SeenRetention = retention.Value
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	defer closer.Close()

	ctx, cancel := signalContext(*timeout)
	defer cancel()

	st, err := openStorage(ctx, cfg, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer st.Close()

	removed, err := st.ledger.Prune(ctx, cfg.SeenRetention)
	if err != nil {
		logger.Error().Err(err).Msg("prune failed")
		fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
		return 1
	}
	metrics.LedgerPruned.Add(float64(removed))

	logger.Info().
		Str("ledger", cfg.LedgerBackendName()).
		Dur("retention", cfg.SeenRetention).
		Int64("removed", removed).
		Msg("seen ledger pruned")
	fmt.Printf("pruned=%d ledger=%s retention=%s\n", removed, cfg.LedgerBackendName(), cfg.SeenRetention)
	return 0
}
