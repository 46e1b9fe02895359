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
	"horse.fit/news-gatherer/internal/feed"
	"horse.fit/news-gatherer/internal/gather"
	"horse.fit/news-gatherer/internal/gdelt"
)

func runGather(args []string) int {
	fs := flag.NewFlagSet("gather", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Command timeout")
	source := fs.String("source", "", "Article source: gdelt or rss (default NG_SOURCE)")
	query := fs.String("query", "", "GDELT query (default GDELT_QUERY)")
	timespan := fs.String("timespan", "", "GDELT relative timespan such as 2h or 1d (default GDELT_TIMESPAN)")
	feedsFile := fs.String("feeds", "", "RSS feed list YAML (default NG_FEEDS_FILE)")
	ledgerBackend := fs.String("ledger", "", "Seen ledger backend: postgres, redis or memory (default NG_LEDGER_BACKEND)")
	jsonOutput := fs.String("json-output", "", "Write emitted clusters as NDJSON to this path (- for stdout)")
	var lookback config.Span
	window := config.Span{Value: gather.DefaultBackfillWindow}
	fs.Var(&lookback, "lookback", "Backfill this far into the past (e.g. 12h, 7d) instead of one timespan query")
	fs.Var(&window, "window", "Backfill window size (default 1h)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "gather does not accept positional arguments")
		return 2
	}

	cfg, logger, closer, err := loadRuntime(envLoader, func(c *config.Config) {
		if v := strings.TrimSpace(*source); v != "" {
			c.Source = v
		}
		if v := strings.TrimSpace(*ledgerBackend); v != "" {
			c.LedgerBackend = v
		}
		if v := strings.TrimSpace(*feedsFile); v != "" {
			c.FeedsFile = v
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	defer closer.Close()

	sourceName := strings.ToLower(strings.TrimSpace(cfg.Source))
	if lookback.IsSet && sourceName != config.SourceGDELT {
		fmt.Fprintln(os.Stderr, "--lookback is only supported with --source=gdelt")
		return 2
	}
	gdeltQuery := firstNonEmpty(*query, cfg.GDELTQuery)
	gdeltTimespan := firstNonEmpty(*timespan, cfg.GDELTTimespan)

	ctx, cancel := signalContext(*timeout)
	defer cancel()

	st, err := openStorage(ctx, cfg, true)
	if err != nil {
		logger.Error().Err(err).Msg("gather storage setup failed")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer st.Close()

	var store gather.Store
	if st.pool != nil {
		store = st.pool
	}
	svc, err := newGatherService(cfg, st.ledger, store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build gather service: %v\n", err)
		return exitCode(err)
	}

	var result gather.Result
	switch sourceName {
	case config.SourceRSS:
		sources, loadErr := feed.LoadSources(cfg.FeedsFile)
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to load feeds: %v\n", loadErr)
			return exitCode(loadErr)
		}
		fetcher := feed.NewFetcher(cfg.GDELTTimeout, cfg.BackfillConcurrency, logger)
		result, err = svc.GatherFeeds(ctx, fetcher, sources)
	default:
		client, clientErr := gdelt.New(gdelt.OptionsFromConfig(cfg, logger))
		if clientErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to build GDELT client: %v\n", clientErr)
			return exitCode(clientErr)
		}
		if lookback.IsSet {
			result, err = svc.Backfill(ctx, client, gdeltQuery, lookback.Value, window.Value)
		} else {
			result, err = svc.GatherGDELT(ctx, client, gdeltQuery, gdeltTimespan)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gather failed: %v\n", err)
		return exitCode(err)
	}

	return emitResult(result, *jsonOutput)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
