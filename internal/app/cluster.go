package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/news-gatherer/internal/cli"
	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/gather"
	"horse.fit/news-gatherer/internal/langdetect"
	"horse.fit/news-gatherer/internal/ledger"
	"horse.fit/news-gatherer/internal/story"
	recordschema "horse.fit/news-gatherer/schema"
)

func runCluster(args []string) int {
	fs := flag.NewFlagSet("cluster", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: news-gatherer cluster [flags] <records.json|records.jsonl|-> ...")
		fs.PrintDefaults()
	}

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", time.Minute, "Command timeout")
	ledgerBackend := fs.String("ledger", config.LedgerMemory, "Seen ledger backend: memory, redis or postgres")
	jsonOutput := fs.String("json-output", "", "Write emitted clusters as NDJSON to this path (- for stdout)")
	threshold := fs.Float64("threshold", 0, "Override NG_SIMILARITY_THRESHOLD")
	var window config.Span
	fs.Var(&window, "window", "Override NG_TIME_WINDOW (e.g. 24h, 2d)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, logger, closer, err := loadRuntime(envLoader, func(c *config.Config) {
		c.LedgerBackend = *ledgerBackend
		if *threshold > 0 {
			c.SimilarityThreshold = *threshold
		}
		if window.IsSet {
			c.TimeWindow = window.Value
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	defer closer.Close()

	records, rejected, err := readRecordInputs(fs.Args(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read records: %v\n", err)
		return 1
	}

	ctx, cancel := signalContext(*timeout)
	defer cancel()

	st, err := openStorage(ctx, cfg, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer st.Close()

	svc, err := newGatherService(cfg, st.ledger, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build clustering service: %v\n", err)
		return exitCode(err)
	}

	result, err := svc.Process(ctx, records, nil)
	if err != nil {
		logger.Error().Err(err).Msg("cluster failed")
		fmt.Fprintf(os.Stderr, "Cluster failed: %v\n", err)
		return 1
	}
	result.Rejected += rejected

	return emitResult(result, *jsonOutput)
}

// readRecordInputs reads every path ("-" is stdin). Invalid records are logged
// and counted; unreadable files fail the command.
func readRecordInputs(paths []string, logger zerolog.Logger) ([]story.RawRecord, int, error) {
	var (
		all      []story.RawRecord
		rejected int
	)
	for _, path := range paths {
		path = strings.TrimSpace(path)
		var r io.Reader = os.Stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return nil, 0, err
			}
			defer f.Close()
			r = f
		}

		records, invalid, err := recordschema.ReadRecords(r)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", path, err)
		}
		for _, recErr := range invalid {
			logger.Warn().Str("file", path).Int("position", recErr.Position).Err(recErr.Err).Msg("skipping invalid record")
		}
		all = append(all, records...)
		rejected += len(invalid)
	}
	return all, rejected, nil
}

func newGatherService(cfg *config.Config, l ledger.Ledger, store gather.Store, logger zerolog.Logger) (*gather.Service, error) {
	engine, err := story.NewEngine(cfg.Clustering())
	if err != nil {
		return nil, err
	}
	detector, err := langdetect.New(cfg.LanguageDetector)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	return gather.NewService(gather.Options{
		Engine:              engine,
		Ledger:              l,
		Store:               store,
		Detector:            detector,
		Retention:           cfg.SeenRetention,
		BackfillConcurrency: cfg.BackfillConcurrency,
		Logger:              logger,
	})
}

// emitResult prints the console view unless NDJSON goes to stdout, then
// writes the NDJSON output when requested.
func emitResult(result gather.Result, jsonOutput string) int {
	jsonOutput = strings.TrimSpace(jsonOutput)
	if jsonOutput != "-" {
		if len(result.Emitted) == 0 {
			fmt.Println("No new stories.")
		} else if err := writeClusters(os.Stdout, result.Emitted); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render clusters: %v\n", err)
			return 1
		}
		if err := writeSummary(os.Stdout, result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render summary: %v\n", err)
			return 1
		}
	}
	if jsonOutput != "" {
		if err := writeJSONOutput(jsonOutput, result.Emitted); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write JSON output: %v\n", err)
			return 1
		}
	}
	return 0
}
