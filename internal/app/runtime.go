package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/news-gatherer/internal/cli"
	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/db"
	"horse.fit/news-gatherer/internal/ledger"
	"horse.fit/news-gatherer/internal/logging"
)

// loadRuntime loads the .env file, the config and the logger. The closer
// flushes the log file, if any.
func loadRuntime(envLoader *cli.EnvLoader, overrides ...func(*config.Config)) (*config.Config, zerolog.Logger, io.Closer, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load(overrides...)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Environment, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, closer, nil
}

// storage is the ledger of a run plus the database pool when one is open.
type storage struct {
	ledger ledger.Ledger
	pool   *db.Pool
}

func (s *storage) Close() {
	if s.ledger != nil {
		_ = s.ledger.Close()
	}
	if s.pool != nil {
		_ = s.pool.Close()
	}
}

// openStorage connects the configured ledger. The pool is opened for the
// postgres ledger, or with wantStore when DATABASE_URL is set.
func openStorage(ctx context.Context, cfg *config.Config, wantStore bool) (*storage, error) {
	st := &storage{}
	needPool := cfg.LedgerBackendName() == config.LedgerPostgres ||
		(wantStore && strings.TrimSpace(cfg.DatabaseURL) != "")
	if needPool {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		st.pool = pool
	}

	l, err := ledger.Open(ctx, cfg, st.pool)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open seen ledger: %w", err)
	}
	st.ledger = l
	return st, nil
}

// signalContext is cancelled on SIGINT or SIGTERM, or after timeout when it
// is positive.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// exitCode maps a run error to the process exit code: configuration errors
// are usage errors.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, config.ErrInvalidConfig) {
		return 2
	}
	return 1
}
