// Package ledger tracks canonical URLs that earlier runs already emitted so a
// story is reported once across runs.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/db"
	"horse.fit/news-gatherer/internal/story"
)

// ErrLedger wraps every storage failure. A run that sees it must abort.
var ErrLedger = errors.New("seen ledger failure")

// Ledger is the persistent canonical URL -> first-seen epoch millis map.
// Upsert is insert-if-absent: the first-seen value is never overwritten.
type Ledger interface {
	LoadAll(ctx context.Context) (map[string]int64, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
	Upsert(ctx context.Context, canonicalURL string, epochMillis int64) error
	Close() error
}

// Open builds the backend selected by NG_LEDGER_BACKEND. pool is required for
// the postgres backend and ignored otherwise.
func Open(ctx context.Context, cfg *config.Config, pool *db.Pool) (Ledger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	switch cfg.LedgerBackendName() {
	case config.LedgerPostgres:
		if pool == nil {
			return nil, fmt.Errorf("%w: postgres ledger requires a database pool", ErrLedger)
		}
		return NewPostgres(pool), nil
	case config.LedgerRedis:
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisLedgerKey,
		})
	case config.LedgerMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown ledger backend %q", config.ErrInvalidConfig, cfg.LedgerBackend)
	}
}

// FilterNew returns the candidates whose canonical URL is absent from seen.
// Each new URL is added to seen and upserted right away, so a URL repeated
// inside candidates is returned once.
func FilterNew(ctx context.Context, l Ledger, seen map[string]int64, candidates []story.Record, now time.Time) ([]story.Record, error) {
	millis := now.UnixMilli()
	fresh := make([]story.Record, 0, len(candidates))
	for _, candidate := range candidates {
		key := strings.TrimSpace(candidate.CanonicalURL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		if err := l.Upsert(ctx, key, millis); err != nil {
			return nil, err
		}
		seen[key] = millis
		fresh = append(fresh, candidate)
	}
	return fresh, nil
}

// FilterClusters keeps the clusters whose canonical passes FilterNew.
func FilterClusters(ctx context.Context, l Ledger, seen map[string]int64, clusters []story.Cluster, now time.Time) ([]story.Cluster, error) {
	millis := now.UnixMilli()
	fresh := make([]story.Cluster, 0, len(clusters))
	for _, c := range clusters {
		key := strings.TrimSpace(c.Canonical().CanonicalURL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		if err := l.Upsert(ctx, key, millis); err != nil {
			return nil, err
		}
		seen[key] = millis
		fresh = append(fresh, c)
	}
	return fresh, nil
}

// Session is the per-run view of a ledger: pruned once, loaded once, then
// written through while filtering.
type Session struct {
	ledger Ledger
	seen   map[string]int64
	pruned int64
}

// Start prunes entries older than retention and loads the rest.
func Start(ctx context.Context, l Ledger, retention time.Duration) (*Session, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: ledger is nil", ErrLedger)
	}
	if retention <= 0 {
		return nil, fmt.Errorf("%w: retention must be > 0", config.ErrInvalidConfig)
	}
	pruned, err := l.Prune(ctx, retention)
	if err != nil {
		return nil, err
	}
	seen, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if seen == nil {
		seen = map[string]int64{}
	}
	return &Session{ledger: l, seen: seen, pruned: pruned}, nil
}

func (s *Session) FilterClusters(ctx context.Context, clusters []story.Cluster, now time.Time) ([]story.Cluster, error) {
	return FilterClusters(ctx, s.ledger, s.seen, clusters, now)
}

func (s *Session) FilterNew(ctx context.Context, candidates []story.Record, now time.Time) ([]story.Record, error) {
	return FilterNew(ctx, s.ledger, s.seen, candidates, now)
}

// Known reports whether canonicalURL is already in the loaded view.
func (s *Session) Known(canonicalURL string) bool {
	_, ok := s.seen[strings.TrimSpace(canonicalURL)]
	return ok
}

func (s *Session) Size() int {
	return len(s.seen)
}

func (s *Session) Pruned() int64 {
	return s.pruned
}

func cutoffMillis(now time.Time, retention time.Duration) int64 {
	return now.Add(-retention).UnixMilli()
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLedger, op, err)
}
