package ledger

import (
	"context"
	"time"

	"horse.fit/news-gatherer/internal/globaltime"
)

// SeenStore is the slice of *db.Pool the postgres ledger needs.
type SeenStore interface {
	LoadSeenURLs(ctx context.Context) (map[string]int64, error)
	DeleteSeenBefore(ctx context.Context, cutoffMillis int64) (int64, error)
	InsertSeenURL(ctx context.Context, canonicalURL string, firstSeenMillis int64) (bool, error)
}

// Postgres stores entries in gatherer.seen_urls. Upserts rely on
// ON CONFLICT DO NOTHING, so concurrent runs record a URL once.
type Postgres struct {
	store SeenStore
	now   func() time.Time
}

func NewPostgres(store SeenStore) *Postgres {
	return &Postgres{store: store, now: globaltime.Now}
}

func (p *Postgres) LoadAll(ctx context.Context) (map[string]int64, error) {
	seen, err := p.store.LoadSeenURLs(ctx)
	if err != nil {
		return nil, wrap("load", err)
	}
	return seen, nil
}

func (p *Postgres) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := p.store.DeleteSeenBefore(ctx, cutoffMillis(p.now(), retention))
	if err != nil {
		return 0, wrap("prune", err)
	}
	return removed, nil
}

func (p *Postgres) Upsert(ctx context.Context, canonicalURL string, epochMillis int64) error {
	if _, err := p.store.InsertSeenURL(ctx, canonicalURL, epochMillis); err != nil {
		return wrap("upsert", err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (p *Postgres) Close() error { return nil }
