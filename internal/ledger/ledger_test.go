package ledger

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/story"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func TestMemoryPruneBeforeLoadDropsExpiredEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := NewMemory()
	mem.now = fixedClock

	old := testNow.Add(-8 * 24 * time.Hour).UnixMilli()
	recent := testNow.Add(-2 * 24 * time.Hour).UnixMilli()
	if err := mem.Upsert(ctx, "https://example.com/old", old); err != nil {
		t.Fatalf("upsert old: %v", err)
	}
	if err := mem.Upsert(ctx, "https://example.com/recent", recent); err != nil {
		t.Fatalf("upsert recent: %v", err)
	}

	session, err := Start(ctx, mem, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if session.Pruned() != 1 {
		t.Fatalf("unexpected pruned count: %d", session.Pruned())
	}
	if session.Known("https://example.com/old") {
		t.Fatalf("expired entry survived prune")
	}
	if !session.Known("https://example.com/recent") {
		t.Fatalf("recent entry was pruned")
	}
	if session.Size() != 1 {
		t.Fatalf("unexpected session size: %d", session.Size())
	}
}

func TestMemoryUpsertKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := NewMemory()
	if err := mem.Upsert(ctx, "https://example.com/a", 100); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mem.Upsert(ctx, "https://example.com/a", 200); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	all, err := mem.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if all["https://example.com/a"] != 100 {
		t.Fatalf("first seen overwritten: %d", all["https://example.com/a"])
	}

	all["https://example.com/b"] = 1
	again, _ := mem.LoadAll(ctx)
	if _, ok := again["https://example.com/b"]; ok {
		t.Fatalf("LoadAll leaked internal map")
	}
}

func TestMemoryCancelledContextIsLedgerError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().LoadAll(ctx)
	if !errors.Is(err, ErrLedger) {
		t.Fatalf("expected ErrLedger, got %v", err)
	}
}

type countingLedger struct {
	*Memory
	upserts map[string]int
}

func (c *countingLedger) Upsert(ctx context.Context, canonicalURL string, epochMillis int64) error {
	c.upserts[canonicalURL]++
	return c.Memory.Upsert(ctx, canonicalURL, epochMillis)
}

func TestFilterClustersInsertsInBatchDuplicateOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := newEngine(t)
	raws := []story.RawRecord{
		{
			URL:    "https://www.hurriyet.com.tr/gundem/deprem-123?utm_source=twitter",
			Title:  "Kahramanmaraş'ta 5.1 büyüklüğünde deprem",
			Domain: "hurriyet.com.tr",
			SeenAt: testNow.Add(-time.Hour),
		},
		{
			URL:    "https://www.hurriyet.com.tr/gundem/deprem-123/",
			Title:  "Son dakika: Kahramanmaraş'ta 5.1 büyüklüğünde deprem",
			Domain: "hurriyet.com.tr",
			SeenAt: testNow.Add(-30 * time.Minute),
		},
		{
			URL:    "https://www.hurriyet.com.tr/gundem/deprem-123",
			Title:  "Borsa güne yükselişle başladı",
			Domain: "hurriyet.com.tr",
			SeenAt: testNow.Add(-20 * time.Minute),
		},
	}
	clusters := engine.Run(raws)
	if len(clusters) != 2 {
		t.Fatalf("unexpected cluster count: %d", len(clusters))
	}

	l := &countingLedger{Memory: NewMemory(), upserts: map[string]int{}}
	session, err := Start(ctx, l, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	fresh, err := session.FilterClusters(ctx, clusters, testNow)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("expected one new cluster, got %d", len(fresh))
	}

	const canonical = "https://www.hurriyet.com.tr/gundem/deprem-123"
	if got := l.upserts[canonical]; got != 1 {
		t.Fatalf("unexpected upsert count for %q: %d", canonical, got)
	}
	all, _ := l.LoadAll(ctx)
	if all[canonical] != testNow.UnixMilli() {
		t.Fatalf("unexpected first seen: %d", all[canonical])
	}

	again, err := session.FilterClusters(ctx, clusters, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("filter again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected already seen clusters to be dropped, got %d", len(again))
	}
}

func TestFilterNewSkipsKnownAndRepeated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := NewMemory()
	seen := map[string]int64{"https://a.example/1": 1}
	candidates := []story.Record{
		{CanonicalURL: "https://a.example/1"},
		{CanonicalURL: "https://a.example/2"},
		{CanonicalURL: "https://a.example/2"},
		{CanonicalURL: "  "},
	}
	fresh, err := FilterNew(ctx, mem, seen, candidates, testNow)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(fresh) != 1 || fresh[0].CanonicalURL != "https://a.example/2" {
		t.Fatalf("unexpected fresh records: %#v", fresh)
	}
	if seen["https://a.example/2"] != testNow.UnixMilli() {
		t.Fatalf("seen map not updated")
	}
}

type failingLedger struct{ *Memory }

func (f *failingLedger) Upsert(context.Context, string, int64) error {
	return wrap("upsert", errors.New("connection reset"))
}

func TestFilterNewAbortsOnLedgerError(t *testing.T) {
	t.Parallel()

	l := &failingLedger{Memory: NewMemory()}
	_, err := FilterNew(context.Background(), l, map[string]int64{}, []story.Record{{CanonicalURL: "https://a.example/x"}}, testNow)
	if !errors.Is(err, ErrLedger) {
		t.Fatalf("expected ErrLedger, got %v", err)
	}
}

func TestStartRejectsNonPositiveRetention(t *testing.T) {
	t.Parallel()

	_, err := Start(context.Background(), NewMemory(), 0)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

type fakeSeenStore struct {
	rows        map[string]int64
	lastCutoff  int64
	failInserts bool
}

func (f *fakeSeenStore) LoadSeenURLs(context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(f.rows))
	for k, v := range f.rows {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSeenStore) DeleteSeenBefore(_ context.Context, cutoff int64) (int64, error) {
	f.lastCutoff = cutoff
	var n int64
	for k, v := range f.rows {
		if v < cutoff {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeSeenStore) InsertSeenURL(_ context.Context, url string, millis int64) (bool, error) {
	if f.failInserts {
		return false, errors.New("pq: relation does not exist")
	}
	if _, ok := f.rows[url]; ok {
		return false, nil
	}
	f.rows[url] = millis
	return true, nil
}

func TestPostgresLedgerUsesRetentionCutoff(t *testing.T) {
	t.Parallel()

	store := &fakeSeenStore{rows: map[string]int64{
		"https://a.example/old": testNow.Add(-8 * 24 * time.Hour).UnixMilli(),
		"https://a.example/new": testNow.Add(-time.Hour).UnixMilli(),
	}}
	pg := NewPostgres(store)
	pg.now = fixedClock

	session, err := Start(context.Background(), pg, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if want := testNow.Add(-7 * 24 * time.Hour).UnixMilli(); store.lastCutoff != want {
		t.Fatalf("unexpected cutoff: got %d want %d", store.lastCutoff, want)
	}
	if session.Known("https://a.example/old") || !session.Known("https://a.example/new") {
		t.Fatalf("unexpected session contents")
	}
}

func TestPostgresLedgerWrapsErrors(t *testing.T) {
	t.Parallel()

	pg := NewPostgres(&fakeSeenStore{rows: map[string]int64{}, failInserts: true})
	err := pg.Upsert(context.Background(), "https://a.example/x", 1)
	if !errors.Is(err, ErrLedger) {
		t.Fatalf("expected ErrLedger, got %v", err)
	}
	if !strings.Contains(err.Error(), "relation does not exist") {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	t.Parallel()

	l, err := Open(context.Background(), &config.Config{LedgerBackend: " Memory "}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := l.(*Memory); !ok {
		t.Fatalf("unexpected ledger type %T", l)
	}
}

func TestOpenPostgresWithoutPool(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), &config.Config{LedgerBackend: config.LedgerPostgres}, nil)
	if !errors.Is(err, ErrLedger) {
		t.Fatalf("expected ErrLedger, got %v", err)
	}
}

func TestRedisLedgerIntegration(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	key := "news-gatherer:test:" + strings.ReplaceAll(t.Name(), "/", ":")
	r, err := NewRedis(ctx, RedisOptions{Addr: addr, Key: key})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer r.Close()
	defer r.client.Del(ctx, key)
	r.now = fixedClock

	if err := r.Upsert(ctx, "https://a.example/old", testNow.Add(-8*24*time.Hour).UnixMilli()); err != nil {
		t.Fatalf("upsert old: %v", err)
	}
	if err := r.Upsert(ctx, "https://a.example/new", testNow.UnixMilli()); err != nil {
		t.Fatalf("upsert new: %v", err)
	}
	if err := r.Upsert(ctx, "https://a.example/new", 1); err != nil {
		t.Fatalf("upsert repeat: %v", err)
	}

	removed, err := r.Prune(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("unexpected removed count: %d", removed)
	}
	all, err := r.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 1 || all["https://a.example/new"] != testNow.UnixMilli() {
		t.Fatalf("unexpected ledger contents: %#v", all)
	}
}

func newEngine(t *testing.T) *story.Engine {
	t.Helper()

	cfg := (&config.Config{
		TimeWindow:          48 * time.Hour,
		SimilarityThreshold: 0.8,
		ShingleSize:         4,
		Locale:              "tr",
		SeenRetention:       7 * 24 * time.Hour,
	}).Clustering()
	engine, err := story.NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}
