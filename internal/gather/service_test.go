package gather

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/db"
	"horse.fit/news-gatherer/internal/feed"
	"horse.fit/news-gatherer/internal/gdelt"
	"horse.fit/news-gatherer/internal/ledger"
	"horse.fit/news-gatherer/internal/story"
)

type fakeRecent struct {
	batch gdelt.Batch
	err   error
	calls int
}

func (f *fakeRecent) FetchRecent(_ context.Context, _, _ string) (gdelt.Batch, error) {
	f.calls++
	return f.batch, f.err
}

type fakeRange struct {
	mu         sync.Mutex
	maxRecords int
	respond    func(start, end time.Time) gdelt.Batch
	calls      [][2]time.Time
}

func (f *fakeRange) FetchRange(_ context.Context, _ string, start, end time.Time) (gdelt.Batch, error) {
	f.mu.Lock()
	f.calls = append(f.calls, [2]time.Time{start, end})
	f.mu.Unlock()
	return f.respond(start, end), nil
}

func (f *fakeRange) MaxRecords() int { return f.maxRecords }

type fakeFeeds struct {
	result feed.Result
}

func (f fakeFeeds) FetchAll(context.Context, []feed.Source) (feed.Result, error) {
	return f.result, nil
}

type fakeStore struct {
	mu       sync.Mutex
	started  []string
	finished map[int64]db.RunResult
	saved    map[string]int64
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{finished: map[int64]db.RunResult{}, saved: map[string]int64{}}
}

func (f *fakeStore) StartRun(_ context.Context, source, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, source)
	return int64(len(f.started)), nil
}

func (f *fakeStore) FinishRun(_ context.Context, runID int64, result db.RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[runID] = result
	return nil
}

func (f *fakeStore) SaveCluster(_ context.Context, runID *int64, c story.Cluster) (bool, error) {
	if f.saveErr != nil {
		return false, f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := c.Canonical().CanonicalURL
	if _, ok := f.saved[key]; ok {
		return false, nil
	}
	var id int64
	if runID != nil {
		id = *runID
	}
	f.saved[key] = id
	return true, nil
}

func newEngine(t *testing.T) *story.Engine {
	t.Helper()

	cfg := (&config.Config{
		TimeWindow:          48 * time.Hour,
		SimilarityThreshold: 0.8,
		ShingleSize:         4,
		Locale:              "tr",
		WireDomains:         []string{"aa.com.tr"},
		SeenRetention:       7 * 24 * time.Hour,
	}).Clustering()
	engine, err := story.NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func newService(t *testing.T, l ledger.Ledger, store Store, now time.Time) *Service {
	t.Helper()

	opts := Options{
		Engine:              newEngine(t),
		Ledger:              l,
		Retention:           7 * 24 * time.Hour,
		BackfillConcurrency: 2,
		Logger:              zerolog.Nop(),
	}
	if store != nil {
		opts.Store = store
	}
	svc, err := NewService(opts)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.now = func() time.Time { return now }
	return svc
}

func earthquakeRecords(now time.Time) []story.RawRecord {
	return []story.RawRecord{
		{
			URL:    "https://www.aa.com.tr/tr/gundem/kahramanmarasta-deprem/123?utm_source=x",
			Title:  "Kahramanmaraş'ta 5.1 büyüklüğünde deprem",
			Domain: "aa.com.tr",
			SeenAt: now.Add(-2 * time.Hour),
		},
		{
			URL:    "https://www.hurriyet.com.tr/gundem/kahramanmarasta-deprem-456",
			Title:  "Kahramanmaraş'ta 5.1 büyüklüğünde deprem!",
			Domain: "hurriyet.com.tr",
			SeenAt: now.Add(-time.Hour),
		},
		{
			URL:    "https://www.sozcu.com.tr/ekonomi/borsa-gune-yukselisle-basladi",
			Title:  "Borsa İstanbul güne yükselişle başladı",
			Domain: "sozcu.com.tr",
			SeenAt: now.Add(-30 * time.Minute),
		},
	}
}

func TestProcessSuppressesClustersSeenInEarlierRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	svc := newService(t, ledger.NewMemory(), nil, now)

	first, err := svc.Process(ctx, earthquakeRecords(now), nil)
	if err != nil {
		t.Fatalf("first process: %v", err)
	}
	if first.Fetched != 3 {
		t.Fatalf("unexpected fetched count: %d", first.Fetched)
	}
	if first.Clusters != 2 || first.New != 2 || first.Suppressed != 0 {
		t.Fatalf("unexpected first run counts: clusters=%d new=%d suppressed=%d", first.Clusters, first.New, first.Suppressed)
	}
	if first.Emitted[0].Canonical().Domain != "sozcu.com.tr" {
		t.Fatalf("expected newest cluster first, got %q", first.Emitted[0].Canonical().Domain)
	}
	if first.AvgClusterSize != 1.5 {
		t.Fatalf("unexpected average cluster size: %v", first.AvgClusterSize)
	}

	second, err := svc.Process(ctx, earthquakeRecords(now), nil)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if second.New != 0 || second.Suppressed != 2 {
		t.Fatalf("unexpected second run counts: new=%d suppressed=%d", second.New, second.Suppressed)
	}
	if second.LedgerSize != 2 {
		t.Fatalf("unexpected ledger size: %d", second.LedgerSize)
	}
}

func TestProcessStoresNewClusters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	store := newFakeStore()
	svc := newService(t, ledger.NewMemory(), store, now)

	runID := int64(42)
	result, err := svc.Process(ctx, earthquakeRecords(now), &runID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Stored != 2 {
		t.Fatalf("unexpected stored count: %d", result.Stored)
	}
	if got := store.saved["https://www.aa.com.tr/tr/gundem/kahramanmarasta-deprem/123"]; got != 42 {
		t.Fatalf("wire canonical not stored under run 42: %d (saved=%v)", got, store.saved)
	}
}

func TestProcessSaveFailureIsReturned(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	svc := newService(t, ledger.NewMemory(), store, time.Now().UTC())

	_, err := svc.Process(context.Background(), earthquakeRecords(time.Now().UTC()), nil)
	if err == nil || !errors.Is(err, store.saveErr) {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestGatherGDELTRecordsRun(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	store := newFakeStore()
	svc := newService(t, ledger.NewMemory(), store, now)
	src := &fakeRecent{batch: gdelt.Batch{Records: earthquakeRecords(now), Returned: 4, Rejected: 1}}

	result, err := svc.GatherGDELT(context.Background(), src, "sourcecountry:turkey", "2h")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if result.RunID == nil || *result.RunID != 1 {
		t.Fatalf("unexpected run id: %v", result.RunID)
	}
	if result.Rejected != 1 || result.Requests != 1 {
		t.Fatalf("unexpected rejected/requests: %d/%d", result.Rejected, result.Requests)
	}
	if len(store.started) != 1 || store.started[0] != config.SourceGDELT {
		t.Fatalf("unexpected started runs: %v", store.started)
	}
	finished := store.finished[1]
	if finished.Err != nil {
		t.Fatalf("unexpected run error: %v", finished.Err)
	}
	if finished.ArticlesFetched != 3 || finished.ArticlesNew != 3 || finished.Clusters != 2 {
		t.Fatalf("unexpected finished result: %+v", finished)
	}
}

func TestGatherGDELTFailureMarksRunFailed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newService(t, ledger.NewMemory(), store, time.Now().UTC())
	src := &fakeRecent{err: gdelt.ErrAPI}

	_, err := svc.GatherGDELT(context.Background(), src, "q", "1h")
	if !errors.Is(err, gdelt.ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
	if !errors.Is(store.finished[1].Err, gdelt.ErrAPI) {
		t.Fatalf("run not marked failed: %+v", store.finished[1])
	}
}

func TestGatherFeedsRejectsWhenEveryFeedFails(t *testing.T) {
	t.Parallel()

	svc := newService(t, ledger.NewMemory(), nil, time.Now().UTC())
	sources := []feed.Source{{URL: "https://a.example/rss"}, {URL: "https://b.example/rss"}}

	_, err := svc.GatherFeeds(context.Background(), fakeFeeds{result: feed.Result{Feeds: 2, Failed: 2}}, sources)
	if err == nil {
		t.Fatalf("expected error when every feed fails")
	}

	now := time.Now().UTC()
	result, err := svc.GatherFeeds(context.Background(), fakeFeeds{result: feed.Result{
		Records: earthquakeRecords(now),
		Feeds:   2,
		Failed:  1,
	}}, sources)
	if err != nil {
		t.Fatalf("gather feeds: %v", err)
	}
	if result.Source != config.SourceRSS || result.FeedsFailed != 1 || result.New != 2 {
		t.Fatalf("unexpected feed result: source=%s failed=%d new=%d", result.Source, result.FeedsFailed, result.New)
	}
}

func TestBackfillSplitsSaturatedWindows(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newService(t, ledger.NewMemory(), nil, time.Now().UTC())
	svc.now = func() time.Time { return now }

	src := &fakeRange{
		maxRecords: 2,
		respond: func(start, end time.Time) gdelt.Batch {
			if end.Sub(start) >= time.Hour {
				return gdelt.Batch{Returned: 2}
			}
			return gdelt.Batch{Returned: 1}
		},
	}

	result, err := svc.Backfill(context.Background(), src, "q", 2*time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Requests != 6 {
		t.Fatalf("expected 2 full windows plus 4 halves, got %d requests", result.Requests)
	}
	if result.Truncated != 0 {
		t.Fatalf("unexpected truncation: %d", result.Truncated)
	}
	for _, call := range src.calls {
		if call[1].Sub(call[0]) < minSplitSpan {
			t.Fatalf("window below minimum span: %v..%v", call[0], call[1])
		}
	}
}

func TestBackfillReportsTruncationAtMinimumSpan(t *testing.T) {
	t.Parallel()

	svc := newService(t, ledger.NewMemory(), nil, time.Now().UTC())
	src := &fakeRange{
		maxRecords: 1,
		respond: func(time.Time, time.Time) gdelt.Batch {
			return gdelt.Batch{Returned: 1}
		},
	}

	result, err := svc.Backfill(context.Background(), src, "q", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Requests != 3 || result.Truncated != 2 {
		t.Fatalf("unexpected requests/truncated: %d/%d", result.Requests, result.Truncated)
	}
}

func TestBackfillClustersAcrossWindowBoundaries(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Truncate(time.Minute)
	svc := newService(t, ledger.NewMemory(), nil, now)
	src := &fakeRange{
		maxRecords: 100,
		respond: func(start, end time.Time) gdelt.Batch {
			domain := fmt.Sprintf("site%d.com.tr", start.Unix()%7)
			rec := story.RawRecord{
				URL:    fmt.Sprintf("https://%s/gundem/deprem-%d", domain, start.Unix()),
				Title:  "Kahramanmaraş'ta 5.1 büyüklüğünde deprem",
				Domain: domain,
				SeenAt: end.Add(-time.Minute),
			}
			return gdelt.Batch{Records: []story.RawRecord{rec}, Returned: 1}
		},
	}

	result, err := svc.Backfill(context.Background(), src, "q", 3*time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Fetched != 3 || result.Clusters != 1 {
		t.Fatalf("expected one cluster from 3 windows, got fetched=%d clusters=%d", result.Fetched, result.Clusters)
	}
	if result.Emitted[0].Len() != 3 {
		t.Fatalf("unexpected cluster size: %d", result.Emitted[0].Len())
	}
}

func TestBackfillRejectsNonPositiveLookback(t *testing.T) {
	t.Parallel()

	svc := newService(t, ledger.NewMemory(), nil, time.Now().UTC())
	_, err := svc.Backfill(context.Background(), &fakeRange{maxRecords: 1}, "q", 0, time.Hour)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSplitRangeKeepsShortTail(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	windows := splitRange(start, start.Add(150*time.Minute), time.Hour)
	if len(windows) != 3 {
		t.Fatalf("unexpected window count: %d", len(windows))
	}
	if got := windows[2][1].Sub(windows[2][0]); got != 30*time.Minute {
		t.Fatalf("unexpected tail span: %v", got)
	}
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewService(Options{Ledger: ledger.NewMemory(), Retention: time.Hour}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected missing engine error, got %v", err)
	}
	if _, err := NewService(Options{Engine: newEngine(t), Retention: time.Hour}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected missing ledger error, got %v", err)
	}
	if _, err := NewService(Options{Engine: newEngine(t), Ledger: ledger.NewMemory()}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected retention error, got %v", err)
	}
}

func TestWriteNDJSON(t *testing.T) {
	t.Parallel()

	engine := newEngine(t)
	clusters := engine.Run(earthquakeRecords(time.Now().UTC()))

	var buf bytes.Buffer
	if err := WriteNDJSON(&buf, clusters); err != nil {
		t.Fatalf("write ndjson: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var sizes []int
	for scanner.Scan() {
		var line struct {
			Size      int `json:"size"`
			Canonical struct {
				CanonicalURL string `json:"canonical_url"`
				SourceType   string `json:"source_type"`
			} `json:"canonical"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("unexpected line %q: %v", scanner.Text(), err)
		}
		sizes = append(sizes, line.Size)
		if line.Canonical.CanonicalURL == "" {
			t.Fatalf("missing canonical url in %q", scanner.Text())
		}
	}
	if len(sizes) != 2 || sizes[0] != 1 || sizes[1] != 2 {
		t.Fatalf("unexpected sizes: %v", sizes)
	}
}
