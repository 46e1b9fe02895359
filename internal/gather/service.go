// Package gather runs one fetch-cluster-filter pass: records come from a
// source, are clustered by the story engine, checked against the seen ledger
// and, when a store is configured, persisted.
package gather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/db"
	"horse.fit/news-gatherer/internal/feed"
	"horse.fit/news-gatherer/internal/gdelt"
	"horse.fit/news-gatherer/internal/globaltime"
	"horse.fit/news-gatherer/internal/langdetect"
	"horse.fit/news-gatherer/internal/ledger"
	"horse.fit/news-gatherer/internal/metrics"
	"horse.fit/news-gatherer/internal/story"
)

// Store records runs and keeps emitted clusters. *db.Pool satisfies it.
type Store interface {
	StartRun(ctx context.Context, source, query string) (int64, error)
	FinishRun(ctx context.Context, runID int64, result db.RunResult) error
	SaveCluster(ctx context.Context, runID *int64, c story.Cluster) (bool, error)
}

// RecentFetcher returns the articles of a relative timespan ("2h", "1d").
type RecentFetcher interface {
	FetchRecent(ctx context.Context, query, timespan string) (gdelt.Batch, error)
}

// FeedFetcher downloads a list of RSS or Atom sources.
type FeedFetcher interface {
	FetchAll(ctx context.Context, sources []feed.Source) (feed.Result, error)
}

type Options struct {
	Engine    *story.Engine
	Ledger    ledger.Ledger
	Store     Store
	Detector  langdetect.Detector
	Retention time.Duration
	// BackfillConcurrency bounds parallel window fetches.
	BackfillConcurrency int
	Logger              zerolog.Logger
}

type Service struct {
	engine      *story.Engine
	ledger      ledger.Ledger
	store       Store
	detector    langdetect.Detector
	retention   time.Duration
	concurrency int
	logger      zerolog.Logger
	now         func() time.Time
}

// Result describes one run. Emitted holds the clusters whose canonical URL was
// new to the ledger, in engine order.
type Result struct {
	RunID           *int64
	Source          string
	Fetched         int
	Rejected        int
	LanguagesFilled int
	Requests        int
	Truncated       int
	FeedsFailed     int
	Clusters        int
	New             int
	Suppressed      int
	Stored          int
	Pruned          int64
	LedgerSize      int
	AvgClusterSize  float64
	Emitted         []story.Cluster
}

func NewService(opts Options) (*Service, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("%w: gather requires a story engine", config.ErrInvalidConfig)
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("%w: gather requires a seen ledger", config.ErrInvalidConfig)
	}
	if opts.Retention <= 0 {
		return nil, fmt.Errorf("%w: seen retention must be > 0", config.ErrInvalidConfig)
	}
	detector := opts.Detector
	if detector == nil {
		detector = langdetect.Off{}
	}
	concurrency := opts.BackfillConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		engine:      opts.Engine,
		ledger:      opts.Ledger,
		store:       opts.Store,
		detector:    detector,
		retention:   opts.Retention,
		concurrency: concurrency,
		logger:      opts.Logger,
		now:         globaltime.Now,
	}, nil
}

// GatherGDELT fetches the last timespan of articles matching query and
// processes them as one run.
func (s *Service) GatherGDELT(ctx context.Context, src RecentFetcher, query, timespan string) (Result, error) {
	return s.tracked(ctx, config.SourceGDELT, query, func(runID *int64) (Result, error) {
		batch, err := src.FetchRecent(ctx, query, timespan)
		if err != nil {
			return Result{}, err
		}
		result, err := s.Process(ctx, batch.Records, runID)
		result.Rejected += batch.Rejected
		result.Requests = 1
		return result, err
	})
}

// GatherFeeds downloads every feed and processes the union as one run.
func (s *Service) GatherFeeds(ctx context.Context, src FeedFetcher, sources []feed.Source) (Result, error) {
	if len(sources) == 0 {
		return Result{}, fmt.Errorf("%w: no feeds configured", config.ErrInvalidConfig)
	}
	return s.tracked(ctx, config.SourceRSS, feedQuery(sources), func(runID *int64) (Result, error) {
		fetched, err := src.FetchAll(ctx, sources)
		if err != nil {
			return Result{}, err
		}
		if fetched.Failed == fetched.Feeds {
			return Result{FeedsFailed: fetched.Failed}, fmt.Errorf("all %d feeds failed", fetched.Feeds)
		}
		result, err := s.Process(ctx, fetched.Records, runID)
		result.Rejected += fetched.Rejected
		result.Requests = fetched.Feeds
		result.FeedsFailed = fetched.Failed
		return result, err
	})
}

// Process clusters raws, keeps the clusters whose canonical URL is new and
// stores them. The ledger is pruned and loaded once per call.
func (s *Service) Process(ctx context.Context, raws []story.RawRecord, runID *int64) (Result, error) {
	result := Result{Fetched: len(raws), RunID: runID}
	metrics.ArticlesFetched.Add(float64(len(raws)))

	result.LanguagesFilled = langdetect.FillMissing(s.detector, raws)
	clusters := s.engine.Run(raws)
	result.Clusters = len(clusters)

	session, err := ledger.Start(ctx, s.ledger, s.retention)
	if err != nil {
		return result, fmt.Errorf("open seen ledger: %w", err)
	}
	result.Pruned = session.Pruned()
	metrics.LedgerPruned.Add(float64(result.Pruned))

	fresh, err := session.FilterClusters(ctx, clusters, s.now())
	if err != nil {
		return result, fmt.Errorf("filter clusters: %w", err)
	}
	result.Emitted = fresh
	result.New = len(fresh)
	result.Suppressed = len(clusters) - len(fresh)
	result.LedgerSize = session.Size()
	result.AvgClusterSize = story.Summarize(fresh).AvgPerCluster

	metrics.ClustersEmitted.Add(float64(result.New))
	metrics.ClustersSuppressed.Add(float64(result.Suppressed))
	metrics.LedgerEntries.Set(float64(result.LedgerSize))
	for _, c := range fresh {
		metrics.ClusterSize.Observe(float64(c.Len()))
	}

	if s.store != nil {
		for _, c := range fresh {
			inserted, err := s.store.SaveCluster(ctx, runID, c)
			if err != nil {
				return result, fmt.Errorf("save cluster %s: %w", c.Canonical().CanonicalURL, err)
			}
			if inserted {
				result.Stored++
			}
		}
	}

	s.logger.Debug().
		Int("fetched", result.Fetched).
		Int("clusters", result.Clusters).
		Int("new", result.New).
		Int("suppressed", result.Suppressed).
		Int64("pruned", result.Pruned).
		Msg("processed batch")
	return result, nil
}

// tracked wraps run in StartRun/FinishRun when a store is configured.
func (s *Service) tracked(ctx context.Context, source, query string, run func(runID *int64) (Result, error)) (Result, error) {
	var runID *int64
	if s.store != nil {
		id, err := s.store.StartRun(ctx, source, query)
		if err != nil {
			return Result{}, fmt.Errorf("start run: %w", err)
		}
		runID = &id
	}

	result, runErr := run(runID)
	result.RunID = runID
	result.Source = source

	status := db.RunStatusSucceeded
	if runErr != nil {
		status = db.RunStatusFailed
	}
	metrics.RunsCompleted.WithLabelValues(status).Inc()

	if runID != nil {
		// The run row is closed even when ctx was cancelled mid-run.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		finishErr := s.store.FinishRun(finishCtx, *runID, db.RunResult{
			ArticlesFetched: result.Fetched,
			ArticlesNew:     newArticles(result.Emitted),
			Clusters:        result.Clusters,
			Err:             runErr,
		})
		if finishErr != nil {
			s.logger.Error().Err(finishErr).Int64("run_id", *runID).Msg("failed to finish gather run")
			if runErr == nil {
				runErr = finishErr
			} else {
				runErr = errors.Join(runErr, finishErr)
			}
		}
	}

	event := s.logger.Info()
	if runErr != nil {
		event = s.logger.Error().Err(runErr)
	}
	event.
		Str("source", source).
		Int("fetched", result.Fetched).
		Int("rejected", result.Rejected).
		Int("clusters", result.Clusters).
		Int("new", result.New).
		Int("stored", result.Stored).
		Msg("gather run finished")
	return result, runErr
}

func newArticles(clusters []story.Cluster) int {
	total := 0
	for _, c := range clusters {
		total += c.Len()
	}
	return total
}

func feedQuery(sources []feed.Source) string {
	urls := make([]string, 0, len(sources))
	for _, src := range sources {
		urls = append(urls, src.URL)
	}
	return strings.Join(urls, " ")
}
