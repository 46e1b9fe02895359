package gather

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/gdelt"
	"horse.fit/news-gatherer/internal/story"
)

const (
	DefaultBackfillWindow = time.Hour
	// minSplitSpan is the smallest window a saturated window is split into.
	minSplitSpan = 30 * time.Minute
)

// RangeFetcher returns the articles of an absolute time range.
type RangeFetcher interface {
	FetchRange(ctx context.Context, query string, start, end time.Time) (gdelt.Batch, error)
	MaxRecords() int
}

type windowBatch struct {
	records   []story.RawRecord
	rejected  int
	requests  int
	truncated int
}

// Backfill fetches [now-lookback, now) in windows of the given size and
// clusters everything fetched as a single batch, so stories that straddle a
// window boundary still merge.
func (s *Service) Backfill(ctx context.Context, src RangeFetcher, query string, lookback, window time.Duration) (Result, error) {
	if lookback <= 0 {
		return Result{}, fmt.Errorf("%w: lookback must be > 0", config.ErrInvalidConfig)
	}
	if window <= 0 {
		window = DefaultBackfillWindow
	}
	end := s.now().UTC().Truncate(time.Minute)
	start := end.Add(-lookback)
	windows := splitRange(start, end, window)

	return s.tracked(ctx, config.SourceGDELT, query, func(runID *int64) (Result, error) {
		batches := make([]windowBatch, len(windows))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i, w := range windows {
			g.Go(func() error {
				batch, err := s.fetchWindow(gctx, src, query, w[0], w[1])
				if err != nil {
					return fmt.Errorf("window %s..%s: %w", w[0].Format(time.RFC3339), w[1].Format(time.RFC3339), err)
				}
				batches[i] = batch
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}

		var merged windowBatch
		for _, b := range batches {
			merged.records = append(merged.records, b.records...)
			merged.rejected += b.rejected
			merged.requests += b.requests
			merged.truncated += b.truncated
		}
		s.logger.Info().
			Int("windows", len(windows)).
			Int("requests", merged.requests).
			Int("records", len(merged.records)).
			Msg("backfill fetch complete")

		result, err := s.Process(ctx, merged.records, runID)
		result.Rejected += merged.rejected
		result.Requests = merged.requests
		result.Truncated = merged.truncated
		return result, err
	})
}

// fetchWindow fetches [start, end). A window that comes back full is split
// at its midpoint until halves would drop below minSplitSpan.
func (s *Service) fetchWindow(ctx context.Context, src RangeFetcher, query string, start, end time.Time) (windowBatch, error) {
	batch, err := src.FetchRange(ctx, query, start, end)
	if err != nil {
		return windowBatch{}, err
	}
	out := windowBatch{records: batch.Records, rejected: batch.Rejected, requests: 1}
	if batch.Returned < src.MaxRecords() {
		return out, nil
	}

	span := end.Sub(start)
	if span/2 < minSplitSpan {
		s.logger.Warn().
			Time("start", start).
			Time("end", end).
			Int("returned", batch.Returned).
			Msg("backfill window saturated at minimum span; results truncated")
		out.truncated = 1
		return out, nil
	}

	mid := start.Add(span / 2)
	left, err := s.fetchWindow(ctx, src, query, start, mid)
	if err != nil {
		return windowBatch{}, err
	}
	right, err := s.fetchWindow(ctx, src, query, mid, end)
	if err != nil {
		return windowBatch{}, err
	}
	return windowBatch{
		records:   append(left.records, right.records...),
		rejected:  left.rejected + right.rejected,
		requests:  out.requests + left.requests + right.requests,
		truncated: left.truncated + right.truncated,
	}, nil
}

// splitRange cuts [start, end) into consecutive windows; the last one may be
// shorter.
func splitRange(start, end time.Time, window time.Duration) [][2]time.Time {
	var windows [][2]time.Time
	for cursor := start; cursor.Before(end); cursor = cursor.Add(window) {
		next := cursor.Add(window)
		if next.After(end) {
			next = end
		}
		windows = append(windows, [2]time.Time{cursor, next})
	}
	return windows
}
