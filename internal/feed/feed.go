// Package feed turns RSS and Atom items into raw records.
package feed

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/news-gatherer/internal/globaltime"
	"horse.fit/news-gatherer/internal/metrics"
	"horse.fit/news-gatherer/internal/story"
	"horse.fit/news-gatherer/internal/urlcanon"
	recordschema "horse.fit/news-gatherer/schema"
)

const sourceLabel = "rss"

// Result aggregates one pass over all feeds.
type Result struct {
	Records []story.RawRecord
	Feeds   int
	Failed  int
	// Rejected counts items dropped by record validation.
	Rejected int
}

type Fetcher struct {
	client      *http.Client
	concurrency int
	logger      zerolog.Logger
}

func NewFetcher(timeout time.Duration, concurrency int, logger zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		client:      &http.Client{Timeout: timeout},
		concurrency: concurrency,
		logger:      logger,
	}
}

// FetchAll downloads every source. A failing feed is logged and skipped; only
// context cancellation aborts the pass. Records keep source order.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) (Result, error) {
	perSource := make([][]story.RawRecord, len(sources))
	var (
		mu     sync.Mutex
		result = Result{Feeds: len(sources)}
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			records, rejected, err := f.fetchOne(gCtx, src)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				f.logger.Warn().Err(err).Str("feed", src.URL).Msg("feed fetch failed")
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return nil
			}
			perSource[i] = records
			mu.Lock()
			result.Rejected += rejected
			mu.Unlock()
			f.logger.Debug().Str("feed", src.URL).Int("items", len(records)).Msg("feed loaded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for _, records := range perSource {
		result.Records = append(result.Records, records...)
	}
	return result, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, src Source) ([]story.RawRecord, int, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client

	started := time.Now()
	parsed, err := parser.ParseURLWithContext(src.URL, ctx)
	metrics.SourceRequestDuration.WithLabelValues(sourceLabel).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.SourceRequests.WithLabelValues(sourceLabel, "error").Inc()
		return nil, 0, err
	}
	metrics.SourceRequests.WithLabelValues(sourceLabel, "ok").Inc()

	records, rejected := Records(parsed, src, globaltime.UTC())
	return records, rejected, nil
}

// Records converts feed items. seenAt stamps every item; items without a
// link or title, or failing record validation, are counted as rejected.
func Records(parsed *gofeed.Feed, src Source, seenAt time.Time) ([]story.RawRecord, int) {
	if parsed == nil {
		return nil, 0
	}
	lang := src.Language
	if lang == "" {
		lang = strings.TrimSpace(parsed.Language)
	}

	records := make([]story.RawRecord, 0, len(parsed.Items))
	rejected := 0
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		title := CleanTitle(item.Title)
		if link == "" || title == "" {
			rejected++
			continue
		}

		domain := src.Domain
		if domain == "" {
			domain = urlcanon.Domain(link)
		}
		record := story.RawRecord{
			URL:      link,
			Title:    title,
			Domain:   domain,
			Language: lang,
			SeenAt:   seenAt,
		}
		switch {
		case item.PublishedParsed != nil:
			record.PublishedAt = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			record.PublishedAt = item.UpdatedParsed.UTC()
		}

		if err := recordschema.CheckRecord(record); err != nil {
			rejected++
			continue
		}
		records = append(records, record)
	}
	return records, rejected
}

// CleanTitle strips markup and entities that some publishers leave in
// titles and collapses whitespace.
func CleanTitle(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	text := raw
	if strings.ContainsAny(raw, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}
