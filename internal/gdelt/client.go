// Package gdelt fetches article lists from the GDELT DOC 2.0 API.
package gdelt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/metrics"
)

// ErrAPI marks failures talking to the DOC API.
var ErrAPI = errors.New("gdelt api error")

const (
	sourceLabel       = "gdelt"
	rangeLayout       = "20060102150405"
	maxBodyBytes      = 16 << 20
	userAgent         = "news-gatherer/1.0"
	defaultRetryDelay = 2 * time.Second
)

type Options struct {
	Endpoint    string
	Timeout     time.Duration
	MaxRecords  int
	MinInterval time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// OptionsFromConfig maps GDELT_* settings onto Options.
func OptionsFromConfig(cfg *config.Config, logger zerolog.Logger) Options {
	return Options{
		Endpoint:    cfg.GDELTEndpoint,
		Timeout:     cfg.GDELTTimeout,
		MaxRecords:  cfg.GDELTMaxRecords,
		MinInterval: cfg.GDELTMinInterval,
		MaxAttempts: cfg.GDELTMaxAttempts,
		RetryDelay:  defaultRetryDelay,
		Logger:      logger,
	}
}

// Client is safe for concurrent use; the limiter spaces requests from all
// goroutines by MinInterval.
type Client struct {
	http        *http.Client
	endpoint    string
	maxRecords  int
	maxAttempts int
	retryDelay  time.Duration
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

func New(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: invalid GDELT endpoint %q: %v", config.ErrInvalidConfig, endpoint, err)
	}
	if opts.MaxRecords < 1 {
		return nil, fmt.Errorf("%w: max records must be >= 1", config.ErrInvalidConfig)
	}
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &Client{
		http:        httpClient,
		endpoint:    endpoint,
		maxRecords:  opts.MaxRecords,
		maxAttempts: attempts,
		retryDelay:  opts.RetryDelay,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      opts.Logger,
	}, nil
}

func (c *Client) MaxRecords() int {
	return c.maxRecords
}

// FetchRecent lists articles from the trailing timespan ("2h", "1d", ...).
func (c *Client) FetchRecent(ctx context.Context, query, timespan string) (Batch, error) {
	params := c.baseParams(query)
	params.Set("timespan", strings.TrimSpace(timespan))
	return c.fetch(ctx, params)
}

// FetchRange lists articles seen in [start, end). An empty range is an
// empty batch.
func (c *Client) FetchRange(ctx context.Context, query string, start, end time.Time) (Batch, error) {
	if !start.Before(end) {
		return Batch{}, nil
	}
	params := c.baseParams(query)
	params.Set("startdatetime", start.UTC().Format(rangeLayout))
	params.Set("enddatetime", end.UTC().Format(rangeLayout))
	return c.fetch(ctx, params)
}

func (c *Client) baseParams(query string) url.Values {
	params := url.Values{}
	params.Set("query", strings.TrimSpace(query))
	params.Set("mode", "artlist")
	params.Set("format", "json")
	params.Set("maxrecords", strconv.Itoa(c.maxRecords))
	params.Set("sort", "datedesc")
	return params
}

func (c *Client) fetch(ctx context.Context, params url.Values) (Batch, error) {
	requestURL := c.endpoint + "?" + params.Encode()

	var batch Batch
	err := withRetry(ctx, c.maxAttempts, c.retryDelay, func(attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return permanent(err)
		}

		started := time.Now()
		body, err := c.get(ctx, requestURL)
		metrics.SourceRequestDuration.WithLabelValues(sourceLabel).Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.SourceRequests.WithLabelValues(sourceLabel, "error").Inc()
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("gdelt request failed")
			return err
		}

		parsed, err := parseResponse(body)
		if err != nil {
			metrics.SourceRequests.WithLabelValues(sourceLabel, "bad_response").Inc()
			return permanent(err)
		}
		metrics.SourceRequests.WithLabelValues(sourceLabel, "ok").Inc()
		batch = parsed
		return nil
	})
	if err != nil {
		return Batch{}, err
	}

	if batch.Returned >= c.maxRecords {
		c.logger.Debug().
			Int("returned", batch.Returned).
			Int("max_records", c.maxRecords).
			Msg("gdelt response hit the record cap, results may be truncated")
	}
	return batch, nil
}

func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("%w: build request: %w", ErrAPI, err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAPI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrAPI, err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: status %d: %s", ErrAPI, resp.StatusCode, snippet(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, permanent(statusErr)
	}
	return body, nil
}
