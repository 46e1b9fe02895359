package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunResult is recorded when a gather run finishes.
type RunResult struct {
	ArticlesFetched int
	ArticlesNew     int
	Clusters        int
	Err             error
}

// StartRun opens a gather_runs row and returns its id.
func (p *Pool) StartRun(ctx context.Context, source, query string) (int64, error) {
	const q = `
INSERT INTO gatherer.gather_runs (source, query, status)
VALUES ($1, $2, $3)
RETURNING run_id
`
	var runID int64
	if err := p.QueryRow(ctx, q, strings.TrimSpace(source), strings.TrimSpace(query), RunStatusRunning).Scan(&runID); err != nil {
		return 0, fmt.Errorf("insert gather run: %w", err)
	}
	return runID, nil
}

// FinishRun closes a run with its counters. A non-nil result.Err marks the
// run failed.
func (p *Pool) FinishRun(ctx context.Context, runID int64, result RunResult) error {
	status := RunStatusSucceeded
	var errMsg *string
	if result.Err != nil {
		status = RunStatusFailed
		msg := result.Err.Error()
		errMsg = &msg
	}

	const q = `
UPDATE gatherer.gather_runs
SET status = $2,
	articles_fetched = $3,
	articles_new = $4,
	clusters = $5,
	error_message = $6,
	finished_at = now()
WHERE run_id = $1
`
	tag, err := p.Exec(ctx, q, runID, status, result.ArticlesFetched, result.ArticlesNew, result.Clusters, errMsg)
	if err != nil {
		return fmt.Errorf("finish gather run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish gather run %d: %w", runID, ErrNoRows)
	}
	return nil
}

// ArchiveStats summarizes the store for the stats endpoint.
type ArchiveStats struct {
	Stories       int64      `json:"stories"`
	Articles      int64      `json:"articles"`
	SeenURLs      int64      `json:"seen_urls"`
	Runs          int64      `json:"runs"`
	FailedRuns    int64      `json:"failed_runs"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

func (p *Pool) Stats(ctx context.Context) (ArchiveStats, error) {
	const q = `
SELECT
	(SELECT COUNT(*)::BIGINT FROM gatherer.stories),
	(SELECT COUNT(*)::BIGINT FROM gatherer.story_articles),
	(SELECT COUNT(*)::BIGINT FROM gatherer.seen_urls),
	(SELECT COUNT(*)::BIGINT FROM gatherer.gather_runs),
	(SELECT COUNT(*)::BIGINT FROM gatherer.gather_runs WHERE status = 'failed')
`
	var stats ArchiveStats
	if err := p.QueryRow(ctx, q).Scan(
		&stats.Stories,
		&stats.Articles,
		&stats.SeenURLs,
		&stats.Runs,
		&stats.FailedRuns,
	); err != nil {
		return ArchiveStats{}, fmt.Errorf("query archive stats: %w", err)
	}

	const lastRun = `
SELECT started_at, status
FROM gatherer.gather_runs
ORDER BY started_at DESC, run_id DESC
LIMIT 1
`
	var (
		startedAt time.Time
		status    string
	)
	err := p.QueryRow(ctx, lastRun).Scan(&startedAt, &status)
	switch {
	case IsNoRows(err):
	case err != nil:
		return ArchiveStats{}, fmt.Errorf("query last gather run: %w", err)
	default:
		stats.LastRunAt = &startedAt
		stats.LastRunStatus = status
	}
	return stats, nil
}
