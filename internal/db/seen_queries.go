package db

import (
	"context"
	"fmt"
)

// LoadSeenURLs returns every ledger entry keyed by canonical URL.
func (p *Pool) LoadSeenURLs(ctx context.Context) (map[string]int64, error) {
	const q = `
SELECT canonical_url, first_seen
FROM gatherer.seen_urls
`
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query seen urls: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]int64, 1024)
	for rows.Next() {
		var (
			canonicalURL string
			firstSeen    int64
		)
		if err := rows.Scan(&canonicalURL, &firstSeen); err != nil {
			return nil, fmt.Errorf("scan seen url: %w", err)
		}
		seen[canonicalURL] = firstSeen
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen urls: %w", err)
	}
	return seen, nil
}

// DeleteSeenBefore removes entries first seen before cutoffMillis.
func (p *Pool) DeleteSeenBefore(ctx context.Context, cutoffMillis int64) (int64, error) {
	tag, err := p.Exec(ctx, `DELETE FROM gatherer.seen_urls WHERE first_seen < $1`, cutoffMillis)
	if err != nil {
		return 0, fmt.Errorf("prune seen urls: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertSeenURL records canonicalURL unless it already exists. It reports
// whether a row was inserted.
func (p *Pool) InsertSeenURL(ctx context.Context, canonicalURL string, firstSeenMillis int64) (bool, error) {
	const q = `
INSERT INTO gatherer.seen_urls (canonical_url, first_seen)
VALUES ($1, $2)
ON CONFLICT (canonical_url) DO NOTHING
`
	tag, err := p.Exec(ctx, q, canonicalURL, firstSeenMillis)
	if err != nil {
		return false, fmt.Errorf("insert seen url: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountSeenURLs returns the ledger size.
func (p *Pool) CountSeenURLs(ctx context.Context) (int64, error) {
	var n int64
	if err := p.QueryRow(ctx, `SELECT COUNT(*)::BIGINT FROM gatherer.seen_urls`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count seen urls: %w", err)
	}
	return n, nil
}
