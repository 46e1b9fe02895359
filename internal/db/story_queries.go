package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"horse.fit/news-gatherer/internal/story"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// StorySummary is the list read model for stored stories.
type StorySummary struct {
	StoryID         int64     `json:"story_id"`
	StoryUUID       string    `json:"story_uuid"`
	CanonicalURL    string    `json:"canonical_url"`
	CanonicalTitle  string    `json:"canonical_title"`
	CanonicalDomain string    `json:"canonical_domain,omitempty"`
	SourceType      string    `json:"source_type"`
	EffectiveAt     time.Time `json:"effective_at"`
	MemberCount     int       `json:"member_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// StoryArticleRow is one member article of a stored story.
type StoryArticleRow struct {
	URL             string     `json:"url"`
	CanonicalURL    string     `json:"canonical_url"`
	Title           string     `json:"title"`
	NormalizedTitle string     `json:"normalized_title"`
	Domain          string     `json:"domain,omitempty"`
	Language        string     `json:"language,omitempty"`
	SourceCountry   string     `json:"source_country,omitempty"`
	SourceType      string     `json:"source_type"`
	IsCanonical     bool       `json:"is_canonical"`
	SeenAt          *time.Time `json:"seen_at,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

type StoryDetail struct {
	Story    StorySummary      `json:"story"`
	Articles []StoryArticleRow `json:"articles"`
}

// StoryListFilter narrows ListStories. Zero fields are ignored.
type StoryListFilter struct {
	SourceType string
	Domain     string
	Query      string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// SaveCluster stores c as a story with all its members. It reports false when
// a story with the same canonical URL already exists.
func (p *Pool) SaveCluster(ctx context.Context, runID *int64, c story.Cluster) (bool, error) {
	canonical := c.Canonical()
	inserted := false

	err := p.InTx(ctx, func(tx Tx) error {
		const insertStory = `
INSERT INTO gatherer.stories (
	run_id, canonical_url, canonical_title, canonical_domain, source_type, effective_at, member_count
)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (canonical_url) DO NOTHING
RETURNING story_id
`
		var storyID int64
		err := tx.QueryRow(ctx, insertStory,
			runID,
			canonical.CanonicalURL,
			canonical.Title,
			canonical.Domain,
			canonical.SourceType.String(),
			canonical.EffectiveTime().UTC(),
			c.Len(),
		).Scan(&storyID)
		if IsNoRows(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert story: %w", err)
		}

		const insertArticle = `
INSERT INTO gatherer.story_articles (
	story_id, url, canonical_url, title, normalized_title, domain, language,
	source_country, source_type, is_canonical, seen_at, published_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
		for _, m := range c.Timeline() {
			if _, err := tx.Exec(ctx, insertArticle,
				storyID,
				m.URL,
				m.CanonicalURL,
				m.Title,
				m.NormalizedTitle,
				m.Domain,
				m.Language,
				m.SourceCountry,
				m.SourceType.String(),
				m.Index == canonical.Index,
				nullableTime(m.SeenAt),
				nullableTime(m.PublishedAt),
			); err != nil {
				return fmt.Errorf("insert story article: %w", err)
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// ListStories returns one page of stories, newest first, plus the total
// number of matching rows.
func (p *Pool) ListStories(ctx context.Context, filter StoryListFilter) ([]StorySummary, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		return nil, 0, fmt.Errorf("page size must be > 0")
	}

	where := storyFilterWhere(filter)

	countSQL, countArgs, err := psql.Select("COUNT(*)::BIGINT").From("gatherer.stories s").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build story count query: %w", err)
	}
	var total int64
	if err := p.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stories: %w", err)
	}

	listSQL, listArgs, err := psql.
		Select(storySummaryColumns...).
		From("gatherer.stories s").
		Where(where).
		OrderBy("s.effective_at DESC", "s.story_id DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64((filter.Page - 1) * filter.PageSize)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build story list query: %w", err)
	}

	rows, err := p.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	items := make([]StorySummary, 0, filter.PageSize)
	for rows.Next() {
		item, err := scanStorySummary(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stories: %w", err)
	}
	return items, total, nil
}

// GetStory loads one story by UUID with its member articles, canonical first.
func (p *Pool) GetStory(ctx context.Context, storyUUID string) (*StoryDetail, error) {
	q, args, err := psql.
		Select(storySummaryColumns...).
		From("gatherer.stories s").
		Where(sq.Eq{"s.story_uuid::text": strings.TrimSpace(storyUUID)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build story query: %w", err)
	}

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query story: %w", err)
	}
	if !rows.Next() {
		rows.Close()
		return nil, ErrNoRows
	}
	summary, err := scanStorySummary(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	const articlesQuery = `
SELECT url, canonical_url, title, normalized_title, domain, language,
	source_country, source_type, is_canonical, seen_at, published_at
FROM gatherer.story_articles
WHERE story_id = $1
ORDER BY is_canonical DESC, COALESCE(published_at, seen_at) DESC, article_id ASC
`
	articleRows, err := p.Query(ctx, articlesQuery, summary.StoryID)
	if err != nil {
		return nil, fmt.Errorf("query story articles: %w", err)
	}
	defer articleRows.Close()

	detail := &StoryDetail{Story: summary}
	for articleRows.Next() {
		var a StoryArticleRow
		if err := articleRows.Scan(
			&a.URL, &a.CanonicalURL, &a.Title, &a.NormalizedTitle, &a.Domain, &a.Language,
			&a.SourceCountry, &a.SourceType, &a.IsCanonical, &a.SeenAt, &a.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan story article: %w", err)
		}
		detail.Articles = append(detail.Articles, a)
	}
	if err := articleRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story articles: %w", err)
	}
	return detail, nil
}

func storyFilterWhere(filter StoryListFilter) sq.And {
	where := sq.And{}
	if v := strings.ToUpper(strings.TrimSpace(filter.SourceType)); v != "" {
		where = append(where, sq.Eq{"s.source_type": v})
	}
	if v := strings.ToLower(strings.TrimSpace(filter.Domain)); v != "" {
		where = append(where, sq.Eq{"s.canonical_domain": v})
	}
	if v := strings.TrimSpace(filter.Query); v != "" {
		where = append(where, sq.ILike{"s.canonical_title": "%" + v + "%"})
	}
	if filter.From != nil {
		where = append(where, sq.GtOrEq{"s.effective_at": filter.From.UTC()})
	}
	if filter.To != nil {
		where = append(where, sq.Lt{"s.effective_at": filter.To.UTC()})
	}
	return where
}

var storySummaryColumns = []string{
	"s.story_id",
	"s.story_uuid::text",
	"s.canonical_url",
	"s.canonical_title",
	"s.canonical_domain",
	"s.source_type",
	"s.effective_at",
	"s.member_count",
	"s.created_at",
}

func scanStorySummary(rows *Rows) (StorySummary, error) {
	var s StorySummary
	if err := rows.Scan(
		&s.StoryID,
		&s.StoryUUID,
		&s.CanonicalURL,
		&s.CanonicalTitle,
		&s.CanonicalDomain,
		&s.SourceType,
		&s.EffectiveAt,
		&s.MemberCount,
		&s.CreatedAt,
	); err != nil {
		return StorySummary{}, fmt.Errorf("scan story: %w", err)
	}
	return s, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
