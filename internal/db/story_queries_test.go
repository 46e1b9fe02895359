package db

import (
	"strings"
	"testing"
	"time"

	"gorm.io/gorm/logger"
)

func TestStoryFilterWhereBuildsDollarPlaceholders(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	where := storyFilterWhere(StoryListFilter{
		SourceType: " wire ",
		Domain:     "AA.com.tr",
		Query:      "deprem",
		From:       &from,
	})

	query, args, err := psql.Select("COUNT(*)").From("gatherer.stories s").Where(where).ToSql()
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	for _, fragment := range []string{"s.source_type = $1", "s.canonical_domain = $2", "s.canonical_title ILIKE $3", "s.effective_at >= $4"} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("query %q missing %q", query, fragment)
		}
	}
	if len(args) != 4 {
		t.Fatalf("unexpected args: %#v", args)
	}
	if args[0] != "WIRE" || args[1] != "aa.com.tr" || args[2] != "%deprem%" {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestStoryFilterWhereEmpty(t *testing.T) {
	t.Parallel()

	where := storyFilterWhere(StoryListFilter{Query: "   "})
	if len(where) != 0 {
		t.Fatalf("expected no predicates, got %d", len(where))
	}
}

func TestResolveGormLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level string
		env   string
		want  logger.LogLevel
	}{
		{level: "debug", want: logger.Info},
		{level: "info", want: logger.Warn},
		{level: "error", want: logger.Error},
		{level: "disabled", want: logger.Silent},
		{level: "verbose", env: "local", want: logger.Warn},
		{level: "verbose", env: "production", want: logger.Error},
	}
	for _, tc := range cases {
		if got := resolveGormLogLevel(tc.level, tc.env); got != tc.want {
			t.Fatalf("resolveGormLogLevel(%q, %q) = %v, want %v", tc.level, tc.env, got, tc.want)
		}
	}
}

func TestNullableTime(t *testing.T) {
	t.Parallel()

	if nullableTime(time.Time{}) != nil {
		t.Fatalf("expected nil for zero time")
	}
	local := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("TRT", 3*3600))
	got := nullableTime(local)
	if got == nil || got.Location() != time.UTC || !got.Equal(local) {
		t.Fatalf("unexpected time: %v", got)
	}
}
