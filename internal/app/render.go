package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"horse.fit/news-gatherer/internal/gather"
	"horse.fit/news-gatherer/internal/story"
)

const (
	headerTimeLayout = "2006-01-02 15:04"
	memberTimeLayout = "01-02 15:04"
	memberTitleLimit = 90
)

// writeClusters prints each cluster as a header line, the canonical title and
// URL, and for multi-member clusters the members in time order.
func writeClusters(w io.Writer, clusters []story.Cluster) error {
	for i, c := range clusters {
		canonical := c.Canonical()
		if _, err := fmt.Fprintf(w, "\n[%d] %s • CANONICAL (%s) %s\n",
			i+1,
			canonical.EffectiveTime().Format(headerTimeLayout),
			canonical.SourceType,
			canonical.Domain,
		); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "     %s\n     %s\n", canonical.Title, canonical.CanonicalURL); err != nil {
			return err
		}
		if c.Len() < 2 {
			continue
		}
		if _, err := fmt.Fprintf(w, "     Members (%d):\n", c.Len()); err != nil {
			return err
		}
		for _, m := range c.Timeline() {
			marker := "•"
			if m.Index == canonical.Index {
				marker = "★"
			}
			if _, err := fmt.Fprintf(w, "       %s %-11s %-20s %s  %s\n",
				marker,
				m.SourceType,
				m.Domain,
				m.EffectiveTime().Format(memberTimeLayout),
				truncate(m.Title, memberTitleLimit),
			); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSummary(w io.Writer, result gather.Result) error {
	lines := []string{
		"",
		"=== METRICS ===",
		fmt.Sprintf("Articles fetched:   %d", result.Fetched),
		fmt.Sprintf("Articles rejected:  %d", result.Rejected),
		fmt.Sprintf("Story clusters:     %d", result.Clusters),
		fmt.Sprintf("New clusters:       %d", result.New),
		fmt.Sprintf("Already seen:       %d", result.Suppressed),
		fmt.Sprintf("Avg items/cluster:  %.2f", result.AvgClusterSize),
	}
	if result.Truncated > 0 {
		lines = append(lines, fmt.Sprintf("Truncated windows:  %d", result.Truncated))
	}
	if result.FeedsFailed > 0 {
		lines = append(lines, fmt.Sprintf("Failed feeds:       %d", result.FeedsFailed))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// writeJSONOutput writes clusters as NDJSON to path; "-" is stdout.
func writeJSONOutput(path string, clusters []story.Cluster) error {
	path = strings.TrimSpace(path)
	if path == "-" {
		return gather.WriteNDJSON(os.Stdout, clusters)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json output: %w", err)
	}
	if err := gather.WriteNDJSON(f, clusters); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func truncate(value string, maxLen int) string {
	trimmed := strings.TrimSpace(value)
	if utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:maxLen-1]) + "…"
}
