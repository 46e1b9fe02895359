package app

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/gather"
	"horse.fit/news-gatherer/internal/story"
)

func TestRunUsageExitCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		args []string
		want int
	}{
		{nil, 2},
		{[]string{"help"}, 0},
		{[]string{"bogus"}, 2},
		{[]string{"cluster", "-h"}, 0},
		{[]string{"cluster"}, 2},
		{[]string{"gather", "--no-such-flag"}, 2},
		{[]string{"gather", "extra"}, 2},
		{[]string{"gather", "--lookback", "soon"}, 2},
		{[]string{"serve", "--port", "70000"}, 2},
	}
	for _, tc := range cases {
		if got := Run(tc.args); got != tc.want {
			t.Fatalf("Run(%q) = %d, want %d", tc.args, got, tc.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	if exitCode(nil) != 0 {
		t.Fatalf("nil error should exit 0")
	}
	if got := exitCode(fmt.Errorf("wrap: %w", config.ErrInvalidConfig)); got != 2 {
		t.Fatalf("config error should exit 2, got %d", got)
	}
	if got := exitCode(errors.New("boom")); got != 1 {
		t.Fatalf("runtime error should exit 1, got %d", got)
	}
}

func testClusters(t *testing.T) []story.Cluster {
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

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return engine.Run([]story.RawRecord{
		{URL: "https://www.hurriyet.com.tr/gundem/deprem-1", Title: "Kahramanmaraş'ta 5.1 büyüklüğünde deprem", Domain: "hurriyet.com.tr", SeenAt: base.Add(time.Hour)},
		{URL: "https://www.aa.com.tr/tr/gundem/deprem/1", Title: "Kahramanmaraş'ta 5.1 büyüklüğünde deprem", Domain: "aa.com.tr", SeenAt: base.Add(2 * time.Hour)},
	})
}

func TestWriteClustersMarksCanonical(t *testing.T) {
	t.Parallel()

	clusters := testClusters(t)
	if len(clusters) != 1 {
		t.Fatalf("unexpected cluster count: %d", len(clusters))
	}

	var buf bytes.Buffer
	if err := writeClusters(&buf, clusters); err != nil {
		t.Fatalf("write clusters: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "[1] 2025-03-10 11:00 • CANONICAL (WIRE) aa.com.tr") {
		t.Fatalf("missing cluster header: %q", out)
	}
	if !strings.Contains(out, "Members (2):") {
		t.Fatalf("missing member list: %q", out)
	}
	hurriyet := strings.Index(out, "• PUBLISHER")
	wire := strings.Index(out, "★ WIRE")
	if hurriyet < 0 || wire < 0 || hurriyet > wire {
		t.Fatalf("members not in time order with canonical star: %q", out)
	}
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := writeSummary(&buf, gather.Result{Fetched: 10, Clusters: 4, New: 3, Suppressed: 1, AvgClusterSize: 2.5, Truncated: 1})
	if err != nil {
		t.Fatalf("write summary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Articles fetched:   10", "Story clusters:     4", "Avg items/cluster:  2.50", "Truncated windows:  1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "Failed feeds") {
		t.Fatalf("unexpected feed line: %q", out)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("  kısa  ", 10); got != "kısa" {
		t.Fatalf("unexpected short value: %q", got)
	}
	if got := truncate("İstanbul'da yağmur", 8); got != "İstanbu…" {
		t.Fatalf("unexpected truncated value: %q", got)
	}
}

func TestCollectRecordFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.json", "b.JSONL", "c.txt", ".hidden.json", "nested/d.ndjson"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := collectRecordFiles(dir, true)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("unexpected recursive files: %v", files)
	}

	files, err = collectRecordFiles(dir, false)
	if err != nil {
		t.Fatalf("collect flat: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("unexpected flat files: %v", files)
	}

	if _, err := collectRecordFiles(filepath.Join(dir, "a.json"), true); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
}

func writeRecordsFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write records: %v", err)
	}
	return path
}

func recordLine(url, title, domain string, seenAt time.Time) string {
	return fmt.Sprintf(`{"url":%q,"title":%q,"domain":%q,"seen_at":%q}`, url, title, domain, seenAt.Format(time.RFC3339))
}

func TestRunValidate(t *testing.T) {
	t.Parallel()

	seenAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	good := t.TempDir()
	writeRecordsFile(t, good, "records.jsonl", recordLine("https://aa.com.tr/a", "Deprem", "aa.com.tr", seenAt))
	if code := Run([]string{"validate", "--dir", good}); code != 0 {
		t.Fatalf("expected valid directory to pass, got %d", code)
	}

	bad := t.TempDir()
	writeRecordsFile(t, bad, "records.jsonl",
		recordLine("https://aa.com.tr/a", "Deprem", "aa.com.tr", seenAt),
		`{"url":"https://aa.com.tr/b","title":"Zamansız"}`,
	)
	if code := Run([]string{"validate", "--dir", bad}); code != 1 {
		t.Fatalf("expected invalid record to fail, got %d", code)
	}

	if code := Run([]string{"validate", "--dir", t.TempDir()}); code != 1 {
		t.Fatalf("expected empty directory to fail, got %d", code)
	}
}

func TestRunClusterWritesNDJSON(t *testing.T) {
	t.Setenv("NG_LANGUAGE_DETECTOR", "off")
	t.Setenv("NG_WIRE_DOMAINS", "aa.com.tr")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", "")

	dir := t.TempDir()
	seenAt := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	input := writeRecordsFile(t, dir, "records.jsonl",
		recordLine("https://www.hurriyet.com.tr/gundem/deprem-1?utm_source=x", "Kahramanmaraş'ta 5.1 büyüklüğünde deprem", "hurriyet.com.tr", seenAt),
		recordLine("https://www.aa.com.tr/tr/gundem/deprem/1", "Kahramanmaraş'ta 5.1 büyüklüğünde deprem", "aa.com.tr", seenAt.Add(10*time.Minute)),
		recordLine("https://www.sozcu.com.tr/ekonomi/borsa", "Borsa İstanbul güne yükselişle başladı", "sozcu.com.tr", seenAt.Add(20*time.Minute)),
		`{"url":"https://bad.example/x","title":"Zamansız"}`,
	)
	output := filepath.Join(dir, "out", "clusters.ndjson")

	code := Run([]string{"cluster", "--env", filepath.Join(dir, "missing.env"), "--json-output", output, input})
	if code != 0 {
		t.Fatalf("cluster exited %d", code)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var canonicals []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line struct {
			Size      int `json:"size"`
			Canonical struct {
				CanonicalURL string `json:"canonical_url"`
			} `json:"canonical"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode %q: %v", scanner.Text(), err)
		}
		canonicals = append(canonicals, line.Canonical.CanonicalURL)
	}
	if len(canonicals) != 2 {
		t.Fatalf("unexpected cluster lines: %v", canonicals)
	}
	if canonicals[1] != "https://www.aa.com.tr/tr/gundem/deprem/1" {
		t.Fatalf("expected wire article as canonical, got %v", canonicals)
	}
}

func TestRunGatherRejectsLookbackForRSS(t *testing.T) {
	t.Setenv("NG_LEDGER_BACKEND", "memory")
	t.Setenv("NG_LANGUAGE_DETECTOR", "off")
	t.Setenv("LOG_LEVEL", "error")

	dir := t.TempDir()
	code := Run([]string{"gather", "--env", filepath.Join(dir, "missing.env"), "--source", "rss", "--lookback", "2h"})
	if code != 2 {
		t.Fatalf("expected usage error, got %d", code)
	}
}
