package gdelt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"horse.fit/news-gatherer/internal/story"
	"horse.fit/news-gatherer/internal/urlcanon"
	recordschema "horse.fit/news-gatherer/schema"
)

// Batch is one parsed DOC API response.
type Batch struct {
	Records []story.RawRecord
	// Returned counts every article in the response, valid or not. Backfill
	// compares it with the page size to detect saturated windows.
	Returned int
	Rejected int
}

type response struct {
	Articles []article `json:"articles"`
	Artlist  []article `json:"artlist"`
}

type article struct {
	URL           *string `json:"url"`
	URLMobile     *string `json:"urlMobile"`
	Link          *string `json:"link"`
	Title         *string `json:"title"`
	TitleMobile   *string `json:"titleMobile"`
	Domain        *string `json:"domain"`
	Language      *string `json:"language"`
	SourceLang    *string `json:"sourcelang"`
	SourceCountry *string `json:"sourcecountry"`
	SeenDate      *string `json:"seendate"`
	Date          *string `json:"date"`
	PublishDate   *string `json:"publishdate"`
	Published     *string `json:"published"`
}

var istanbul = loadIstanbul()

func loadIstanbul() *time.Location {
	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		return time.FixedZone("TRT", 3*60*60)
	}
	return loc
}

// parseResponse decodes a DOC API artlist body. An empty body or an object
// without an article array is an empty batch.
func parseResponse(body []byte) (Batch, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Batch{}, nil
	}
	if trimmed[0] != '{' {
		return Batch{}, fmt.Errorf("%w: unexpected response body: %s", ErrAPI, snippet(trimmed))
	}

	var resp response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return Batch{}, fmt.Errorf("%w: decode response: %w", ErrAPI, err)
	}
	items := resp.Articles
	if len(items) == 0 {
		items = resp.Artlist
	}

	batch := Batch{Returned: len(items), Records: make([]story.RawRecord, 0, len(items))}
	for _, item := range items {
		record, ok := item.toRecord()
		if !ok {
			batch.Rejected++
			continue
		}
		if err := recordschema.CheckRecord(record); err != nil {
			batch.Rejected++
			continue
		}
		batch.Records = append(batch.Records, record)
	}
	return batch, nil
}

func (a article) toRecord() (story.RawRecord, bool) {
	url := first(a.URL, a.URLMobile, a.Link)
	title := first(a.Title, a.TitleMobile)
	if url == "" || title == "" {
		return story.RawRecord{}, false
	}
	domain := urlcanon.NormalizeDomain(first(a.Domain))
	if domain == "" {
		domain = urlcanon.Domain(url)
	}
	return story.RawRecord{
		URL:           url,
		Title:         title,
		Domain:        domain,
		Language:      first(a.Language, a.SourceLang),
		SourceCountry: first(a.SourceCountry),
		SeenAt:        parseTime(first(a.SeenDate, a.Date)),
		PublishedAt:   parseTime(first(a.PublishDate, a.Published)),
	}, true
}

// first returns the first present, non-blank value.
func first(values ...*string) string {
	for _, v := range values {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(*v); s != "" {
			return s
		}
	}
	return ""
}

// parseTime accepts "2006-01-02 15:04:05" (Istanbul local time), the compact
// "20060102T150405Z" form and RFC 3339. Anything else is the zero time.
func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if len(raw) == 19 && raw[10] == ' ' {
		if t, err := time.ParseInLocation(time.DateTime, raw, istanbul); err == nil {
			return t
		}
	}
	if t, err := time.Parse("20060102T150405Z", raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Time{}
}

func snippet(body []byte) string {
	const limit = 120
	r := []rune(strings.TrimSpace(string(body)))
	if len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return string(r)
}
