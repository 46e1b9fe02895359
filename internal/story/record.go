package story

import (
	"time"

	"horse.fit/news-gatherer/internal/shingle"
)

// RawRecord is an article as delivered by a fetch collaborator. URL and Title
// are non-empty and at least one timestamp is set.
type RawRecord struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Domain        string    `json:"domain,omitempty"`
	Language      string    `json:"language,omitempty"`
	SourceCountry string    `json:"source_country,omitempty"`
	SeenAt        time.Time `json:"seen_at,omitzero"`
	PublishedAt   time.Time `json:"published_at,omitzero"`
}

// Record is a RawRecord plus the fields derived from it by Enricher. Records
// are values; the derived fields are never recomputed.
type Record struct {
	Index           int         `json:"-"`
	URL             string      `json:"url"`
	CanonicalURL    string      `json:"canonical_url"`
	Title           string      `json:"title"`
	NormalizedTitle string      `json:"normalized_title"`
	Shingles        shingle.Set `json:"-"`
	Domain          string      `json:"domain,omitempty"`
	Language        string      `json:"language,omitempty"`
	SourceCountry   string      `json:"source_country,omitempty"`
	SeenAt          time.Time   `json:"seen_at,omitzero"`
	PublishedAt     time.Time   `json:"published_at,omitzero"`
	SourceType      SourceType  `json:"source_type"`
}

// EffectiveTime is PublishedAt when set, otherwise SeenAt.
func (r Record) EffectiveTime() time.Time {
	if !r.PublishedAt.IsZero() {
		return r.PublishedAt
	}
	return r.SeenAt
}

func (r Record) Raw() RawRecord {
	return RawRecord{
		URL:           r.URL,
		Title:         r.Title,
		Domain:        r.Domain,
		Language:      r.Language,
		SourceCountry: r.SourceCountry,
		SeenAt:        r.SeenAt,
		PublishedAt:   r.PublishedAt,
	}
}

func (r Record) sameAs(other Record) bool {
	return r.Index == other.Index && r.URL == other.URL
}
