package story

import (
	"strings"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/language"
	"horse.fit/news-gatherer/internal/shingle"
	"horse.fit/news-gatherer/internal/textnorm"
	"horse.fit/news-gatherer/internal/urlcanon"
)

// Enricher computes the derived Record fields from raw input.
type Enricher struct {
	normalizer    *textnorm.Normalizer
	shingles      *shingle.Generator
	canonicalizer *urlcanon.Canonicalizer
	sources       *SourceTable
}

func NewEnricher(cfg config.Clustering) (*Enricher, error) {
	generator, err := shingle.NewGenerator(cfg.ShingleSize)
	if err != nil {
		return nil, err
	}
	return &Enricher{
		normalizer:    textnorm.New(cfg.Locale, cfg.StopWords),
		shingles:      generator,
		canonicalizer: urlcanon.New(cfg.TrackingParams),
		sources:       NewSourceTable(cfg.WireDomains, cfg.PublisherDomains, cfg.AggregatorDomains),
	}, nil
}

// Enrich derives a Record from raw. index is the record's position in its
// batch.
func (e *Enricher) Enrich(raw RawRecord, index int) Record {
	url := strings.TrimSpace(raw.URL)
	domain := urlcanon.NormalizeDomain(raw.Domain)
	if domain == "" {
		domain = urlcanon.Domain(url)
	}

	canonical := e.canonicalizer.Canonicalize(url)
	if canonical == "" {
		canonical = url
	}

	lang := language.NormalizeCode(raw.Language)
	if lang == "" {
		lang = strings.TrimSpace(raw.Language)
	}

	normalized := e.normalizer.Normalize(raw.Title)
	return Record{
		Index:           index,
		URL:             url,
		CanonicalURL:    canonical,
		Title:           strings.TrimSpace(raw.Title),
		NormalizedTitle: normalized,
		Shingles:        e.shingles.Generate(normalized),
		Domain:          domain,
		Language:        lang,
		SourceCountry:   strings.TrimSpace(raw.SourceCountry),
		SeenAt:          raw.SeenAt,
		PublishedAt:     raw.PublishedAt,
		SourceType:      e.sources.Classify(domain),
	}
}

func (e *Enricher) EnrichAll(raws []RawRecord) []Record {
	records := make([]Record, len(raws))
	for i, raw := range raws {
		records[i] = e.Enrich(raw, i)
	}
	return records
}

func (e *Enricher) Canonicalizer() *urlcanon.Canonicalizer {
	return e.canonicalizer
}
