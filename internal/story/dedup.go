// Package story clusters near-duplicate articles and elects one canonical
// record per cluster. Nothing here performs I/O.
package story

import (
	"fmt"
	"sort"

	"horse.fit/news-gatherer/internal/config"
)

// Engine runs enrichment, grouping and canonical selection over one batch.
type Engine struct {
	enricher *Enricher
	builder  *Builder
}

func NewEngine(cfg config.Clustering) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	enricher, err := NewEnricher(cfg)
	if err != nil {
		return nil, err
	}
	builder, err := NewBuilder(cfg.TimeWindow, cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	return &Engine{enricher: enricher, builder: builder}, nil
}

func (e *Engine) Enricher() *Enricher {
	return e.enricher
}

// Run enriches raws and returns their clusters, newest canonical first.
func (e *Engine) Run(raws []RawRecord) []Cluster {
	return e.Cluster(e.enricher.EnrichAll(raws))
}

// Cluster groups already enriched records. Output is ordered by canonical
// effective time descending, then canonical ingestion index.
func (e *Engine) Cluster(records []Record) []Cluster {
	groups := e.builder.Group(records)
	clusters := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		canonical, err := SelectCanonical(members)
		if err != nil {
			panic(fmt.Sprintf("story: grouping produced an invalid cluster: %v", err))
		}
		cluster, err := NewCluster(members, canonical)
		if err != nil {
			panic(fmt.Sprintf("story: grouping produced an invalid cluster: %v", err))
		}
		clusters = append(clusters, cluster)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		ci, cj := clusters[i].Canonical(), clusters[j].Canonical()
		ti, tj := ci.EffectiveTime(), cj.EffectiveTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ci.Index < cj.Index
	})
	return clusters
}

// Stats summarizes a clustering pass.
type Stats struct {
	Records       int     `json:"records"`
	Clusters      int     `json:"clusters"`
	MultiMember   int     `json:"multi_member_clusters"`
	AvgPerCluster float64 `json:"avg_items_per_cluster"`
}

func Summarize(clusters []Cluster) Stats {
	var s Stats
	s.Clusters = len(clusters)
	for _, c := range clusters {
		s.Records += c.Len()
		if c.Len() > 1 {
			s.MultiMember++
		}
	}
	if s.Clusters > 0 {
		s.AvgPerCluster = float64(s.Records) / float64(s.Clusters)
	}
	return s
}
