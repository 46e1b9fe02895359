package story

import (
	"fmt"
	"sort"
	"time"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/shingle"
)

// Builder groups records into connected components of title similarity,
// comparing only records whose effective times are within the window.
type Builder struct {
	window    time.Duration
	threshold float64
}

func NewBuilder(window time.Duration, threshold float64) (*Builder, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: time window must be > 0, got %s", config.ErrInvalidConfig, window)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: similarity threshold must be within [0,1], got %v", config.ErrInvalidConfig, threshold)
	}
	return &Builder{window: window, threshold: threshold}, nil
}

// Group returns the components of records. Members are transitively similar,
// not necessarily pairwise. Groups are ordered by their lowest ingestion
// position and members keep input order.
func (b *Builder) Group(records []Record) [][]Record {
	n := len(records)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return records[order[x]].EffectiveTime().After(records[order[y]].EffectiveTime())
	})

	sets := newUnionFind(n)
	for pos, i := range order {
		left := records[i]
		if left.Shingles.Empty() {
			continue
		}
		leftTime := left.EffectiveTime()
		for _, j := range order[pos+1:] {
			right := records[j]
			if leftTime.Sub(right.EffectiveTime()) > b.window {
				break
			}
			if right.Shingles.Empty() {
				continue
			}
			if shingle.AreSimilar(left.Shingles, right.Shingles, b.threshold) {
				sets.union(i, j)
			}
		}
	}

	slot := make(map[int]int, n)
	var groups [][]Record
	for i, rec := range records {
		root := sets.find(i)
		idx, ok := slot[root]
		if !ok {
			idx = len(groups)
			slot[root] = idx
			groups = append(groups, nil)
		}
		groups[idx] = append(groups[idx], rec)
	}
	return groups
}
