// Package shingle builds character n-gram sets and scores their overlap.
package shingle

import (
	"fmt"
	"sort"

	"horse.fit/news-gatherer/internal/config"
)

const (
	MinSize = 2
	MaxSize = 10
)

// Set is an immutable set of shingles. The zero value is an empty set.
type Set struct {
	items map[string]struct{}
}

// NewSet copies values into a new Set.
func NewSet(values ...string) Set {
	if len(values) == 0 {
		return Set{}
	}
	items := make(map[string]struct{}, len(values))
	for _, v := range values {
		items[v] = struct{}{}
	}
	return Set{items: items}
}

func (s Set) Len() int {
	return len(s.items)
}

func (s Set) Empty() bool {
	return len(s.items) == 0
}

func (s Set) Contains(value string) bool {
	_, ok := s.items[value]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s.items))
	for v := range s.items {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Generator slides a fixed-width rune window over padded text.
type Generator struct {
	size int
}

// NewGenerator validates size against [MinSize, MaxSize].
func NewGenerator(size int) (*Generator, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: shingle size %d outside [%d,%d]", config.ErrInvalidConfig, size, MinSize, MaxSize)
	}
	return &Generator{size: size}, nil
}

func (g *Generator) Size() int {
	return g.size
}

// Generate returns the distinct shingles of text padded with one space on
// each side. Empty text yields an empty set.
func (g *Generator) Generate(text string) Set {
	if text == "" {
		return Set{}
	}

	runes := []rune(" " + text + " ")
	if len(runes) <= g.size {
		return NewSet(string(runes))
	}

	items := make(map[string]struct{}, len(runes)-g.size+1)
	for i := 0; i+g.size <= len(runes); i++ {
		items[string(runes[i:i+g.size])] = struct{}{}
	}
	return Set{items: items}
}
