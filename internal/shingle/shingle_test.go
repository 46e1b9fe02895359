package shingle

import (
	"errors"
	"math"
	"testing"

	"horse.fit/news-gatherer/internal/config"
)

func TestNewGenerator_RejectsOutOfRangeSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{-1, 0, 1, 11, 64} {
		if _, err := NewGenerator(size); !errors.Is(err, config.ErrInvalidConfig) {
			t.Fatalf("expected config error for size %d, got %v", size, err)
		}
	}
	for _, size := range []int{MinSize, 4, MaxSize} {
		if _, err := NewGenerator(size); err != nil {
			t.Fatalf("unexpected error for size %d: %v", size, err)
		}
	}
}

func TestGenerate_PadsAndSlides(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set := g.Generate("abcde")
	want := []string{" abc", "abcd", "bcde", "cde "}
	got := set.Sorted()
	if len(got) != len(want) {
		t.Fatalf("unexpected shingles: %q", got)
	}
	for _, w := range want {
		if !set.Contains(w) {
			t.Fatalf("missing shingle %q in %q", w, got)
		}
	}
}

func TestGenerate_CountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	g, _ := NewGenerator(3)
	set := g.Generate("ığ")
	if set.Len() != 2 {
		t.Fatalf("expected 2 rune shingles, got %q", set.Sorted())
	}
	if !set.Contains(" ığ") || !set.Contains("ığ ") {
		t.Fatalf("unexpected shingles: %q", set.Sorted())
	}
}

func TestGenerate_ShortAndEmpty(t *testing.T) {
	t.Parallel()

	g, _ := NewGenerator(5)
	if set := g.Generate(""); !set.Empty() {
		t.Fatalf("expected empty set, got %q", set.Sorted())
	}

	set := g.Generate("ab")
	if set.Len() != 1 || !set.Contains(" ab ") {
		t.Fatalf("expected whole padded text as single shingle, got %q", set.Sorted())
	}
}

func TestGenerate_DeduplicatesRepeats(t *testing.T) {
	t.Parallel()

	g, _ := NewGenerator(2)
	set := g.Generate("aaaa")
	if set.Len() != 3 {
		t.Fatalf("expected 3 distinct shingles, got %q", set.Sorted())
	}
}

func TestNewSet_CopiesInput(t *testing.T) {
	t.Parallel()

	values := []string{"ab", "bc"}
	set := NewSet(values...)
	values[0] = "zz"
	if !set.Contains("ab") || set.Contains("zz") {
		t.Fatalf("set aliased caller slice: %q", set.Sorted())
	}
}

func TestJaccard_Rules(t *testing.T) {
	t.Parallel()

	g, _ := NewGenerator(4)
	a := g.Generate("istanbul da fırtına")
	b := g.Generate("istanbul da kar yağışı")
	empty := Set{}

	if got := Jaccard(a, a); got != 1.0 {
		t.Fatalf("expected identity score 1.0, got %f", got)
	}
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Fatalf("expected symmetric score, got %f and %f", Jaccard(a, b), Jaccard(b, a))
	}
	if got := Jaccard(a, b); got <= 0 || got >= 1 {
		t.Fatalf("expected partial overlap in (0,1), got %f", got)
	}
	if got := Jaccard(a, empty); got != 0 {
		t.Fatalf("expected 0 against empty set, got %f", got)
	}
	if got := Jaccard(empty, empty); got != 0 {
		t.Fatalf("expected 0 for two empty sets, got %f", got)
	}
}

func TestJaccard_KnownValue(t *testing.T) {
	t.Parallel()

	a := NewSet("a", "b", "c")
	b := NewSet("b", "c", "d", "e")
	if got := Jaccard(a, b); math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("unexpected jaccard: got %f want 0.4", got)
	}
	if !AreSimilar(a, b, 0.4) {
		t.Fatalf("expected threshold to be inclusive")
	}
	if AreSimilar(a, b, 0.41) {
		t.Fatalf("expected score below threshold")
	}
}
