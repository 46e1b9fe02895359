package langdetect

import (
	"testing"

	"horse.fit/news-gatherer/internal/story"
)

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	if _, err := New("cld3"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	d, err := New(" Whatlang ")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	if _, ok := d.(Whatlang); !ok {
		t.Fatalf("unexpected detector type %T", d)
	}
}

func TestLinguaDetectsTurkishHeadline(t *testing.T) {
	t.Parallel()

	got := Lingua{}.Detect("Merkez Bankası faiz kararını açıkladı, piyasalar yükselişle karşıladı")
	if got != "tr" {
		t.Fatalf("unexpected language: %q", got)
	}
}

func TestShortSamplesAreSkipped(t *testing.T) {
	t.Parallel()

	if got := (Lingua{}).Detect("AB 12"); got != "" {
		t.Fatalf("expected empty result for short sample, got %q", got)
	}
	if got := (Whatlang{}).Detect("  "); got != "" {
		t.Fatalf("expected empty result for blank sample, got %q", got)
	}
}

type stubDetector string

func (s stubDetector) Detect(string) string { return string(s) }

func TestFillMissingKeepsKnownLanguages(t *testing.T) {
	t.Parallel()

	raws := []story.RawRecord{
		{Title: "a", Language: "Turkish"},
		{Title: "b"},
		{Title: "c", Language: "??"},
	}
	if filled := FillMissing(stubDetector("en"), raws); filled != 2 {
		t.Fatalf("unexpected filled count: %d", filled)
	}
	if raws[0].Language != "Turkish" || raws[1].Language != "en" || raws[2].Language != "en" {
		t.Fatalf("unexpected languages: %#v", raws)
	}
	if filled := FillMissing(Off{}, []story.RawRecord{{Title: "Merkez Bankası faiz kararı"}}); filled != 0 {
		t.Fatalf("off detector filled %d records", filled)
	}
}
