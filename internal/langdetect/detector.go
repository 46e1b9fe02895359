// Package langdetect fills in the language of records whose source left it
// blank.
package langdetect

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/abadojack/whatlanggo"
	lingua "github.com/pemistahl/lingua-go"

	"horse.fit/news-gatherer/internal/language"
	"horse.fit/news-gatherer/internal/story"
)

const (
	BackendLingua   = "lingua"
	BackendWhatlang = "whatlang"
	BackendOff      = "off"
)

// minLetters is the shortest sample worth classifying; headlines below it are
// left undetected.
const minLetters = 6

// Detector returns an ISO 639-1 code, or "" when unsure.
type Detector interface {
	Detect(text string) string
}

// New returns the detector named by NG_LANGUAGE_DETECTOR.
func New(backend string) (Detector, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendLingua, "":
		return Lingua{}, nil
	case BackendWhatlang:
		return Whatlang{}, nil
	case BackendOff:
		return Off{}, nil
	default:
		return nil, fmt.Errorf("unknown language detector %q", backend)
	}
}

// FillMissing sets Language on raws that have none. It returns how many
// records were filled.
func FillMissing(d Detector, raws []story.RawRecord) int {
	filled := 0
	for i := range raws {
		if language.NormalizeCode(raws[i].Language) != "" {
			continue
		}
		if code := d.Detect(raws[i].Title); code != "" {
			raws[i].Language = code
			filled++
		}
	}
	return filled
}

var (
	linguaOnce sync.Once
	linguaDet  lingua.LanguageDetector
)

// Lingua restricts detection to the languages Turkish outlets publish in.
type Lingua struct{}

func (Lingua) Detect(text string) string {
	sample, ok := detectable(text)
	if !ok {
		return ""
	}
	lang, exists := linguaDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}
	return language.NormalizeCode(lang.IsoCode639_1().String())
}

func linguaDetector() lingua.LanguageDetector {
	linguaOnce.Do(func() {
		linguaDet = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.Turkish,
				lingua.English,
				lingua.German,
				lingua.French,
				lingua.Arabic,
				lingua.Russian,
				lingua.Azerbaijani,
				lingua.Persian,
			).
			Build()
	})
	return linguaDet
}

// Whatlang is the lighter trigram detector; unreliable guesses are dropped.
type Whatlang struct{}

func (Whatlang) Detect(text string) string {
	sample, ok := detectable(text)
	if !ok {
		return ""
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return ""
	}
	return language.NormalizeCode(info.Lang.Iso6393())
}

type Off struct{}

func (Off) Detect(string) string { return "" }

func detectable(text string) (string, bool) {
	sample := strings.TrimSpace(text)
	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return sample, letters >= minLetters
}
