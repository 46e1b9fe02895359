// Package textnorm turns article titles into comparison-ready strings.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultStopWords are headline fillers common on Turkish news sites.
var DefaultStopWords = []string{
	"son", "dakika", "video", "galeri", "izle", "foto", "yorum",
	"haber", "haberi", "güncel", "flas", "flaş",
}

// Normalizer folds case for a locale, strips punctuation and drops stop words.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	tag       language.Tag
	turkic    bool
	stopWords map[string]struct{}
}

// New builds a Normalizer. An unparseable locale falls back to language.Und,
// which lowers without locale-specific mappings.
func New(locale string, stopWords []string) *Normalizer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.Und
	}
	base, _ := tag.Base()
	turkic := base.String() == "tr" || base.String() == "az"

	n := &Normalizer{
		tag:       tag,
		turkic:    turkic,
		stopWords: make(map[string]struct{}, len(stopWords)),
	}
	for _, word := range stopWords {
		folded := n.fold(strings.TrimSpace(word))
		if folded == "" {
			continue
		}
		n.stopWords[folded] = struct{}{}
	}
	return n
}

// Normalize returns the folded, punctuation-free, stop-word-free form of text.
// Empty input yields "".
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	folded := n.fold(text)
	tokens := strings.Fields(stripPunctuation(folded))
	kept := tokens[:0]
	for _, token := range tokens {
		if _, stop := n.stopWords[token]; stop {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// fold lowers text for the configured locale. Dotted and dotless I are mapped
// explicitly for Turkic locales before the generic lowering runs.
func (n *Normalizer) fold(text string) string {
	if text == "" {
		return ""
	}
	if n.turkic {
		text = strings.NewReplacer("İ", "i", "I", "ı").Replace(text)
	}
	return cases.Lower(n.tag).String(text)
}

// stripPunctuation replaces every run of punctuation or symbol runes with a
// single space.
func stripPunctuation(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inRun := false
	for _, r := range text {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			if !inRun {
				b.WriteRune(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
