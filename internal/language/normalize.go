// Package language maps the language labels news sources send (BCP 47 tags,
// ISO 639 codes, English names such as GDELT's "Turkish") to ISO 639-1 codes.
package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
)

// names covers the English language names GDELT reports in sourcelang.
var names = map[string]string{
	"arabic":      "ar",
	"armenian":    "hy",
	"azerbaijani": "az",
	"bulgarian":   "bg",
	"chinese":     "zh",
	"dutch":       "nl",
	"english":     "en",
	"french":      "fr",
	"georgian":    "ka",
	"german":      "de",
	"greek":       "el",
	"italian":     "it",
	"kurdish":     "ku",
	"persian":     "fa",
	"portuguese":  "pt",
	"romanian":    "ro",
	"russian":     "ru",
	"spanish":     "es",
	"turkish":     "tr",
	"ukrainian":   "uk",
}

// NormalizeTag lowercases a tag and uses "-" separators. Blank or malformed
// values yield "".
func NormalizeTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "-")

	parts := strings.FieldsFunc(trimmed, func(r rune) bool { return r == '-' })
	for _, part := range parts {
		if !isAlphaNumLower(part) {
			return ""
		}
	}
	if len(parts) == 0 || !isAlphaLower(parts[0]) {
		return ""
	}
	return strings.Join(parts, "-")
}

// NormalizeCode returns the two-letter primary language ("tr" for "tr-TR",
// "tur" or "Turkish"). Unknown labels yield "".
func NormalizeCode(raw string) string {
	if code, ok := names[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return code
	}
	tag := NormalizeTag(raw)
	if tag == "" {
		return ""
	}
	primary := tag
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		primary = tag[:dash]
	}
	base, err := xlanguage.ParseBase(primary)
	if err != nil {
		return ""
	}
	code := base.String()
	if len(code) != 2 {
		return ""
	}
	return code
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func isAlphaNumLower(value string) bool {
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
