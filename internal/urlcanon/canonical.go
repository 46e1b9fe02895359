// Package urlcanon derives stable dedup keys from article URLs.
package urlcanon

import (
	"net/url"
	"strings"
)

const trackingPrefix = "utm_"

// DefaultTrackingParams are query keys that never identify content.
var DefaultTrackingParams = []string{
	"gclid", "fbclid", "msclkid", "xtor", "trk", "ref", "referrer",
}

// Canonicalizer strips tracking parameters, fragments and trailing slashes.
type Canonicalizer struct {
	blocked map[string]struct{}
}

// New builds a Canonicalizer. Keys starting with utm_ are always dropped in
// addition to params.
func New(params []string) *Canonicalizer {
	blocked := make(map[string]struct{}, len(params))
	for _, p := range params {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" {
			continue
		}
		blocked[key] = struct{}{}
	}
	return &Canonicalizer{blocked: blocked}
}

// Canonicalize returns the dedup key for raw. Input that is not an absolute
// URL comes back unchanged.
func (c *Canonicalizer) Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return raw
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	b.WriteString(strings.ToLower(parsed.Scheme))
	b.WriteString("://")
	if parsed.User != nil {
		b.WriteString(parsed.User.String())
		b.WriteByte('@')
	}
	b.WriteString(strings.ToLower(parsed.Host))
	b.WriteString(trimTrailingSlash(parsed.EscapedPath()))

	if query := c.filterQuery(parsed.RawQuery); query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}

// IsTracking reports whether key would be dropped from a query string.
func (c *Canonicalizer) IsTracking(key string) bool {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, trackingPrefix) {
		return true
	}
	_, ok := c.blocked[lower]
	return ok
}

// filterQuery keeps surviving pairs in their original order and encoding.
func (c *Canonicalizer) filterQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		rawKey, _, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		if c.IsTracking(key) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// trimTrailingSlash drops trailing slashes but keeps a bare root path.
func trimTrailingSlash(path string) string {
	if path == "" || path == "/" {
		return path
	}
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}
