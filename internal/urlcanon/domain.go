package urlcanon

import (
	"net/url"
	"strings"
)

// Domain returns the lowercased host of raw without a leading "www.", or ""
// when raw has no host.
func Domain(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return NormalizeDomain(parsed.Hostname())
}

// NormalizeDomain lowercases host and strips a leading "www.".
func NormalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}
