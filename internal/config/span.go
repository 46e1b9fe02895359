package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var spanPattern = regexp.MustCompile(`(?i)^(\d+)([smhd])$`)

// ParseSpan accepts "30m", "2h", "7d" and anything time.ParseDuration takes.
// The result must be positive.
func ParseSpan(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("duration is empty")
	}

	var d time.Duration
	if m := spanPattern.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", raw, err)
		}
		unit := map[string]time.Duration{
			"s": time.Second,
			"m": time.Minute,
			"h": time.Hour,
			"d": 24 * time.Hour,
		}[strings.ToLower(m[2])]
		d = time.Duration(n) * unit
	} else {
		parsed, err := time.ParseDuration(trimmed)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", raw, err)
		}
		d = parsed
	}

	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return d, nil
}

// Span is a flag.Value over ParseSpan. The zero value means unset.
type Span struct {
	Value time.Duration
	IsSet bool
}

func (s *Span) String() string {
	if s == nil || !s.IsSet {
		return ""
	}
	return s.Value.String()
}

func (s *Span) Set(raw string) error {
	d, err := ParseSpan(raw)
	if err != nil {
		return err
	}
	s.Value = d
	s.IsSet = true
	return nil
}
