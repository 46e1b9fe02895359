package story

import (
	"fmt"
	"strings"

	"horse.fit/news-gatherer/internal/urlcanon"
)

// SourceType ranks outlets by authority. Lower values win canonical selection.
type SourceType int

const (
	SourceWire SourceType = iota + 1
	SourcePublisher
	SourceAggregator
)

var (
	defaultWireDomains = []string{"aa.com.tr", "iha.com.tr", "dha.com.tr"}

	defaultAggregatorDomains = []string{
		"ensonhaber.com", "haberler.com", "sondakika.com", "gazeteoku.com",
	}
)

// Priority is 1 for wire services, 2 for publishers, 3 for aggregators.
// Unknown values rank as publishers.
func (s SourceType) Priority() int {
	switch s {
	case SourceWire, SourcePublisher, SourceAggregator:
		return int(s)
	default:
		return int(SourcePublisher)
	}
}

func (s SourceType) String() string {
	switch s {
	case SourceWire:
		return "WIRE"
	case SourceAggregator:
		return "AGGREGATOR"
	default:
		return "PUBLISHER"
	}
}

func (s SourceType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SourceType) UnmarshalText(text []byte) error {
	parsed, err := ParseSourceType(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseSourceType(raw string) (SourceType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "WIRE":
		return SourceWire, nil
	case "PUBLISHER", "":
		return SourcePublisher, nil
	case "AGGREGATOR":
		return SourceAggregator, nil
	default:
		return 0, fmt.Errorf("unknown source type %q", raw)
	}
}

// SourceTable maps domains to source types.
type SourceTable struct {
	domains map[string]SourceType
}

// NewSourceTable builds a table from domain lists. A nil wire or aggregator
// list selects the built-in Turkish defaults; publisher entries only matter
// when they shadow a default.
func NewSourceTable(wire, publisher, aggregator []string) *SourceTable {
	if wire == nil {
		wire = defaultWireDomains
	}
	if aggregator == nil {
		aggregator = defaultAggregatorDomains
	}

	t := &SourceTable{domains: make(map[string]SourceType)}
	for _, d := range wire {
		t.add(d, SourceWire)
	}
	for _, d := range aggregator {
		t.add(d, SourceAggregator)
	}
	for _, d := range publisher {
		t.add(d, SourcePublisher)
	}
	return t
}

func (t *SourceTable) add(domain string, kind SourceType) {
	key := urlcanon.NormalizeDomain(domain)
	if key == "" {
		return
	}
	t.domains[key] = kind
}

// Classify looks up domain and then each parent domain, so "english.aa.com.tr"
// inherits the entry for "aa.com.tr". Unmatched domains are publishers.
func (t *SourceTable) Classify(domain string) SourceType {
	key := urlcanon.NormalizeDomain(domain)
	for key != "" {
		if kind, ok := t.domains[key]; ok {
			return kind
		}
		dot := strings.IndexByte(key, '.')
		if dot < 0 {
			break
		}
		key = key[dot+1:]
		if !strings.Contains(key, ".") {
			break
		}
	}
	return SourcePublisher
}
