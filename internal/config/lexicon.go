package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon is the optional YAML file behind NG_LEXICON_FILE:
//
//	stop_words: [son, dakika]
//	tracking_params: [gclid, fbclid]
//	sources:
//	  wire: [aa.com.tr]
//	  aggregator: [haberler.com]
type Lexicon struct {
	StopWords      []string       `yaml:"stop_words"`
	TrackingParams []string       `yaml:"tracking_params"`
	Sources        LexiconSources `yaml:"sources"`
}

type LexiconSources struct {
	Wire       []string `yaml:"wire"`
	Publisher  []string `yaml:"publisher"`
	Aggregator []string `yaml:"aggregator"`
}

func LoadLexicon(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open lexicon %s: %w", ErrInvalidConfig, path, err)
	}
	defer f.Close()

	var lexicon Lexicon
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&lexicon); err != nil {
		return nil, fmt.Errorf("%w: decode lexicon %s: %w", ErrInvalidConfig, path, err)
	}
	return &lexicon, nil
}

// ApplyTo fills lists that the environment left empty. Environment values win.
func (l *Lexicon) ApplyTo(cfg *Config) {
	if l == nil || cfg == nil {
		return
	}
	fill := func(dst *[]string, src []string) {
		if len(cleanList(*dst, nil)) == 0 && len(src) > 0 {
			*dst = append([]string(nil), src...)
		}
	}
	fill(&cfg.StopWords, l.StopWords)
	fill(&cfg.TrackingParams, l.TrackingParams)
	fill(&cfg.WireDomains, l.Sources.Wire)
	fill(&cfg.PublisherDomains, l.Sources.Publisher)
	fill(&cfg.AggregatorDomains, l.Sources.Aggregator)
}
