package feed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"horse.fit/news-gatherer/internal/config"
	"horse.fit/news-gatherer/internal/urlcanon"
)

// Source is one configured RSS or Atom feed.
//
//	feeds:
//	  - url: https://www.aa.com.tr/tr/rss/default?cat=guncel
//	    domain: aa.com.tr
//	    language: tr
type Source struct {
	URL      string `yaml:"url"`
	Domain   string `yaml:"domain"`
	Language string `yaml:"language"`
}

type feedsFile struct {
	Feeds []Source `yaml:"feeds"`
}

// LoadSources reads the feed list from a YAML file.
func LoadSources(path string) ([]Source, error) {
	f, err := os.Open(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open feeds file: %w", config.ErrInvalidConfig, err)
	}
	defer f.Close()

	var file feedsFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: decode feeds file %s: %w", config.ErrInvalidConfig, path, err)
	}

	sources := make([]Source, 0, len(file.Feeds))
	for i, src := range file.Feeds {
		src.URL = strings.TrimSpace(src.URL)
		if src.URL == "" {
			return nil, fmt.Errorf("%w: feeds[%d].url is empty", config.ErrInvalidConfig, i)
		}
		src.Domain = urlcanon.NormalizeDomain(src.Domain)
		src.Language = strings.TrimSpace(src.Language)
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: %s lists no feeds", config.ErrInvalidConfig, path)
	}
	return sources, nil
}
