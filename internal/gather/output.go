package gather

import (
	"encoding/json"
	"fmt"
	"io"

	"horse.fit/news-gatherer/internal/story"
)

// WriteNDJSON writes one JSON object per cluster, newline terminated.
func WriteNDJSON(w io.Writer, clusters []story.Cluster) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, c := range clusters {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode cluster %s: %w", c.Canonical().CanonicalURL, err)
		}
	}
	return nil
}
