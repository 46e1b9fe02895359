package recordschema

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"horse.fit/news-gatherer/internal/story"
)

// RecordError reports one rejected record. Position is the 1-based array
// index for JSON arrays and the line number for JSON lines.
type RecordError struct {
	Position int
	Err      error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Position, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// ReadRecords decodes either a JSON array of records or one record per line.
// Invalid records are collected and skipped; the returned error is reserved
// for unreadable input.
func ReadRecords(r io.Reader) ([]story.RawRecord, []RecordError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read records: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, nil, fmt.Errorf("decode record array: %w", err)
		}
		records := make([]story.RawRecord, 0, len(items))
		var rejected []RecordError
		for i, item := range items {
			record, err := ValidateRecordPayload(item)
			if err != nil {
				rejected = append(rejected, RecordError{Position: i + 1, Err: err})
				continue
			}
			records = append(records, *record)
		}
		return records, rejected, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		records  []story.RawRecord
		rejected []RecordError
		line     int
	)
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		record, err := ValidateRecordPayload(json.RawMessage(raw))
		if err != nil {
			rejected = append(rejected, RecordError{Position: line, Err: err})
			continue
		}
		records = append(records, *record)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan record lines: %w", err)
	}
	return records, rejected, nil
}
