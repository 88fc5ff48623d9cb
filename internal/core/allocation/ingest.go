package allocation

import (
	"encoding/json"
	"fmt"
	"strings"

	"causalgen-backend/internal/core/taxonomy"
)

// ParseSeedBatch extracts the first JSON array of seed records from raw
// model output, tolerating surrounding prose and code fences. A batch that
// cannot be located or parsed yields an empty list and a non-fatal error:
// the caller logs it and requests another batch.
//
// Every parsed record is defensively defaulted so no loosely shaped data
// survives past this boundary: missing ids become positional placeholders,
// a missing subdomain falls back to the first registry subdomain, missing
// entity lists become empty slices.
func ParseSeedBatch(raw string) ([]ScenarioSeed, error) {
	payload, ok := firstJSONArray(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON array found in seed batch (%d bytes)", len(raw))
	}

	var records []seedRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("error parsing seed batch array: %w", err)
	}

	seeds := make([]ScenarioSeed, 0, len(records))
	for i, r := range records {
		seeds = append(seeds, r.toSeed(i))
	}
	return seeds, nil
}

// seedRecord mirrors the loose shape the model actually emits. Conversion to
// ScenarioSeed is the only place defaults are applied.
type seedRecord struct {
	ID         string   `json:"id"`
	Topic      string   `json:"topic"`
	Subdomain  string   `json:"subdomain"`
	Entities   []string `json:"entities"`
	Timeframe  string   `json:"timeframe"`
	Event      string   `json:"event"`
	Context    string   `json:"context"`
	Difficulty string   `json:"difficulty"`
}

func (r seedRecord) toSeed(index int) ScenarioSeed {
	seed := ScenarioSeed{
		ID:         strings.TrimSpace(r.ID),
		Topic:      strings.TrimSpace(r.Topic),
		Subdomain:  strings.TrimSpace(r.Subdomain),
		Entities:   r.Entities,
		Timeframe:  strings.TrimSpace(r.Timeframe),
		Event:      strings.TrimSpace(r.Event),
		Context:    strings.TrimSpace(r.Context),
		Difficulty: strings.TrimSpace(r.Difficulty),
	}

	if seed.ID == "" {
		seed.ID = fmt.Sprintf("seed-%d", index)
	}
	if seed.Subdomain == "" {
		seed.Subdomain = taxonomy.Subdomains()[0]
	}
	if seed.Entities == nil {
		seed.Entities = []string{}
	}
	return seed
}

// firstJSONArray returns the first balanced bracket-delimited span in raw.
// Brackets inside JSON strings are skipped so entity names containing "["
// do not break the scan.
func firstJSONArray(raw string) (string, bool) {
	start := strings.IndexByte(raw, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
