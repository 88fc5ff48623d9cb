// Package reports computes distribution summaries over generated cases. The
// same numbers back the stats API endpoint and the reporting CLI.
package reports

import (
	"fmt"
	"sort"
	"strings"

	"causalgen-backend/pkg/api"
)

func Compute(cases []api.Case) api.RunStats {
	stats := api.RunStats{
		Total:             len(cases),
		PerLevel:          make(map[string]int),
		PerDifficulty:     make(map[string]int),
		PerLabel:          make(map[string]int),
		LabelsByLevel:     make(map[string]map[string]int),
		DifficultyByLevel: make(map[string]map[string]int),
		TrapPrefixes:      make(map[string]int),
		ScoreRanges:       make(map[string]int),
	}

	for _, c := range cases {
		stats.PerLevel[c.PearlLevel]++
		stats.PerDifficulty[c.Difficulty]++
		stats.PerLabel[c.GroundTruth]++

		if stats.LabelsByLevel[c.PearlLevel] == nil {
			stats.LabelsByLevel[c.PearlLevel] = make(map[string]int)
		}
		stats.LabelsByLevel[c.PearlLevel][c.GroundTruth]++

		if stats.DifficultyByLevel[c.PearlLevel] == nil {
			stats.DifficultyByLevel[c.PearlLevel] = make(map[string]int)
		}
		stats.DifficultyByLevel[c.PearlLevel][c.Difficulty]++

		prefix, _, _ := strings.Cut(c.TrapType, ":")
		stats.TrapPrefixes[prefix]++

		if c.FinalScore != nil {
			stats.ScoreRanges[scoreBucket(*c.FinalScore)]++
		}
	}

	return stats
}

// Validated filters to cases that passed scoring.
func Validated(cases []api.Case) []api.Case {
	var out []api.Case
	for _, c := range cases {
		if c.ValidationStatus == "VALIDATED" {
			out = append(out, c)
		}
	}
	return out
}

func scoreBucket(score float64) string {
	switch {
	case score >= 10.0:
		return "10.0"
	case score >= 9.0:
		return "9.0-9.9"
	case score >= 8.0:
		return "8.0-8.9"
	case score >= 6.0:
		return "6.0-7.9"
	default:
		return "<6.0"
	}
}

// Format renders stats as an aligned text report, one section per table.
func Format(stats api.RunStats) string {
	b := new(strings.Builder)

	fmt.Fprintf(b, "total cases: %d\n", stats.Total)

	writeSection(b, "by level", stats.PerLevel)
	writeSection(b, "by difficulty", stats.PerDifficulty)
	writeSection(b, "by label", stats.PerLabel)
	writeSection(b, "by trap family", stats.TrapPrefixes)
	writeSection(b, "by score range", stats.ScoreRanges)

	for _, level := range sortedKeys(stats.LabelsByLevel) {
		writeSection(b, fmt.Sprintf("labels in %s", level), stats.LabelsByLevel[level])
	}

	return b.String()
}

func writeSection(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}

	fmt.Fprintf(b, "\n%s:\n", title)
	for _, key := range sortedKeys(counts) {
		fmt.Fprintf(b, "  %-14s %d\n", key, counts[key])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
