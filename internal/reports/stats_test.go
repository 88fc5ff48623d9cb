package reports

import (
	"strings"
	"testing"

	"causalgen-backend/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

func sampleCases() []api.Case {
	return []api.Case{
		{PearlLevel: "L1", GroundTruth: "NO", Difficulty: "Easy", TrapType: "WOLF:CONFOUNDER", FinalScore: score(9.5), ValidationStatus: "VALIDATED"},
		{PearlLevel: "L1", GroundTruth: "YES", Difficulty: "Medium", TrapType: "SHEEP:MECHANISM", FinalScore: score(8.0), ValidationStatus: "VALIDATED"},
		{PearlLevel: "L1", GroundTruth: "AMBIGUOUS", Difficulty: "Medium", TrapType: "AMB:MIXED_EVIDENCE", FinalScore: score(5.5), ValidationStatus: "REJECTED"},
		{PearlLevel: "L2", GroundTruth: "NO", Difficulty: "Hard", TrapType: "IVN:SPILLOVER", FinalScore: score(10.0), ValidationStatus: "VALIDATED"},
		{PearlLevel: "L3", GroundTruth: "VALID", Difficulty: "Medium", TrapType: "CF:NECESSITY", ValidationStatus: "PENDING"},
		{PearlLevel: "L3", GroundTruth: "CONDITIONAL", Difficulty: "Easy", TrapType: "CF:FRAGILE_CHAIN", FinalScore: score(7.2), ValidationStatus: "REJECTED"},
	}
}

func TestCompute(t *testing.T) {
	stats := Compute(sampleCases())

	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, map[string]int{"L1": 3, "L2": 1, "L3": 2}, stats.PerLevel)
	assert.Equal(t, map[string]int{"Easy": 2, "Medium": 3, "Hard": 1}, stats.PerDifficulty)
	assert.Equal(t, 1, stats.PerLabel["AMBIGUOUS"])
	assert.Equal(t, 2, stats.PerLabel["NO"])

	assert.Equal(t, map[string]int{"NO": 1, "YES": 1, "AMBIGUOUS": 1}, stats.LabelsByLevel["L1"])
	assert.Equal(t, map[string]int{"Hard": 1}, stats.DifficultyByLevel["L2"])

	assert.Equal(t, map[string]int{"WOLF": 1, "SHEEP": 1, "AMB": 1, "IVN": 1, "CF": 2}, stats.TrapPrefixes)

	// The unscored case contributes to no bucket.
	assert.Equal(t, map[string]int{"10.0": 1, "9.0-9.9": 1, "8.0-8.9": 1, "6.0-7.9": 1, "<6.0": 1}, stats.ScoreRanges)
}

func TestComputeEmpty(t *testing.T) {
	stats := Compute(nil)
	assert.Equal(t, 0, stats.Total)
	assert.Empty(t, stats.PerLevel)
	assert.Empty(t, stats.ScoreRanges)
}

func TestScoreBucketBoundaries(t *testing.T) {
	assert.Equal(t, "10.0", scoreBucket(10.0))
	assert.Equal(t, "9.0-9.9", scoreBucket(9.99))
	assert.Equal(t, "9.0-9.9", scoreBucket(9.0))
	assert.Equal(t, "8.0-8.9", scoreBucket(8.0))
	assert.Equal(t, "6.0-7.9", scoreBucket(6.0))
	assert.Equal(t, "<6.0", scoreBucket(5.99))
	assert.Equal(t, "<6.0", scoreBucket(0))
}

func TestValidated(t *testing.T) {
	validated := Validated(sampleCases())
	require.Len(t, validated, 3)
	for _, c := range validated {
		assert.Equal(t, "VALIDATED", c.ValidationStatus)
	}
}

func TestFormat(t *testing.T) {
	out := Format(Compute(sampleCases()))

	assert.True(t, strings.HasPrefix(out, "total cases: 6"))
	assert.Contains(t, out, "by level:")
	assert.Contains(t, out, "labels in L1:")
	assert.Contains(t, out, "WOLF")
}
