package allocation

import (
	"math/rand"

	"causalgen-backend/internal/core/taxonomy"
)

// QuotaSampler chooses the next category path to target, biasing the level
// draw toward unmet quotas. All randomness flows through the injected
// source, so a fixed seed replays a run exactly.
type QuotaSampler struct {
	rng *rand.Rand
}

func NewQuotaSampler(rng *rand.Rand) *QuotaSampler {
	return &QuotaSampler{rng: rng}
}

// Overrides pins individual draws of HierarchicalSample. Empty fields are
// sampled as usual.
type Overrides struct {
	Level        taxonomy.PearlLevel
	AnswerType   string
	Difficulty   taxonomy.Difficulty
	SpecificType string
}

// HierarchicalSample runs the four draws in order: level, answer type,
// difficulty, specific type. It cannot fail: every cell in the taxonomy is
// non-empty by construction, and every draw has a fallback.
func (s *QuotaSampler) HierarchicalSample(needs NeedCounters, overrides Overrides) CategoryPath {
	level := overrides.Level
	if level == "" {
		level = s.SamplePearlLevel(needs)
	}

	answerType := overrides.AnswerType
	if answerType == "" {
		answerType = s.SampleAnswerType(level)
	}

	difficulty := overrides.Difficulty
	if difficulty == "" {
		difficulty = s.SampleDifficulty()
	}

	specificType := overrides.SpecificType
	if specificType == "" {
		specificType = s.SampleSpecificType(level, answerType)
	}

	return CategoryPath{
		Level:        level,
		AnswerType:   answerType,
		Difficulty:   difficulty,
		SpecificType: specificType,
	}
}

// SamplePearlLevel draws a level weighted by each level's remaining deficit.
// Once all quotas are met it falls back to a uniform draw, so sampling never
// stalls at the end of a run.
func (s *QuotaSampler) SamplePearlLevel(needs NeedCounters) taxonomy.PearlLevel {
	levels := taxonomy.Levels()
	weights := []int{needs.L1.deficit(), needs.L2.deficit(), needs.L3.deficit()}

	total := 0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return levels[s.rng.Intn(len(levels))]
	}

	r := s.rng.Intn(total)
	cumulative := 0
	for i, w := range weights {
		cumulative += w
		if r < cumulative {
			return levels[i]
		}
	}
	return levels[len(levels)-1]
}

// Fixed answer-type proportions per level. These are deliberately not
// need-aware: quota correction happens at the level draw and again in the
// allocator's exact-count math, so a categorical table here keeps the label
// mix stable within a level.
var answerTypeWeights = map[taxonomy.PearlLevel][]int{
	taxonomy.LevelAssociation:    {50, 40, 10},
	taxonomy.LevelIntervention:   {100},
	taxonomy.LevelCounterfactual: {35, 25, 40},
}

func (s *QuotaSampler) SampleAnswerType(level taxonomy.PearlLevel) string {
	answers := taxonomy.AnswerTypes(level)
	weights := answerTypeWeights[level]

	r := s.rng.Intn(100)
	cumulative := 0
	for i, w := range weights {
		cumulative += w
		if r < cumulative {
			return answers[i]
		}
	}
	return answers[len(answers)-1]
}

// SampleDifficulty draws Easy/Medium/Hard at 25/50/25, independent of all
// other draws.
func (s *QuotaSampler) SampleDifficulty() taxonomy.Difficulty {
	r := s.rng.Intn(100)
	switch {
	case r < 25:
		return taxonomy.DifficultyEasy
	case r < 75:
		return taxonomy.DifficultyMedium
	default:
		return taxonomy.DifficultyHard
	}
}

// SampleSpecificType draws uniformly over the subtypes valid for the cell.
// The registry already filters counterfactual families by their declared
// answer sets, so an unsupported (family, answer) pair cannot be drawn.
func (s *QuotaSampler) SampleSpecificType(level taxonomy.PearlLevel, answerType string) string {
	candidates := taxonomy.Subtypes(level, answerType)
	return candidates[s.rng.Intn(len(candidates))]
}
