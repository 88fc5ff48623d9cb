// Package taxonomy enumerates the fixed category space for generated
// causal-reasoning cases: Pearl levels, the ground-truth answer types valid
// at each level, the specific trap/family codes within each (level, answer)
// pair, and the subdomains that scenarios are drawn from. Everything here is
// static; mutable generation state lives in the allocation package.
package taxonomy

import "slices"

type PearlLevel string

const (
	LevelAssociation    PearlLevel = "L1"
	LevelIntervention   PearlLevel = "L2"
	LevelCounterfactual PearlLevel = "L3"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

const (
	AnswerNo          = "NO"
	AnswerYes         = "YES"
	AnswerAmbiguous   = "AMBIGUOUS"
	AnswerValid       = "VALID"
	AnswerInvalid     = "INVALID"
	AnswerConditional = "CONDITIONAL"
)

// Levels returns the three Pearl levels in their fixed order. Callers must
// not mutate the returned slice.
func Levels() []PearlLevel {
	return levels
}

func Difficulties() []Difficulty {
	return difficulties
}

// AnswerTypes returns the ground-truth labels valid for a level, in the
// declared order. The intervention level admits only NO: every L2 case asks
// whether an intervention claim holds and the trap catalog only covers
// claims that fail.
func AnswerTypes(level PearlLevel) []string {
	return answerTypes[level]
}

// Subtypes returns the specific trap/family codes valid for a
// (level, answerType) cell. For the counterfactual level the family list is
// filtered to families whose declared answer set contains answerType, so a
// draw over the returned list can never produce an unsupported combination.
func Subtypes(level PearlLevel, answerType string) []string {
	if level == LevelCounterfactual {
		var families []string
		for _, f := range counterfactualFamilies {
			if slices.Contains(familyAnswers[f], answerType) {
				families = append(families, f)
			}
		}
		return families
	}
	return subtypes[cellKey{level, answerType}]
}

// FamilyAnswers returns the answer types a counterfactual family supports,
// or nil for an unknown family.
func FamilyAnswers(family string) []string {
	return familyAnswers[family]
}

// AmbiguityKinds returns the four kinds of deliberate ambiguity used for
// L1 AMBIGUOUS cases. Identical to Subtypes(LevelAssociation, AnswerAmbiguous).
func AmbiguityKinds() []string {
	return ambiguityKinds
}

// Subdomains returns the market subdomains in declaration order. The order
// matters: the diversity tracker breaks usage-count ties by it.
func Subdomains() []string {
	return subdomains
}

var (
	levels       = []PearlLevel{LevelAssociation, LevelIntervention, LevelCounterfactual}
	difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

	answerTypes = map[PearlLevel][]string{
		LevelAssociation:    {AnswerNo, AnswerYes, AnswerAmbiguous},
		LevelIntervention:   {AnswerNo},
		LevelCounterfactual: {AnswerValid, AnswerInvalid, AnswerConditional},
	}
)

type cellKey struct {
	level      PearlLevel
	answerType string
}

// WOLF codes mark spurious-causation traps: the scenario suggests causation
// that the evidence does not support. SHEEP codes mark genuine causation
// dressed up to look suspicious.
var (
	wolfTraps = []string{
		"WOLF:CONFOUNDER",
		"WOLF:REVERSE_CAUSATION",
		"WOLF:SELECTION_BIAS",
		"WOLF:REGRESSION_TO_MEAN",
		"WOLF:SURVIVORSHIP",
		"WOLF:POST_HOC",
		"WOLF:BASE_RATE",
		"WOLF:ECOLOGICAL",
		"WOLF:SIMPSONS_PARADOX",
		"WOLF:CHERRY_PICKING",
	}

	sheepTraps = []string{
		"SHEEP:MECHANISM",
		"SHEEP:DOSE_RESPONSE",
		"SHEEP:NATURAL_EXPERIMENT",
		"SHEEP:TEMPORAL_GRADIENT",
		"SHEEP:CONSISTENCY",
		"SHEEP:SPECIFICITY",
		"SHEEP:COUNTEREXAMPLE_REMOVAL",
		"SHEEP:INSTRUMENTAL",
	}

	ambiguityKinds = []string{
		"AMB:MIXED_EVIDENCE",
		"AMB:UNDERSPECIFIED",
		"AMB:DUELING_MECHANISMS",
		"AMB:FRAME_DEPENDENT",
	}

	interventionTraps = []string{
		"IVN:NONCOMPLIANCE",
		"IVN:SPILLOVER",
		"IVN:CONFOUNDED_ASSIGNMENT",
		"IVN:ATTRITION",
		"IVN:HAWTHORNE",
		"IVN:DOSE_ESCAPE",
	}

	subtypes = map[cellKey][]string{
		{LevelAssociation, AnswerNo}:        wolfTraps,
		{LevelAssociation, AnswerYes}:       sheepTraps,
		{LevelAssociation, AnswerAmbiguous}: ambiguityKinds,
		{LevelIntervention, AnswerNo}:       interventionTraps,
	}
)

// Counterfactual families. Not every family can ground every answer:
// FRAGILE_CHAIN scenarios hinge on an unstated background condition and can
// only ever be CONDITIONAL.
var (
	counterfactualFamilies = []string{
		"CF:NECESSITY",
		"CF:SUFFICIENCY",
		"CF:PREEMPTION",
		"CF:OVERDETERMINATION",
		"CF:BACKTRACKING",
		"CF:TRANSITIVITY",
		"CF:FRAGILE_CHAIN",
	}

	familyAnswers = map[string][]string{
		"CF:NECESSITY":        {AnswerValid, AnswerInvalid},
		"CF:SUFFICIENCY":      {AnswerValid, AnswerInvalid},
		"CF:PREEMPTION":       {AnswerValid, AnswerInvalid, AnswerConditional},
		"CF:OVERDETERMINATION": {AnswerInvalid, AnswerConditional},
		"CF:BACKTRACKING":     {AnswerInvalid, AnswerConditional},
		"CF:TRANSITIVITY":     {AnswerValid, AnswerConditional},
		"CF:FRAGILE_CHAIN":    {AnswerConditional},
	}
)

// Subdomains of the Markets domain.
var subdomains = []string{
	"Equities",
	"Fixed Income",
	"Commodities",
	"Housing",
	"Labor Markets",
	"Banking",
	"Venture Capital",
	"Crypto",
	"Energy",
	"Trade",
	"Insurance",
	"Macro Policy",
}
