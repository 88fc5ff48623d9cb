package allocation

import (
	"math"

	"causalgen-backend/internal/core/taxonomy"
)

// Group identifies one (level, answerType) block of the allocation order.
type Group struct {
	Level      taxonomy.PearlLevel `json:"level"`
	AnswerType string              `json:"answerType"`
}

// Shortfall reports a group whose quota could not be met because the seed
// pool ran dry. An empty shortfall list means the run filled completely.
type Shortfall struct {
	Group   Group `json:"group"`
	Missing int   `json:"missing"`
}

// Allocate deterministically partitions an ordered seed pool into bucket
// assignments matching the distribution spec. Seeds are consumed strictly in
// arrival order through a single cursor; within each group subtypes are
// cycled round-robin, so no subtype is used more than once more often than
// any other. When the pool is exhausted mid-group, the remaining groups are
// reported as shortfalls rather than errors, and no seed is reused or
// backfilled from a later group.
func Allocate(pool []ScenarioSeed, spec DistributionSpec) ([]BucketAssignment, []Shortfall) {
	assignments := make([]BucketAssignment, 0, min(len(pool), spec.TotalCount()))
	var shortfalls []Shortfall
	cursor := 0

	for _, group := range groupQuotas(spec) {
		subtypeList := taxonomy.Subtypes(group.Group.Level, group.Group.AnswerType)

		for i := 0; i < group.quota; i++ {
			if cursor >= len(pool) {
				shortfalls = append(shortfalls, Shortfall{Group: group.Group, Missing: group.quota - i})
				break
			}
			assignments = append(assignments, BucketAssignment{
				Seed:         pool[cursor],
				Level:        group.Group.Level,
				AnswerType:   group.Group.AnswerType,
				SpecificType: subtypeList[i%len(subtypeList)],
			})
			cursor++
		}
	}

	return assignments, shortfalls
}

type groupQuota struct {
	Group Group
	quota int
}

// groupQuotas derives integer counts per group in the fixed processing
// order. For ternary splits the last part is computed by subtraction, never
// by independent rounding, so the parts always sum to the level total.
func groupQuotas(spec DistributionSpec) []groupQuota {
	l1No := int(math.Round(float64(spec.L1.Count) * spec.L1.NoRatio))
	l1Yes := spec.L1.Count - l1No

	l3Valid := int(math.Round(float64(spec.L3.Count) * spec.L3.ValidRatio))
	l3Invalid := int(math.Round(float64(spec.L3.Count) * spec.L3.InvalidRatio))
	l3Conditional := spec.L3.Count - l3Valid - l3Invalid

	return []groupQuota{
		{Group{taxonomy.LevelAssociation, taxonomy.AnswerNo}, l1No},
		{Group{taxonomy.LevelAssociation, taxonomy.AnswerYes}, l1Yes},
		{Group{taxonomy.LevelIntervention, taxonomy.AnswerNo}, spec.L2.Count},
		{Group{taxonomy.LevelCounterfactual, taxonomy.AnswerValid}, l3Valid},
		{Group{taxonomy.LevelCounterfactual, taxonomy.AnswerInvalid}, l3Invalid},
		{Group{taxonomy.LevelCounterfactual, taxonomy.AnswerConditional}, l3Conditional},
	}
}

// GroupQuotas exposes the derived per-group counts for reporting and
// pre-sizing seed pools.
func GroupQuotas(spec DistributionSpec) map[Group]int {
	quotas := make(map[Group]int)
	for _, g := range groupQuotas(spec) {
		quotas[g.Group] = g.quota
	}
	return quotas
}
