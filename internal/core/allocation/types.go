// Package allocation decides which category of case to generate next and
// which validated scenario seed to spend on it. It owns the per-run mutable
// state (need counters, diversity tracker) and the deterministic math that
// maps a seed pool onto taxonomy cells. Nothing here performs I/O or calls a
// model; the surrounding pipeline does that.
package allocation

import "causalgen-backend/internal/core/taxonomy"

// CategoryPath is one leaf cell of the taxonomy: the full set of labels a
// generated case must exemplify.
type CategoryPath struct {
	Level        taxonomy.PearlLevel `json:"level"`
	AnswerType   string              `json:"answerType"`
	Difficulty   taxonomy.Difficulty `json:"difficulty"`
	SpecificType string              `json:"specificType"`
}

// DistributionSpec is the target mix for one generation run. Ratios within a
// level must describe all but the last answer type; the remainder is always
// computed by subtraction so derived counts sum exactly to the level count.
type DistributionSpec struct {
	L1 L1Spec `json:"l1"`
	L2 L2Spec `json:"l2"`
	L3 L3Spec `json:"l3"`
}

type L1Spec struct {
	Count   int     `json:"count"`
	NoRatio float64 `json:"noRatio"`
}

type L2Spec struct {
	Count int `json:"count"`
}

type L3Spec struct {
	Count        int     `json:"count"`
	ValidRatio   float64 `json:"validRatio"`
	InvalidRatio float64 `json:"invalidRatio"`
}

// TotalCount is the number of assignments a fully filled run produces.
func (s DistributionSpec) TotalCount() int {
	return s.L1.Count + s.L2.Count + s.L3.Count
}

// NeedCounter tracks one dimension's quota gap.
type NeedCounter struct {
	Needed  int `json:"needed"`
	Current int `json:"current"`
}

func (c NeedCounter) deficit() int {
	if c.Needed > c.Current {
		return c.Needed - c.Current
	}
	return 0
}

// NeedCounters holds the per-level quota state for a run. It is created once
// at run start and mutated by a single owner for the run's duration.
type NeedCounters struct {
	L1 NeedCounter `json:"l1"`
	L2 NeedCounter `json:"l2"`
	L3 NeedCounter `json:"l3"`
}

// NewNeedCounters derives level needs from a distribution spec and counts of
// already generated cases.
func NewNeedCounters(spec DistributionSpec, current map[taxonomy.PearlLevel]int) NeedCounters {
	return NeedCounters{
		L1: NeedCounter{Needed: spec.L1.Count, Current: current[taxonomy.LevelAssociation]},
		L2: NeedCounter{Needed: spec.L2.Count, Current: current[taxonomy.LevelIntervention]},
		L3: NeedCounter{Needed: spec.L3.Count, Current: current[taxonomy.LevelCounterfactual]},
	}
}

// Record notes a successful allocation against a level.
func (n *NeedCounters) Record(level taxonomy.PearlLevel) {
	switch level {
	case taxonomy.LevelAssociation:
		n.L1.Current++
	case taxonomy.LevelIntervention:
		n.L2.Current++
	case taxonomy.LevelCounterfactual:
		n.L3.Current++
	}
}

// ScenarioSeed is a compact, externally produced description of a concrete
// scenario. A seed is consumed by exactly one bucket assignment; after
// allocation it belongs to the downstream generation stage.
type ScenarioSeed struct {
	ID         string   `json:"id"`
	Topic      string   `json:"topic"`
	Subdomain  string   `json:"subdomain"`
	Entities   []string `json:"entities"`
	Timeframe  string   `json:"timeframe"`
	Event      string   `json:"event"`
	Context    string   `json:"context"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// BucketAssignment is the finalized pairing of a seed with a taxonomy cell.
// Immutable once created.
type BucketAssignment struct {
	Seed         ScenarioSeed        `json:"seed"`
	Level        taxonomy.PearlLevel `json:"level"`
	AnswerType   string              `json:"answerType"`
	SpecificType string              `json:"specificType"`
}
