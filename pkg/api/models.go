package api

import (
	"time"

	"github.com/google/uuid"
)

const (
	SeedSourceLLM   = "llm"
	SeedSourceLocal = "local"
)

// DistributionSpec is the wire form of a run's target mix. Ratios cover all
// but the last answer type of a level; the remainder is derived server-side.
type DistributionSpec struct {
	L1 L1Target
	L2 L2Target
	L3 L3Target
}

type L1Target struct {
	Count   int
	NoRatio float64
}

type L2Target struct {
	Count int
}

type L3Target struct {
	Count        int
	ValidRatio   float64
	InvalidRatio float64
}

type CreateRunRequest struct {
	Name string

	Spec DistributionSpec

	// SeedSource selects where scenario seeds come from: "llm" (default)
	// or "local" for the offline generator.
	SeedSource string `json:"SeedSource,omitempty"`
}

type CreateRunResponse struct {
	RunId uuid.UUID
}

type Run struct {
	Id     uuid.UUID
	Name   string
	Status string

	Spec DistributionSpec

	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`

	TotalCases     int
	ValidatedCases int
}

type Case struct {
	Id    uuid.UUID
	RunId uuid.UUID

	PearlLevel  string
	GroundTruth string
	Difficulty  string
	TrapType    string
	Subdomain   string

	Scenario string
	Question string

	SeedId    string
	Entities  []string
	Timeframe string

	FinalScore       *float64 `json:"FinalScore,omitempty"`
	ValidationStatus string

	CreationTime time.Time
}

type ScoreCaseRequest struct {
	Score float64
	Notes string `json:"Notes,omitempty"`
}

type ListCasesParams struct {
	// Query is an optional filter expression, e.g.
	//   level = "L1" AND difficulty = "Hard" AND trap CONTAINS "WOLF"
	Query  string
	Limit  int
	Offset int
}

type ListCasesResponse struct {
	Cases []Case
	Total int
}

// RunStats mirrors the numbers the reporting scripts need: raw pool,
// validated subset, and the distribution tables for each.
type RunStats struct {
	Total int

	PerLevel      map[string]int
	PerDifficulty map[string]int
	PerLabel      map[string]int

	LabelsByLevel     map[string]map[string]int
	DifficultyByLevel map[string]map[string]int

	TrapPrefixes map[string]int
	ScoreRanges  map[string]int
}

type ExportRunResponse struct {
	// Key is the object store location of the exported jsonl dataset.
	Key   string
	Cases int
}

type DiversitySnapshot struct {
	SubdomainCounts map[string]int
	LeastUsed       []string
}
