package allocation

import (
	"fmt"
	"sort"
	"strings"

	"causalgen-backend/internal/core/taxonomy"
)

// Events are compared on a lower-cased prefix of this length. Long event
// descriptions tend to diverge only in their tails, so a fixed prefix is a
// cheap near-duplicate check.
const eventPrefixLength = 50

// DiversityState records the concrete scenario content used so far in one
// generation run. It grows monotonically and is owned by a single caller;
// it is not safe for concurrent mutation.
type DiversityState struct {
	usedEntities    map[string]struct{}
	usedEvents      map[string]struct{}
	usedTimeframes  map[string]struct{}
	subdomainCounts map[string]int
}

func NewDiversityState() *DiversityState {
	return &DiversityState{
		usedEntities:    make(map[string]struct{}),
		usedEvents:      make(map[string]struct{}),
		usedTimeframes:  make(map[string]struct{}),
		subdomainCounts: make(map[string]int),
	}
}

// Update records the content of accepted seeds. It performs no validation:
// callers are expected to have run Validate first, and to call Update exactly
// once per accepted seed.
func (s *DiversityState) Update(seeds []ScenarioSeed) {
	for _, seed := range seeds {
		for _, entity := range seed.Entities {
			s.usedEntities[strings.ToLower(entity)] = struct{}{}
		}
		s.usedEvents[normalizeEvent(seed.Event)] = struct{}{}
		s.usedTimeframes[strings.ToLower(seed.Timeframe)] = struct{}{}
		s.subdomainCounts[seed.Subdomain]++
	}
}

// Validation is the advisory result of checking a candidate seed. Issues
// never block allocation; callers decide whether to accept with warnings or
// request a replacement.
type Validation struct {
	Valid  bool
	Issues []string
}

func (s *DiversityState) Validate(seed ScenarioSeed) Validation {
	var issues []string

	for _, entity := range seed.Entities {
		if _, used := s.usedEntities[strings.ToLower(entity)]; used {
			issues = append(issues, fmt.Sprintf("entity %q already used", entity))
		}
	}

	if _, used := s.usedEvents[normalizeEvent(seed.Event)]; used {
		issues = append(issues, fmt.Sprintf("event %q duplicates an earlier seed", seed.Event))
	}

	return Validation{Valid: len(issues) == 0, Issues: issues}
}

// LeastUsedSubdomains returns the n subdomains with the lowest usage counts,
// ascending. Subdomains never seen count as zero. Ties are broken by the
// registry's declaration order, so results are stable across calls.
func (s *DiversityState) LeastUsedSubdomains(n int) []string {
	all := taxonomy.Subdomains()

	ranked := make([]string, len(all))
	copy(ranked, all)
	sort.SliceStable(ranked, func(i, j int) bool {
		return s.subdomainCounts[ranked[i]] < s.subdomainCounts[ranked[j]]
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// SubdomainCounts returns a copy of the usage histogram for progress
// reporting.
func (s *DiversityState) SubdomainCounts() map[string]int {
	counts := make(map[string]int, len(s.subdomainCounts))
	for k, v := range s.subdomainCounts {
		counts[k] = v
	}
	return counts
}

// UsedEntities returns the normalized entity names recorded so far, useful
// for steering seed prompts away from repeats.
func (s *DiversityState) UsedEntities() []string {
	entities := make([]string, 0, len(s.usedEntities))
	for e := range s.usedEntities {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	return entities
}

func normalizeEvent(event string) string {
	event = strings.ToLower(event)
	if runes := []rune(event); len(runes) > eventPrefixLength {
		event = string(runes[:eventPrefixLength])
	}
	return event
}
