package casegen

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"causalgen-backend/internal/core/allocation"
	"causalgen-backend/internal/core/taxonomy"

	"github.com/jaswdr/faker/v2"
)

// How many under-used subdomains and already-seen entities to surface in a
// seed prompt. More than this and the steering section drowns out the task.
const (
	promptSubdomains  = 4
	promptAvoidEntCap = 40
	seedSystemPrompt  = "You are a helpful assistant designed to generate scenario seeds for a financial markets reasoning dataset."
)

// SeedSource produces batches of candidate scenario seeds. Implementations
// use the diversity state read-only, to steer away from content the run has
// already spent.
type SeedSource interface {
	NextBatch(ctx context.Context, n int, diversity *allocation.DiversityState) ([]allocation.ScenarioSeed, error)
}

type LLMSeedSource struct {
	llm LLM
}

func NewLLMSeedSource(llm LLM) *LLMSeedSource {
	return &LLMSeedSource{llm: llm}
}

func (s *LLMSeedSource) NextBatch(ctx context.Context, n int, diversity *allocation.DiversityState) ([]allocation.ScenarioSeed, error) {
	avoid := diversity.UsedEntities()
	if len(avoid) > promptAvoidEntCap {
		avoid = avoid[len(avoid)-promptAvoidEntCap:]
	}

	prompt := new(strings.Builder)
	err := seedBatchPromptTmpl.Execute(prompt, seedBatchPromptFields{
		NumSeeds:      n,
		Subdomains:    diversity.LeastUsedSubdomains(promptSubdomains),
		AvoidEntities: avoid,
	})
	if err != nil {
		return nil, fmt.Errorf("error rendering seedBatch template: %w", err)
	}

	response, err := s.llm.Generate(ctx, seedSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("error generating seed batch: %w", err)
	}

	return allocation.ParseSeedBatch(response)
}

// FakerSeedSource fabricates seeds locally. It exists so the pipeline can run
// end to end without model access, e.g. in the local binary and in tests.
type FakerSeedSource struct {
	faker   faker.Faker
	counter atomic.Int64
}

func NewFakerSeedSource() *FakerSeedSource {
	return &FakerSeedSource{faker: faker.New()}
}

var fakerEvents = []string{
	"announced a surprise change in guidance",
	"reported results far outside analyst expectations",
	"disclosed a previously unreported exposure",
	"completed an unexpected acquisition",
	"suffered a sharp drawdown over two weeks",
	"raised prices across its main product line",
}

func (s *FakerSeedSource) NextBatch(ctx context.Context, n int, diversity *allocation.DiversityState) ([]allocation.ScenarioSeed, error) {
	subdomains := diversity.LeastUsedSubdomains(len(taxonomy.Subdomains()))

	seeds := make([]allocation.ScenarioSeed, 0, n)
	for i := 0; i < n; i++ {
		id := s.counter.Add(1)
		primary := s.faker.Company().Name()
		secondary := s.faker.Company().Name()
		event := fmt.Sprintf("%s %s", primary, s.faker.RandomStringElement(fakerEvents))

		seeds = append(seeds, allocation.ScenarioSeed{
			ID:        fmt.Sprintf("seed-local-%d", id),
			Topic:     event,
			Subdomain: subdomains[i%len(subdomains)],
			Entities:  []string{primary, secondary},
			Timeframe: fmt.Sprintf("Q%d %d", s.faker.IntBetween(1, 4), s.faker.IntBetween(2015, 2025)),
			Event:     event,
			Context:   s.faker.Lorem().Sentence(12),
		})
	}
	return seeds, nil
}
