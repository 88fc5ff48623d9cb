package casegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strings"
	"time"

	"causalgen-backend/internal/core/allocation"
	"causalgen-backend/internal/core/taxonomy"
	"causalgen-backend/internal/core/utils"

	"github.com/openai/openai-go"
	"github.com/schollz/progressbar/v3"
)

const (
	maxConcurrentLLMCalls = 5
	seedBatchSize         = 20

	caseSystemPrompt = "You are a helpful assistant designed to write causal reasoning benchmark questions about financial markets."
)

type FactoryOpts struct {
	LLM   LLM
	Seeds SeedSource

	// Rng drives all category sampling. Nil means a time-seeded source;
	// inject a fixed seed to replay a run.
	Rng *rand.Rand

	MaxConcurrent int
	ShowProgress  bool
}

// Factory runs the full generation pipeline for one run: gather a seed pool,
// partition it into bucket assignments, and generate one case per assignment.
type Factory struct {
	llm           LLM
	seeds         SeedSource
	sampler       *allocation.QuotaSampler
	maxConcurrent int
	showProgress  bool
}

func NewFactory(opts FactoryOpts) *Factory {
	llm := opts.LLM
	if llm == nil {
		llm = NewOpenAI(openai.ChatModelGPT4oMini, 0.8, DefaultGenerateTimeout)
	}
	seeds := opts.Seeds
	if seeds == nil {
		seeds = NewLLMSeedSource(llm)
	}
	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = maxConcurrentLLMCalls
	}

	return &Factory{
		llm:           llm,
		seeds:         seeds,
		sampler:       allocation.NewQuotaSampler(rng),
		maxConcurrent: maxConcurrent,
		showProgress:  opts.ShowProgress,
	}
}

// GeneratedCase is one finished benchmark question with its full label set.
type GeneratedCase struct {
	PearlLevel  string
	GroundTruth string
	Difficulty  string
	TrapType    string
	Subdomain   string
	Scenario    string
	Question    string
	SeedId      string
	Entities    []string
	Timeframe   string
}

// RunResult reports everything a run produced, including the parts that fell
// short. Cases may be partial when the error is non-nil; callers persist what
// succeeded.
type RunResult struct {
	Cases      []GeneratedCase
	Shortfalls []allocation.Shortfall
	SeedIssues []string
}

func (f *Factory) GenerateRun(ctx context.Context, spec allocation.DistributionSpec) (RunResult, error) {
	total := spec.TotalCount()
	if total == 0 {
		return RunResult{}, nil
	}

	slog.Info("starting generation run", "total", total, "l1", spec.L1.Count, "l2", spec.L2.Count, "l3", spec.L3.Count)

	pool, issues := f.gatherSeeds(ctx, total)

	assignments, shortfalls := allocation.Allocate(pool, spec)
	for _, s := range shortfalls {
		slog.Warn("seed pool exhausted before quota", "level", s.Group.Level, "answer_type", s.Group.AnswerType, "missing", s.Missing)
	}

	jobs := f.buildJobs(spec, assignments)

	bar := f.progress(len(jobs))
	worker := func(job caseJob) (GeneratedCase, error) {
		defer bar.Add(1)
		return f.generateCase(ctx, job)
	}

	cases, errs := utils.RunInPool(worker, jobs, f.maxConcurrent)

	kept := make([]GeneratedCase, 0, len(cases))
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			continue
		}
		kept = append(kept, cases[i])
	}

	slog.Info("generation run finished", "generated", len(kept), "failed", failed, "shortfalls", len(shortfalls))

	result := RunResult{Cases: kept, Shortfalls: shortfalls, SeedIssues: issues}
	if failed > 0 {
		return result, errors.Join(utils.FirstErrors(errs, 3)...)
	}
	return result, nil
}

// gatherSeeds requests batches until the pool covers the run or the source
// stops making progress. Seeds that collide with earlier content are dropped
// with a recorded issue; the source is steered away from repeats, so a
// replacement usually lands in a later batch.
func (f *Factory) gatherSeeds(ctx context.Context, total int) ([]allocation.ScenarioSeed, []string) {
	diversity := allocation.NewDiversityState()

	var pool []allocation.ScenarioSeed
	var issues []string

	// Two extra batches of headroom absorbs duplicate rejections.
	maxBatches := (total+seedBatchSize-1)/seedBatchSize + 2

	for batch := 0; batch < maxBatches && len(pool) < total; batch++ {
		if ctx.Err() != nil {
			break
		}

		want := min(seedBatchSize, total-len(pool))
		seeds, err := f.seeds.NextBatch(ctx, want, diversity)
		if err != nil {
			slog.Warn("seed batch failed", "batch", batch, "error", err)
			continue
		}

		accepted := make([]allocation.ScenarioSeed, 0, len(seeds))
		for _, seed := range seeds {
			if v := diversity.Validate(seed); !v.Valid {
				issues = append(issues, fmt.Sprintf("seed %s: %s", seed.ID, strings.Join(v.Issues, "; ")))
				continue
			}
			accepted = append(accepted, seed)
		}

		diversity.Update(accepted)
		pool = append(pool, accepted...)

		slog.Info("gathered seed batch", "batch", batch, "accepted", len(accepted), "rejected", len(seeds)-len(accepted), "pool", len(pool))
	}

	return pool, issues
}

type caseJob struct {
	assignment allocation.BucketAssignment
	path       allocation.CategoryPath
}

// buildJobs fixes the full category path for every assignment. Sampling is
// done up front, single threaded, so the workers only do model I/O.
func (f *Factory) buildJobs(spec allocation.DistributionSpec, assignments []allocation.BucketAssignment) []caseJob {
	needs := allocation.NewNeedCounters(spec, nil)

	jobs := make([]caseJob, 0, len(assignments))
	for _, a := range assignments {
		overrides := allocation.Overrides{
			Level:        a.Level,
			AnswerType:   a.AnswerType,
			SpecificType: a.SpecificType,
		}
		if d := taxonomy.Difficulty(a.Seed.Difficulty); slices.Contains(taxonomy.Difficulties(), d) {
			overrides.Difficulty = d
		}

		path := f.sampler.HierarchicalSample(needs, overrides)
		needs.Record(path.Level)

		jobs = append(jobs, caseJob{assignment: a, path: path})
	}
	return jobs
}

func (f *Factory) generateCase(ctx context.Context, job caseJob) (GeneratedCase, error) {
	seed := job.assignment.Seed

	prompt := new(strings.Builder)
	err := casePromptTmpl.Execute(prompt, casePromptFields{
		LevelName:     string(job.path.Level),
		LevelGuidance: levelGuidance[job.path.Level],
		AnswerType:    job.path.AnswerType,
		AnswerMeaning: meaningForAnswer(job.path.Level, job.path.AnswerType),
		TrapType:      job.path.SpecificType,
		TrapGuidance:  guidanceForTrap(job.path.SpecificType),
		Difficulty:    string(job.path.Difficulty),
		Topic:         seed.Topic,
		Subdomain:     seed.Subdomain,
		Entities:      seed.Entities,
		Timeframe:     seed.Timeframe,
		Event:         seed.Event,
		Context:       seed.Context,
	})
	if err != nil {
		return GeneratedCase{}, fmt.Errorf("error rendering case template: %w", err)
	}

	response, err := f.llm.Generate(ctx, caseSystemPrompt, prompt.String())
	if err != nil {
		return GeneratedCase{}, fmt.Errorf("error generating case for seed %s: %w", seed.ID, err)
	}

	body, err := parseCaseBody(response)
	if err != nil {
		return GeneratedCase{}, fmt.Errorf("error parsing case for seed %s: %w", seed.ID, err)
	}

	return GeneratedCase{
		PearlLevel:  string(job.path.Level),
		GroundTruth: job.path.AnswerType,
		Difficulty:  string(job.path.Difficulty),
		TrapType:    job.path.SpecificType,
		Subdomain:   seed.Subdomain,
		Scenario:    body.Scenario,
		Question:    body.Question,
		SeedId:      seed.ID,
		Entities:    seed.Entities,
		Timeframe:   seed.Timeframe,
	}, nil
}

type caseBody struct {
	Scenario string `json:"scenario"`
	Question string `json:"question"`
}

// parseCaseBody extracts the first JSON object from raw model output,
// tolerating code fences and surrounding prose.
func parseCaseBody(raw string) (caseBody, error) {
	payload, ok := firstJSONObject(raw)
	if !ok {
		return caseBody{}, fmt.Errorf("no JSON object found in case response (%d bytes)", len(raw))
	}

	var body caseBody
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return caseBody{}, fmt.Errorf("error parsing case object: %w", err)
	}

	body.Scenario = strings.TrimSpace(body.Scenario)
	body.Question = strings.TrimSpace(body.Question)
	if body.Scenario == "" || body.Question == "" {
		return caseBody{}, fmt.Errorf("case response missing scenario or question")
	}
	return body, nil
}

func firstJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func (f *Factory) progress(n int) *progressbar.ProgressBar {
	if !f.showProgress {
		return progressbar.DefaultSilent(int64(n))
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription("generating cases"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}
