package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"causalgen-backend/internal/core/allocation"
	"causalgen-backend/internal/core/casegen"
	"causalgen-backend/internal/core/taxonomy"
	"causalgen-backend/internal/database"
	"causalgen-backend/internal/messaging"
	"causalgen-backend/pkg/api"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskProcessor struct {
	db       *gorm.DB
	reciever messaging.Reciever

	llm           casegen.LLM
	maxConcurrent int
	showProgress  bool
}

func NewTaskProcessor(db *gorm.DB, reciever messaging.Reciever, llm casegen.LLM, maxConcurrent int, showProgress bool) *TaskProcessor {
	return &TaskProcessor{
		db:            db,
		reciever:      reciever,
		llm:           llm,
		maxConcurrent: maxConcurrent,
		showProgress:  showProgress,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	for task := range proc.reciever.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {

	case messaging.GenerateRunQueue:
		var payload messaging.GenerateRunPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling generate run task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processGenerateRunTask(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil { // reject unknown message type
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) processGenerateRunTask(ctx context.Context, payload messaging.GenerateRunPayload) error {
	runId := payload.RunId

	slog.Info("processing generate run task", "run_id", runId)

	var run database.GenerationRun
	if err := proc.db.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		slog.Error("error fetching run", "run_id", runId, "error", err)
		return fmt.Errorf("error getting run: %w", err)
	}

	var spec allocation.DistributionSpec
	if err := json.Unmarshal(run.Spec, &spec); err != nil {
		slog.Error("error unmarshalling run spec", "run_id", runId, "error", err)
		database.SaveRunError(ctx, proc.db, runId, fmt.Sprintf("invalid spec: %s", err.Error()))
		database.UpdateRunStatus(ctx, proc.db, runId, database.RunFailed) //nolint:errcheck
		return fmt.Errorf("error parsing run spec: %w", err)
	}

	// On redelivery, cases from the interrupted attempt are already stored.
	// Shrink the targets so only the missing remainder is generated.
	existing, err := database.CountCasesByLevel(ctx, proc.db, runId)
	if err != nil {
		return fmt.Errorf("error counting existing cases: %w", err)
	}
	spec = remainingSpec(spec, existing)

	if err := database.UpdateRunStatus(ctx, proc.db, runId, database.RunRunning); err != nil {
		return fmt.Errorf("error marking run as running: %w", err)
	}

	factory := casegen.NewFactory(casegen.FactoryOpts{
		LLM:           proc.llm,
		Seeds:         proc.seedSource(run.SeedSource),
		MaxConcurrent: proc.maxConcurrent,
		ShowProgress:  proc.showProgress,
	})

	result, genErr := factory.GenerateRun(ctx, spec)

	if err := proc.saveCases(ctx, runId, result.Cases); err != nil {
		database.SaveRunError(ctx, proc.db, runId, err.Error())
		database.UpdateRunStatus(ctx, proc.db, runId, database.RunFailed) //nolint:errcheck
		return err
	}

	for _, issue := range result.SeedIssues {
		slog.Warn("seed diversity issue", "run_id", runId, "issue", issue)
	}

	if genErr != nil {
		slog.Error("error generating cases", "run_id", runId, "error", genErr)
		database.SaveRunError(ctx, proc.db, runId, genErr.Error())
		database.UpdateRunStatus(ctx, proc.db, runId, database.RunFailed) //nolint:errcheck
		return fmt.Errorf("error generating cases: %w", genErr)
	}

	status := database.RunCompleted
	if len(result.Shortfalls) > 0 {
		status = database.RunUnderFilled
		database.SaveRunError(ctx, proc.db, runId, describeShortfalls(result.Shortfalls))
	}

	if err := database.UpdateRunStatus(ctx, proc.db, runId, status); err != nil {
		return fmt.Errorf("error updating run status: %w", err)
	}

	slog.Info("generate run task completed", "run_id", runId, "status", status, "cases", len(result.Cases))
	return nil
}

func (proc *TaskProcessor) seedSource(name string) casegen.SeedSource {
	if name == api.SeedSourceLocal {
		return casegen.NewFakerSeedSource()
	}
	return nil // factory defaults to the LLM-backed source
}

func (proc *TaskProcessor) saveCases(ctx context.Context, runId uuid.UUID, cases []casegen.GeneratedCase) error {
	if len(cases) == 0 {
		return nil
	}

	records := make([]database.Case, 0, len(cases))
	for _, c := range cases {
		entities, err := json.Marshal(c.Entities)
		if err != nil {
			return fmt.Errorf("error marshalling case entities: %w", err)
		}

		records = append(records, database.Case{
			Id:               uuid.New(),
			RunId:            runId,
			PearlLevel:       c.PearlLevel,
			GroundTruth:      c.GroundTruth,
			Difficulty:       c.Difficulty,
			TrapType:         c.TrapType,
			Subdomain:        c.Subdomain,
			Scenario:         c.Scenario,
			Question:         c.Question,
			SeedId:           c.SeedId,
			Entities:         datatypes.JSON(entities),
			Timeframe:        c.Timeframe,
			ValidationStatus: database.CasePending,
			CreationTime:     time.Now().UTC(),
		})
	}

	if err := proc.db.WithContext(ctx).CreateInBatches(records, 100).Error; err != nil {
		slog.Error("error saving cases", "run_id", runId, "error", err)
		return fmt.Errorf("error saving cases: %w", err)
	}
	return nil
}

// remainingSpec subtracts already generated cases from the per level targets.
// Counts never go negative.
func remainingSpec(spec allocation.DistributionSpec, existing map[string]int) allocation.DistributionSpec {
	spec.L1.Count = max(0, spec.L1.Count-existing[string(taxonomy.LevelAssociation)])
	spec.L2.Count = max(0, spec.L2.Count-existing[string(taxonomy.LevelIntervention)])
	spec.L3.Count = max(0, spec.L3.Count-existing[string(taxonomy.LevelCounterfactual)])
	return spec
}

func describeShortfalls(shortfalls []allocation.Shortfall) string {
	msg := "seed pool exhausted before quotas were met:"
	for _, s := range shortfalls {
		msg += fmt.Sprintf(" %s/%s missing %d;", s.Group.Level, s.Group.AnswerType, s.Missing)
	}
	return msg
}
