package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"causalgen-backend/internal/core"
	"causalgen-backend/internal/core/allocation"
	"causalgen-backend/internal/database"
	"causalgen-backend/internal/export"
	"causalgen-backend/internal/messaging"
	"causalgen-backend/internal/reports"
	"causalgen-backend/internal/storage"
	"causalgen-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Scores at or above this threshold mark a case VALIDATED; everything below
// is REJECTED.
const validationThreshold = 8.0

type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
	store     storage.ObjectStore
}

func NewBackendService(db *gorm.DB, pub messaging.Publisher, store storage.ObjectStore) *BackendService {
	return &BackendService{db: db, publisher: pub, store: store}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreateRun))
		r.Get("/", RestHandler(s.ListRuns))
		r.Get("/{run_id}", RestHandler(s.GetRun))
		r.Get("/{run_id}/cases", RestHandler(s.ListRunCases))
		r.Get("/{run_id}/stats", RestHandler(s.GetRunStats))
		r.Get("/{run_id}/diversity", RestHandler(s.GetRunDiversity))
		r.Post("/{run_id}/export", RestHandler(s.ExportRun))
	})
	r.Route("/cases", func(r chi.Router) {
		r.Get("/{case_id}", RestHandler(s.GetCase))
		r.Post("/{case_id}/score", RestHandler(s.ScoreCase))
	})
}

func (s *BackendService) CreateRun(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateRunRequest](r)
	if err != nil {
		return nil, err
	}

	if err := validateName(req.Name); err != nil {
		return nil, err
	}

	spec := toAllocationSpec(req.Spec)
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	seedSource := req.SeedSource
	if seedSource == "" {
		seedSource = api.SeedSourceLLM
	}
	if seedSource != api.SeedSourceLLM && seedSource != api.SeedSourceLocal {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid seed source '%s': must be '%s' or '%s'", seedSource, api.SeedSourceLLM, api.SeedSourceLocal)
	}

	specJson, err := json.Marshal(spec)
	if err != nil {
		slog.Error("error marshalling run spec", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to encode run spec")
	}

	ctx := r.Context()

	run := &database.GenerationRun{
		Id:           uuid.New(),
		Name:         req.Name,
		Status:       database.RunQueued,
		Spec:         datatypes.JSON(specJson),
		SeedSource:   seedSource,
		CreationTime: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		slog.Error("error creating run", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create run entry")
	}

	if err := s.publisher.PublishGenerateRunTask(ctx, messaging.GenerateRunPayload{RunId: run.Id}); err != nil {
		slog.Error("error publishing generate run task", "run_id", run.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue generation task")
	}

	slog.Info("submitted generation run", "run_id", run.Id, "total", spec.TotalCount())
	return api.CreateRunResponse{RunId: run.Id}, nil
}

func (s *BackendService) ListRuns(r *http.Request) (any, error) {
	ctx := r.Context()

	var runs []database.GenerationRun
	if err := s.db.WithContext(ctx).Order("creation_time desc").Find(&runs).Error; err != nil {
		slog.Error("error listing runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving runs")
	}

	out := make([]api.Run, 0, len(runs))
	for _, run := range runs {
		converted, err := s.convertRun(ctx, run)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

func (s *BackendService) GetRun(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	run, err := s.loadRun(ctx, runId)
	if err != nil {
		return nil, err
	}

	return s.convertRun(ctx, run)
}

func (s *BackendService) ListRunCases(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.ListCasesParams](r)
	if err != nil {
		return nil, err
	}

	var filter core.Filter
	if params.Query != "" {
		filter, err = core.ParseQuery(params.Query)
		if err != nil {
			return nil, CodedErrorf(http.StatusUnprocessableEntity, "invalid filter query: %v", err)
		}
	}

	ctx := r.Context()

	if _, err := s.loadRun(ctx, runId); err != nil {
		return nil, err
	}

	var records []database.Case
	if err := s.db.WithContext(ctx).Where("run_id = ?", runId).Order("creation_time").Find(&records).Error; err != nil {
		slog.Error("error listing cases", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving cases")
	}

	var matched []api.Case
	for _, record := range records {
		c := convertCase(record)
		if filter == nil || filter.Matches(core.FieldsForCase(c)) {
			matched = append(matched, c)
		}
	}

	total := len(matched)
	if params.Offset > 0 {
		if params.Offset > total {
			matched = nil
		} else {
			matched = matched[params.Offset:]
		}
	}
	if params.Limit > 0 && params.Limit < len(matched) {
		matched = matched[:params.Limit]
	}

	return api.ListCasesResponse{Cases: matched, Total: total}, nil
}

func (s *BackendService) GetCase(r *http.Request) (any, error) {
	caseId, err := URLParamUUID(r, "case_id")
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	var record database.Case
	if err := s.db.WithContext(ctx).First(&record, "id = ?", caseId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "case not found")
		}
		slog.Error("error getting case", "case_id", caseId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving case record")
	}

	return convertCase(record), nil
}

func (s *BackendService) ScoreCase(r *http.Request) (any, error) {
	caseId, err := URLParamUUID(r, "case_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.ScoreCaseRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Score < 0 || req.Score > 10 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "score %v out of range: must be between 0 and 10", req.Score)
	}

	status := database.CaseRejected
	if req.Score >= validationThreshold {
		status = database.CaseValidated
	}

	ctx := r.Context()

	result := s.db.WithContext(ctx).Model(&database.Case{}).Where("id = ?", caseId).Updates(map[string]any{
		"final_score":       req.Score,
		"score_notes":       req.Notes,
		"validation_status": status,
	})
	if result.Error != nil {
		slog.Error("error scoring case", "case_id", caseId, "error", result.Error)
		return nil, CodedErrorf(http.StatusInternalServerError, "error updating case score")
	}
	if result.RowsAffected == 0 {
		return nil, CodedErrorf(http.StatusNotFound, "case not found")
	}

	var record database.Case
	if err := s.db.WithContext(ctx).First(&record, "id = ?", caseId).Error; err != nil {
		slog.Error("error reloading scored case", "case_id", caseId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving case record")
	}

	slog.Info("scored case", "case_id", caseId, "score", req.Score, "status", status)
	return convertCase(record), nil
}

func (s *BackendService) GetRunStats(r *http.Request) (any, error) {
	cases, err := s.casesForRun(r)
	if err != nil {
		return nil, err
	}

	return reports.Compute(cases), nil
}

func (s *BackendService) GetRunDiversity(r *http.Request) (any, error) {
	cases, err := s.casesForRun(r)
	if err != nil {
		return nil, err
	}

	// Rebuild the tracker from stored cases so the snapshot reflects what
	// actually got generated, not what was planned.
	state := allocation.NewDiversityState()
	seeds := make([]allocation.ScenarioSeed, 0, len(cases))
	for _, c := range cases {
		seeds = append(seeds, allocation.ScenarioSeed{
			ID:        c.SeedId,
			Subdomain: c.Subdomain,
			Entities:  c.Entities,
			Timeframe: c.Timeframe,
			Event:     c.Scenario,
		})
	}
	state.Update(seeds)

	return api.DiversitySnapshot{
		SubdomainCounts: state.SubdomainCounts(),
		LeastUsed:       state.LeastUsedSubdomains(4),
	}, nil
}

func (s *BackendService) ExportRun(r *http.Request) (any, error) {
	if s.store == nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "no export store configured")
	}

	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	cases, err := s.casesForRun(r)
	if err != nil {
		return nil, err
	}

	if len(cases) == 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "run has no cases to export")
	}

	key, err := export.ExportRun(r.Context(), s.store, runId, cases)
	if err != nil {
		slog.Error("error exporting run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error exporting run dataset")
	}

	slog.Info("exported run dataset", "run_id", runId, "key", key, "cases", len(cases))
	return api.ExportRunResponse{Key: key, Cases: len(cases)}, nil
}

func (s *BackendService) casesForRun(r *http.Request) ([]api.Case, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	if _, err := s.loadRun(ctx, runId); err != nil {
		return nil, err
	}

	var records []database.Case
	if err := s.db.WithContext(ctx).Where("run_id = ?", runId).Find(&records).Error; err != nil {
		slog.Error("error loading cases for run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving cases")
	}

	cases := make([]api.Case, 0, len(records))
	for _, record := range records {
		cases = append(cases, convertCase(record))
	}
	return cases, nil
}

func (s *BackendService) loadRun(ctx context.Context, runId uuid.UUID) (database.GenerationRun, error) {
	var run database.GenerationRun
	if err := s.db.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return run, CodedErrorf(http.StatusNotFound, "run not found")
		}
		slog.Error("error getting run", "run_id", runId, "error", err)
		return run, CodedErrorf(http.StatusInternalServerError, "error retrieving run record")
	}
	return run, nil
}
