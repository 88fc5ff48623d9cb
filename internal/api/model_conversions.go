package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"causalgen-backend/internal/core/allocation"
	"causalgen-backend/internal/database"
	"causalgen-backend/pkg/api"
)

func toAllocationSpec(spec api.DistributionSpec) allocation.DistributionSpec {
	return allocation.DistributionSpec{
		L1: allocation.L1Spec{Count: spec.L1.Count, NoRatio: spec.L1.NoRatio},
		L2: allocation.L2Spec{Count: spec.L2.Count},
		L3: allocation.L3Spec{Count: spec.L3.Count, ValidRatio: spec.L3.ValidRatio, InvalidRatio: spec.L3.InvalidRatio},
	}
}

func fromAllocationSpec(spec allocation.DistributionSpec) api.DistributionSpec {
	return api.DistributionSpec{
		L1: api.L1Target{Count: spec.L1.Count, NoRatio: spec.L1.NoRatio},
		L2: api.L2Target{Count: spec.L2.Count},
		L3: api.L3Target{Count: spec.L3.Count, ValidRatio: spec.L3.ValidRatio, InvalidRatio: spec.L3.InvalidRatio},
	}
}

func validateSpec(spec allocation.DistributionSpec) error {
	if spec.L1.Count < 0 || spec.L2.Count < 0 || spec.L3.Count < 0 {
		return CodedErrorf(http.StatusUnprocessableEntity, "spec counts must be non-negative")
	}
	if spec.TotalCount() == 0 {
		return CodedErrorf(http.StatusUnprocessableEntity, "spec must request at least one case")
	}
	if spec.L1.NoRatio < 0 || spec.L1.NoRatio > 1 {
		return CodedErrorf(http.StatusUnprocessableEntity, "l1 no ratio must be between 0 and 1")
	}
	if spec.L3.ValidRatio < 0 || spec.L3.InvalidRatio < 0 || spec.L3.ValidRatio+spec.L3.InvalidRatio > 1 {
		return CodedErrorf(http.StatusUnprocessableEntity, "l3 ratios must be non-negative and sum to at most 1")
	}
	return nil
}

func (s *BackendService) convertRun(ctx context.Context, run database.GenerationRun) (api.Run, error) {
	var spec allocation.DistributionSpec
	if len(run.Spec) > 0 {
		if err := json.Unmarshal(run.Spec, &spec); err != nil {
			slog.Error("error unmarshalling run spec", "run_id", run.Id, "error", err)
			return api.Run{}, CodedErrorf(http.StatusInternalServerError, "error decoding run spec")
		}
	}

	var total, validated int64
	if err := s.db.WithContext(ctx).Model(&database.Case{}).Where("run_id = ?", run.Id).Count(&total).Error; err != nil {
		slog.Error("error counting cases", "run_id", run.Id, "error", err)
		return api.Run{}, CodedErrorf(http.StatusInternalServerError, "error counting run cases")
	}
	if err := s.db.WithContext(ctx).Model(&database.Case{}).Where("run_id = ? AND validation_status = ?", run.Id, database.CaseValidated).Count(&validated).Error; err != nil {
		slog.Error("error counting validated cases", "run_id", run.Id, "error", err)
		return api.Run{}, CodedErrorf(http.StatusInternalServerError, "error counting run cases")
	}

	out := api.Run{
		Id:             run.Id,
		Name:           run.Name,
		Status:         run.Status,
		Spec:           fromAllocationSpec(spec),
		CreationTime:   run.CreationTime,
		TotalCases:     int(total),
		ValidatedCases: int(validated),
	}
	if run.CompletionTime.Valid {
		t := run.CompletionTime.Time
		out.CompletionTime = &t
	}
	return out, nil
}

func convertCase(record database.Case) api.Case {
	var entities []string
	if len(record.Entities) > 0 {
		if err := json.Unmarshal(record.Entities, &entities); err != nil {
			slog.Error("error unmarshalling case entities", "case_id", record.Id, "error", err)
		}
	}

	out := api.Case{
		Id:               record.Id,
		RunId:            record.RunId,
		PearlLevel:       record.PearlLevel,
		GroundTruth:      record.GroundTruth,
		Difficulty:       record.Difficulty,
		TrapType:         record.TrapType,
		Subdomain:        record.Subdomain,
		Scenario:         record.Scenario,
		Question:         record.Question,
		SeedId:           record.SeedId,
		Entities:         entities,
		Timeframe:        record.Timeframe,
		ValidationStatus: record.ValidationStatus,
		CreationTime:     record.CreationTime,
	}
	if record.FinalScore.Valid {
		score := record.FinalScore.Float64
		out.FinalScore = &score
	}
	return out
}
