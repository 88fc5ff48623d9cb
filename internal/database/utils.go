package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateRunStatus(ctx context.Context, txn *gorm.DB, runId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == RunCompleted || status == RunFailed || status == RunUnderFilled {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&GenerationRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating run status", "run_id", runId, "status", status, "error", err)
		return err
	}
	return nil
}

func SaveRunError(ctx context.Context, txn *gorm.DB, runId uuid.UUID, errorMessage string) {
	runError := RunError{
		RunId:     runId,
		ErrorId:   uuid.New(),
		Error:     errorMessage,
		Timestamp: time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Create(&runError).Error; err != nil {
		slog.Error("error saving run error", "run_id", runId, "error", err)
	}
}

// CountCasesByLevel returns the number of cases already stored for a run,
// keyed by Pearl level. Used to rebuild need counters when a run resumes.
func CountCasesByLevel(ctx context.Context, db *gorm.DB, runId uuid.UUID) (map[string]int, error) {
	var rows []struct {
		PearlLevel string
		N          int
	}
	if err := db.WithContext(ctx).Model(&Case{}).
		Select("pearl_level, count(*) as n").
		Where("run_id = ?", runId).
		Group("pearl_level").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.PearlLevel] = r.N
	}
	return counts, nil
}
