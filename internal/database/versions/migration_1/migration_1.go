package migration_1

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

type Case struct {
	ScoreNotes sql.NullString
}

// Migration adds reviewer notes alongside the numeric rubric score.
func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Case{}, "ScoreNotes"); err != nil {
		return fmt.Errorf("error adding ScoreNotes column: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&Case{}, "ScoreNotes"); err != nil {
		return fmt.Errorf("error dropping ScoreNotes column: %w", err)
	}
	return nil
}
