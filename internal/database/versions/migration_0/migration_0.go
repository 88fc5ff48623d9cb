// Package migration_0 pins the schema as it was at migration "0". Later
// changes to the live structs in internal/database must not alter what this
// migration creates.
package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GenerationRun struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null"`

	Status string `gorm:"size:20;not null"`

	Spec datatypes.JSON

	SeedSource string `gorm:"size:20"`

	CreationTime   time.Time
	CompletionTime sql.NullTime

	Cases []Case `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`

	Errors []RunError `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type Case struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId uuid.UUID `gorm:"type:uuid;index"`

	PearlLevel  string `gorm:"size:4;not null"`
	GroundTruth string `gorm:"size:20;not null"`
	Difficulty  string `gorm:"size:10;not null"`
	TrapType    string `gorm:"size:40;not null"`
	Subdomain   string

	Scenario string
	Question string

	SeedId    string
	Entities  datatypes.JSON
	Timeframe string

	FinalScore       sql.NullFloat64
	ValidationStatus string `gorm:"size:20;not null;default:PENDING"`

	CreationTime time.Time
}

type RunError struct {
	RunId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Error     string
	Timestamp time.Time
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&GenerationRun{}, &Case{}, &RunError{}); err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}
