package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunQueued    string = "QUEUED"
	RunRunning   string = "RUNNING"
	RunCompleted string = "COMPLETED"
	RunFailed    string = "FAILED"
)

// UnderFilled marks runs whose seed pool ran out before every bucket quota
// was met. The run still completed; the realized counts are short.
const RunUnderFilled string = "UNDER_FILLED"

type GenerationRun struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null"`

	Status string `gorm:"size:20;not null"`

	// Spec is the DistributionSpec snapshot the run was created with.
	Spec datatypes.JSON

	SeedSource string `gorm:"size:20"`

	CreationTime   time.Time
	CompletionTime sql.NullTime

	Cases []Case `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`

	Errors []RunError `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

const (
	CasePending   string = "PENDING"
	CaseValidated string = "VALIDATED"
	CaseRejected  string = "REJECTED"
)

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
	ScoreNotes       sql.NullString
	ValidationStatus string `gorm:"size:20;not null;default:PENDING"`

	CreationTime time.Time
}

type RunError struct {
	RunId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Error     string
	Timestamp time.Time
}
