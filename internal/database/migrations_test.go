package database_test

import (
	"testing"

	"causalgen-backend/internal/database"
	"causalgen-backend/internal/database/versions/migration_0"
	"causalgen-backend/internal/database/versions/migration_1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestMigrationUpgradePath(t *testing.T) {
	db := openDB(t)

	// Migration "0" creates the schema as it was before score notes existed,
	// so the "1" upgrade must apply on top of it without conflict.
	require.NoError(t, migration_0.Migration(db))
	assert.False(t, db.Migrator().HasColumn(&database.Case{}, "ScoreNotes"))

	require.NoError(t, migration_1.Migration(db))
	assert.True(t, db.Migrator().HasColumn(&database.Case{}, "ScoreNotes"))

	require.NoError(t, migration_1.Rollback(db))
	assert.False(t, db.Migrator().HasColumn(&database.Case{}, "ScoreNotes"))
}

func TestMigratorCleanInit(t *testing.T) {
	db := openDB(t)

	require.NoError(t, database.GetMigrator(db).Migrate())
	assert.True(t, db.Migrator().HasTable(&database.GenerationRun{}))
	assert.True(t, db.Migrator().HasTable(&database.RunError{}))
	assert.True(t, db.Migrator().HasColumn(&database.Case{}, "ScoreNotes"))

	// A second run is a no-op.
	require.NoError(t, database.GetMigrator(db).Migrate())
}
