package export_test

import (
	"bufio"
	"context"
	"encoding/json"
	"testing"
	"time"

	"causalgen-backend/internal/export"
	"causalgen-backend/internal/storage"
	"causalgen-backend/pkg/api"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportRun(t *testing.T) {
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	runId := uuid.New()
	cases := []api.Case{
		{
			Id:           uuid.New(),
			RunId:        runId,
			PearlLevel:   "L1",
			GroundTruth:  "NO",
			Difficulty:   "Medium",
			TrapType:     "WOLF:REVERSE_CAUSATION",
			Subdomain:    "Equities",
			Scenario:     "Firms with large marketing budgets saw their stock rise.",
			Question:     "Does marketing spend cause the stock to rise?",
			SeedId:       "seed-1",
			Entities:     []string{"Acme Corp"},
			Timeframe:    "Q2 2024",
			CreationTime: time.Now().UTC(),
		},
		{
			Id:           uuid.New(),
			RunId:        runId,
			PearlLevel:   "L3",
			GroundTruth:  "CONDITIONAL",
			Difficulty:   "Hard",
			TrapType:     "CF:FRAGILE_CHAIN",
			Subdomain:    "Commodities",
			Scenario:     "Had the pipeline stayed open, spot prices would have held.",
			Question:     "Would prices have held if the pipeline stayed open?",
			SeedId:       "seed-2",
			Entities:     []string{"Northgate Energy"},
			Timeframe:    "Q4 2023",
			CreationTime: time.Now().UTC(),
		},
	}

	key, err := export.ExportRun(context.Background(), store, runId, cases)
	require.NoError(t, err)
	assert.Equal(t, export.DatasetKey(runId), key)

	reader, err := store.GetObject(context.Background(), key)
	require.NoError(t, err)
	defer reader.Close()

	var got []api.Case
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		var c api.Case
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &c))
		got = append(got, c)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, got, 2)
	assert.Equal(t, cases[0].Id, got[0].Id)
	assert.Equal(t, "CF:FRAGILE_CHAIN", got[1].TrapType)
	assert.Equal(t, []string{"Acme Corp"}, got[0].Entities)
}

func TestExportRunEmpty(t *testing.T) {
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	runId := uuid.New()
	key, err := export.ExportRun(context.Background(), store, runId, nil)
	require.NoError(t, err)

	reader, err := store.GetObject(context.Background(), key)
	require.NoError(t, err)
	defer reader.Close()
}
