package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	backend "causalgen-backend/internal/api"
	"causalgen-backend/internal/database"
	"causalgen-backend/internal/messaging"
	"causalgen-backend/internal/storage"
	"causalgen-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func createRouter(t *testing.T, db *gorm.DB, queue *messaging.InMemoryQueue) chi.Router {
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	service := backend.NewBackendService(db, queue, store)
	router := chi.NewRouter()
	service.AddRoutes(router)
	return router
}

func specJson(t *testing.T) datatypes.JSON {
	spec, err := json.Marshal(map[string]any{
		"l1": map[string]any{"count": 10, "noRatio": 0.4},
		"l2": map[string]any{"count": 5},
		"l3": map[string]any{"count": 10, "validRatio": 0.4, "invalidRatio": 0.3},
	})
	require.NoError(t, err)
	return datatypes.JSON(spec)
}

func storedCase(runId uuid.UUID, level, label, difficulty, trap, subdomain string) *database.Case {
	return &database.Case{
		Id:               uuid.New(),
		RunId:            runId,
		PearlLevel:       level,
		GroundTruth:      label,
		Difficulty:       difficulty,
		TrapType:         trap,
		Subdomain:        subdomain,
		Scenario:         "scenario text",
		Question:         "question text?",
		SeedId:           "seed-1",
		Entities:         datatypes.JSON(`["Acme Capital"]`),
		Timeframe:        "Q1 2024",
		ValidationStatus: database.CasePending,
		CreationTime:     time.Now().UTC(),
	}
}

func TestCreateRun(t *testing.T) {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue()
	router := createRouter(t, db, queue)

	payload := api.CreateRunRequest{
		Name: "test-run",
		Spec: api.DistributionSpec{
			L1: api.L1Target{Count: 10, NoRatio: 0.4},
			L2: api.L2Target{Count: 5},
			L3: api.L3Target{Count: 10, ValidRatio: 0.4, InvalidRatio: 0.3},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "recieved response: "+rec.Body.String())
	var response api.CreateRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEqual(t, uuid.Nil, response.RunId)

	var run database.GenerationRun
	require.NoError(t, db.First(&run, "id = ?", response.RunId).Error)
	assert.Equal(t, "test-run", run.Name)
	assert.Equal(t, database.RunQueued, run.Status)
	assert.Equal(t, api.SeedSourceLLM, run.SeedSource)

	task := <-queue.Tasks()
	assert.Equal(t, messaging.GenerateRunQueue, task.Type())
	var taskPayload messaging.GenerateRunPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &taskPayload))
	assert.Equal(t, response.RunId, taskPayload.RunId)
}

func TestCreateRunRejectsBadRequests(t *testing.T) {
	db := createDB(t)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	tests := []struct {
		name    string
		payload api.CreateRunRequest
		code    int
	}{
		{
			name:    "empty spec",
			payload: api.CreateRunRequest{Name: "run"},
			code:    http.StatusUnprocessableEntity,
		},
		{
			name: "bad name",
			payload: api.CreateRunRequest{
				Name: "bad name!",
				Spec: api.DistributionSpec{L1: api.L1Target{Count: 5, NoRatio: 0.5}},
			},
			code: http.StatusBadRequest,
		},
		{
			name: "ratio out of range",
			payload: api.CreateRunRequest{
				Name: "run",
				Spec: api.DistributionSpec{L1: api.L1Target{Count: 5, NoRatio: 1.5}},
			},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "l3 ratios exceed one",
			payload: api.CreateRunRequest{
				Name: "run",
				Spec: api.DistributionSpec{L3: api.L3Target{Count: 5, ValidRatio: 0.7, InvalidRatio: 0.7}},
			},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "bad seed source",
			payload: api.CreateRunRequest{
				Name:       "run",
				Spec:       api.DistributionSpec{L1: api.L1Target{Count: 5, NoRatio: 0.5}},
				SeedSource: "carrier-pigeon",
			},
			code: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(tt.payload)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestListRuns(t *testing.T) {
	runId := uuid.New()
	db := createDB(t,
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
		&database.GenerationRun{Id: uuid.New(), Name: "run2", Status: database.RunQueued, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
		storedCase(runId, "L1", "NO", "Easy", "WOLF:CONFOUNDER", "Equities"),
		storedCase(runId, "L1", "YES", "Medium", "SHEEP:MECHANISM", "Banking"),
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response []api.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response, 2)

	byName := map[string]api.Run{response[0].Name: response[0], response[1].Name: response[1]}
	assert.Equal(t, 2, byName["run1"].TotalCases)
	assert.Equal(t, 0, byName["run1"].ValidatedCases)
	assert.Equal(t, 0, byName["run2"].TotalCases)
	assert.Equal(t, 10, byName["run1"].Spec.L1.Count)
}

func TestGetRunNotFound(t *testing.T) {
	db := createDB(t)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/runs/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRunCasesWithFilter(t *testing.T) {
	runId := uuid.New()
	db := createDB(t,
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
		storedCase(runId, "L1", "NO", "Easy", "WOLF:CONFOUNDER", "Equities"),
		storedCase(runId, "L1", "YES", "Medium", "SHEEP:MECHANISM", "Banking"),
		storedCase(runId, "L3", "VALID", "Hard", "CF:NECESSITY", "Crypto"),
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	query := url.QueryEscape(`level = "L1" AND NOT trap CONTAINS "SHEEP"`)
	req := httptest.NewRequest(http.MethodGet, "/runs/"+runId.String()+"/cases?Query="+query, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "recieved response: "+rec.Body.String())
	var response api.ListCasesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
	require.Len(t, response.Cases, 1)
	assert.Equal(t, "WOLF:CONFOUNDER", response.Cases[0].TrapType)
	assert.Equal(t, []string{"Acme Capital"}, response.Cases[0].Entities)
}

func TestListRunCasesPagination(t *testing.T) {
	runId := uuid.New()
	creates := []any{
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
	}
	for i := 0; i < 5; i++ {
		creates = append(creates, storedCase(runId, "L2", "NO", "Medium", "IVN:SPILLOVER", "Trade"))
	}
	db := createDB(t, creates...)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/runs/"+runId.String()+"/cases?Limit=2&Offset=4", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response api.ListCasesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 5, response.Total)
	assert.Len(t, response.Cases, 1)
}

func TestListRunCasesInvalidQuery(t *testing.T) {
	runId := uuid.New()
	db := createDB(t,
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/runs/"+runId.String()+"/cases?Query="+url.QueryEscape(`level CONTAINS`), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestScoreCase(t *testing.T) {
	runId := uuid.New()
	passing := storedCase(runId, "L1", "NO", "Easy", "WOLF:CONFOUNDER", "Equities")
	failing := storedCase(runId, "L1", "YES", "Medium", "SHEEP:MECHANISM", "Banking")
	db := createDB(t,
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
		passing, failing,
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	scoreCase := func(id uuid.UUID, score float64) api.Case {
		body, err := json.Marshal(api.ScoreCaseRequest{Score: score, Notes: "reviewed"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/cases/"+id.String()+"/score", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "recieved response: "+rec.Body.String())
		var response api.Case
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		return response
	}

	validated := scoreCase(passing.Id, 8.5)
	assert.Equal(t, database.CaseValidated, validated.ValidationStatus)
	require.NotNil(t, validated.FinalScore)
	assert.Equal(t, 8.5, *validated.FinalScore)

	rejected := scoreCase(failing.Id, 7.9)
	assert.Equal(t, database.CaseRejected, rejected.ValidationStatus)

	var stored database.Case
	require.NoError(t, db.First(&stored, "id = ?", failing.Id).Error)
	assert.Equal(t, sql.NullString{String: "reviewed", Valid: true}, stored.ScoreNotes)
}

func TestScoreCaseOutOfRange(t *testing.T) {
	runId := uuid.New()
	c := storedCase(runId, "L1", "NO", "Easy", "WOLF:CONFOUNDER", "Equities")
	db := createDB(t,
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
		c,
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	body, err := json.Marshal(api.ScoreCaseRequest{Score: 11})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/cases/"+c.Id.String()+"/score", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetRunStats(t *testing.T) {
	runId := uuid.New()
	db := createDB(t,
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
		storedCase(runId, "L1", "NO", "Easy", "WOLF:CONFOUNDER", "Equities"),
		storedCase(runId, "L1", "YES", "Medium", "SHEEP:MECHANISM", "Banking"),
		storedCase(runId, "L2", "NO", "Hard", "IVN:SPILLOVER", "Trade"),
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/runs/"+runId.String()+"/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response api.RunStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 3, response.Total)
	assert.Equal(t, map[string]int{"L1": 2, "L2": 1}, response.PerLevel)
	assert.Equal(t, map[string]int{"WOLF": 1, "SHEEP": 1, "IVN": 1}, response.TrapPrefixes)
}

func TestGetRunDiversity(t *testing.T) {
	runId := uuid.New()
	db := createDB(t,
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
		storedCase(runId, "L1", "NO", "Easy", "WOLF:CONFOUNDER", "Equities"),
		storedCase(runId, "L1", "YES", "Medium", "SHEEP:MECHANISM", "Equities"),
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/runs/"+runId.String()+"/diversity", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response api.DiversitySnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 2, response.SubdomainCounts["Equities"])
	assert.Len(t, response.LeastUsed, 4)
	assert.NotContains(t, response.LeastUsed, "Equities")
}

func TestExportRun(t *testing.T) {
	runId := uuid.New()
	db := createDB(t,
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
		storedCase(runId, "L1", "NO", "Easy", "WOLF:CONFOUNDER", "Equities"),
		storedCase(runId, "L3", "VALID", "Hard", "CF:FRAGILE_CHAIN", "Commodities"),
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodPost, "/runs/"+runId.String()+"/export", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "recieved response: "+rec.Body.String())
	var response api.ExportRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Cases)
	assert.Equal(t, "runs/"+runId.String()+"/cases.jsonl", response.Key)
}

func TestExportRunNoCases(t *testing.T) {
	runId := uuid.New()
	db := createDB(t,
		&database.GenerationRun{Id: runId, Name: "run1", Status: database.RunCompleted, Spec: specJson(t), SeedSource: "llm", CreationTime: time.Now().UTC()},
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodPost, "/runs/"+runId.String()+"/export", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
