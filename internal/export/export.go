package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"causalgen-backend/internal/storage"
	"causalgen-backend/pkg/api"

	"github.com/google/uuid"
)

// DatasetKey is where a run's exported dataset lives within the object store.
func DatasetKey(runId uuid.UUID) string {
	return fmt.Sprintf("runs/%s/cases.jsonl", runId)
}

// WriteJsonl writes one case per line so downstream eval harnesses can
// stream the file without loading it whole.
func WriteJsonl(w io.Writer, cases []api.Case) error {
	enc := json.NewEncoder(w)
	for _, c := range cases {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("error encoding case %v: %w", c.Id, err)
		}
	}
	return nil
}

func ExportRun(ctx context.Context, store storage.ObjectStore, runId uuid.UUID, cases []api.Case) (string, error) {
	var buf bytes.Buffer
	if err := WriteJsonl(&buf, cases); err != nil {
		return "", err
	}

	key := DatasetKey(runId)
	if err := store.PutObject(ctx, key, &buf); err != nil {
		return "", fmt.Errorf("error uploading dataset for run %v: %w", runId, err)
	}

	return key, nil
}
