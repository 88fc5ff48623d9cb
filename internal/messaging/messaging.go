package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	GenerateRunQueue = "generate_run_queue"
	RetryDelay       = 5 * time.Second
	MaxConnectRetry  = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// GenerateRunPayload enqueues one generation run. The worker loads the
// run's distribution spec from the database, so the payload stays small and
// re-deliverable.
type GenerateRunPayload struct {
	RunId uuid.UUID
}

type Publisher interface {
	PublishGenerateRunTask(ctx context.Context, payload GenerateRunPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
