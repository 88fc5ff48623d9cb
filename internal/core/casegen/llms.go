package casegen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
)

// DefaultGenerateTimeout bounds a single completion call. Case generation
// retries nothing; a hung call should fail fast and surface in the run.
const DefaultGenerateTimeout = 50 * time.Second

// LLM is the single model boundary of the pipeline. The context carries run
// cancellation; implementations add their own per-call deadline.
type LLM interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type OpenAI struct {
	client  openai.Client
	model   string
	temp    float64
	timeout time.Duration
}

func NewOpenAI(model string, temp float64, timeout time.Duration) *OpenAI {
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	return &OpenAI{
		client:  openai.NewClient(),
		model:   model,
		temp:    temp,
		timeout: timeout,
	}
}

func (o *OpenAI) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)

	if len(systemPrompt) > 0 {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	chatOpts := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       o.model,
		Temperature: openai.Float(o.temp),
	}

	res, err := o.client.Chat.Completions.New(ctx, chatOpts)
	if err != nil {
		slog.Error("openai error: chat completions failed", "error", err)
		return "", fmt.Errorf("openai generation failed: %w", err)
	}

	return res.Choices[0].Message.Content, nil
}
