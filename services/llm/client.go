package llm

import (
	"context"
	"errors"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// ErrEmptyCompletion is returned when a backend answers without any text.
var ErrEmptyCompletion = errors.New("llm returned an empty completion")

// Backend names accepted by NewFromEnv.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
	BackendNone   = "none"
)

// NewFromEnv builds the client selected by backend, configured from the
// environment. BackendNone (or "") returns a nil client and no error.
func NewFromEnv(backend string) (LLMClient, error) {
	switch backend {
	case BackendOpenAI:
		c, err := NewOpenAIClient(OpenAIConfigFromEnv())
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendOllama:
		c, err := NewOllamaClient(OllamaConfigFromEnv())
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendNone, "":
		return nil, nil
	default:
		return nil, errors.New("unknown LLM backend: " + backend)
	}
}

func Float32(v float32) *float32 { return &v }

func Int(v int) *int { return &v }
