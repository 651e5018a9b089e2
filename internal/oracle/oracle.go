// Package oracle wraps the language-model services that produce structured
// decisions. Each backend takes a rendered prompt and a provider-neutral
// output schema and returns the model's raw JSON.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/orbit/internal/config"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("oracle returned an empty response")

	// ErrInvalidOutput is returned when the model's text is not JSON.
	ErrInvalidOutput = errors.New("oracle returned invalid JSON")
)

// Request is one structured completion call.
type Request struct {
	SystemInstruction string
	Prompt            string
	Schema            *Schema
}

// Oracle defines the interface contract for decision services.
type Oracle interface {
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
	ModelName() string
}

// New creates the Oracle selected by cfg.Provider.
func New(ctx context.Context, cfg config.OracleConfig) (Oracle, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}

// decodeOutput trims and validates model text as JSON. Models occasionally
// wrap JSON output in a markdown fence even in JSON mode.
func decodeOutput(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return nil, ErrEmptyResponse
	}
	if !json.Valid([]byte(text)) {
		return nil, ErrInvalidOutput
	}
	return json.RawMessage(text), nil
}
