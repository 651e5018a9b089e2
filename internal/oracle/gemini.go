package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Compile-time interface check
var _ Oracle = (*Gemini)(nil)

// ModelsService defines the interface for making Gemini generation calls.
// This abstraction enables testing without calling the real Gemini API.
type ModelsService interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements the Oracle using Google's Gemini API in JSON mode.
type Gemini struct {
	models      ModelsService
	model       string
	temperature float32
}

// NewGemini creates a new Gemini oracle.
func NewGemini(ctx context.Context, apiKey, model string, temperature float32) (*Gemini, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiWithService(client.Models, model, temperature), nil
}

func newGeminiWithService(models ModelsService, model string, temperature float32) *Gemini {
	return &Gemini{models: models, model: model, temperature: temperature}
}

// Complete asks the model for JSON matching req.Schema.
func (g *Gemini) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema.toGenai(),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("gemini generation failed: %w", ErrEmptyResponse)
	}

	out, err := decodeOutput(resp.Text())
	if err != nil {
		if errors.Is(err, ErrEmptyResponse) && len(resp.Candidates) > 0 {
			return nil, fmt.Errorf("gemini generation failed (finish reason %q): %w", resp.Candidates[0].FinishReason, err)
		}
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	return out, nil
}

// ModelName returns the generation model name
func (g *Gemini) ModelName() string {
	return g.model
}
