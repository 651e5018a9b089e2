package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Compile-time interface check
var _ Oracle = (*OpenAI)(nil)

// ChatCompletionsService defines the interface for making chat completion calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatCompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements the Oracle using OpenAI chat completions with a
// json_schema response format.
type OpenAI struct {
	completions ChatCompletionsService
	model       openai.ChatModel
	temperature float32
}

// NewOpenAI creates a new OpenAI oracle
func NewOpenAI(apiKey, model string, temperature float32) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		completions: client.Chat.Completions,
		model:       openai.ChatModel(model),
		temperature: temperature,
	}
}

// Complete asks the model for JSON matching req.Schema.
func (o *OpenAI) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(o.model),
		Temperature: openai.F(float64(o.temperature)),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type: openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   openai.F("decision"),
					Schema: openai.F[interface{}](req.Schema.JSONSchema()),
				}),
			},
		)
	}

	resp, err := o.completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion failed: %w", ErrEmptyResponse)
	}

	out, err := decodeOutput(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	return out, nil
}

// ModelName returns the chat model name
func (o *OpenAI) ModelName() string {
	return string(o.model)
}
