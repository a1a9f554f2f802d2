package openai

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/poiesic/ragstream/ai"
)

// Generator implements ai.Generator with streaming chat completions against
// any OpenAI-compatible endpoint.
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
	logger      *slog.Logger
}

func newGenerator(config *ai.Config) *Generator {
	opts := []option.RequestOption{option.WithMaxRetries(2)}
	if config.OpenAIAPIKey != "" {
		opts = append(opts, option.WithAPIKey(config.OpenAIAPIKey))
	} else {
		opts = append(opts, option.WithAPIKey("none"))
	}
	if config.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.OpenAIBaseURL))
	}

	return &Generator{
		client:      openai.NewClient(opts...),
		model:       config.OpenAIModel,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-generator"),
	}
}

// NewGenerator creates a chat completions generator from the openai settings of config.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newGenerator(config), nil
}

// Generate streams the completion for prompt. The response body is closed on every return path.
func (g *Generator) Generate(ctx context.Context, prompt string, emit func(string) error) error {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(g.temperature)
	}

	g.logger.Debug("starting completion stream", "model", g.model, "prompt_length", len(prompt))
	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if err := emit(content); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		g.logger.Error("completion stream failed", "err", err)
		return err
	}
	return nil
}
