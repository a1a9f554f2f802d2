package ollama

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragstream/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Generator implements ai.Generator on a local Ollama server.
type Generator struct {
	llm         *ollama.LLM
	model       string
	temperature float64
	logger      *slog.Logger
}

// NewGenerator creates a streaming generator for config.GenerationModel on config.GenerationHost.
func NewGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	llm, err := ollama.New(
		ollama.WithModel(config.GenerationModel),
		ollama.WithServerURL(config.GenerationHost),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		llm:         llm,
		model:       config.GenerationModel,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "ollama-generator"),
	}, nil
}

// Generate streams the model's answer to prompt, one fragment per response chunk.
func (g *Generator) Generate(ctx context.Context, prompt string, emit func(string) error) error {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	opts := []llms.CallOption{
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return emit(string(chunk))
		}),
	}
	if g.temperature > 0 {
		opts = append(opts, llms.WithTemperature(g.temperature))
	}

	g.logger.Debug("starting generation", "model", g.model, "prompt_length", len(prompt))
	if _, err := g.llm.GenerateContent(ctx, messages, opts...); err != nil {
		g.logger.Debug("generation ended with error", "err", err)
		return err
	}
	return nil
}
