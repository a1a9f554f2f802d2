package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/ai/openai"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/reembed"
	"github.com/poiesic/ragstream/storage/backends"
	"github.com/urfave/cli/v2"
)

// newEmbedder builds the embedder for the target collection.
var newEmbedder = openai.NewEmbedder

func reembedCommand() *cli.Command {
	return &cli.Command{
		Name:   "reembed",
		Usage:  "Copy the collection into a new collection re-embedded with another model",
		Action: reembedAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "target-collection",
				Usage:    "Name of the collection to create or fill",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "target-backend",
				Usage: "Backend of the target index (default: same as the source)",
			},
			&cli.StringFlag{
				Name:  "target-path",
				Usage: "Data path of the target index (default: same as the source)",
			},
			&cli.StringFlag{
				Name:  "target-url",
				Usage: "Qdrant URL of the target index (default: same as the source)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
				Value: "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:     "embedding-model",
				Usage:    "Embedding model name",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "dimension",
				Usage:    "Vector length produced by the new model",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of points to process in each batch",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N points",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum retry attempts for failed operations",
				Value: 3,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
				Value: 1 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "normalize",
				Usage: "Scale new vectors to unit length",
				Value: true,
			},
		},
	}
}

func reembedAction(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Normalize:      c.Bool("normalize"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	e, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer e.Close()

	source, err := e.Index().Config()
	if err != nil {
		return err
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithDimension(c.Int("dimension")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}
	embedder, err := newEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	targetConfig, err := e.Config().BackendConfig()
	if err != nil {
		return err
	}
	if v := c.String("target-backend"); v != "" {
		targetConfig.Backend = v
	}
	if v := c.String("target-path"); v != "" {
		targetConfig.Path = v
	}
	if v := c.String("target-url"); v != "" {
		targetConfig.URL = v
	}
	targetConfig.Collection = core.CollectionConfig{
		Name:      c.String("target-collection"),
		Dimension: c.Int("dimension"),
		Distance:  source.Distance,
	}
	if targetConfig.Collection.Name == source.Name && targetConfig.Collection.Dimension != source.Dimension {
		return fmt.Errorf("%w: target collection %q already holds %d-dimension vectors",
			core.ErrConfigConflict, source.Name, source.Dimension)
	}

	// An embedded store cannot be opened twice, so a target on the source's
	// path is only possible as an in-place rewrite of the same collection.
	target := e.Index()
	if !sameIndex(e.Config().Index.Backend, e.Config().Index.Path, targetConfig) {
		if target, err = backends.Open(ctx, targetConfig); err != nil {
			return fmt.Errorf("failed to open target index: %w", err)
		}
		defer target.Close()
	} else if targetConfig.Collection.Name != source.Name {
		return fmt.Errorf("a new collection on the %s backend needs its own --target-path", normalizeBackend(targetConfig.Backend))
	}

	reembedder, err := e.NewReembedder(target, embedder, reembedConfig, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Source collection: %s (%d dimensions)\n", source.Name, source.Dimension)
	fmt.Fprintf(os.Stderr, "Target collection: %s (%d dimensions)\n", targetConfig.Collection.Name, targetConfig.Collection.Dimension)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	n, err := reembedder.Run(ctx)
	if err != nil {
		return fmt.Errorf("reembedding failed after %d points: %w", n, err)
	}
	return nil
}

// sameIndex reports whether target refers to the embedded store already
// opened for the source.
func sameIndex(backend, path string, target backends.Config) bool {
	switch target.Backend {
	case backends.Qdrant, backends.Memory:
		return false
	}
	return normalizeBackend(backend) == normalizeBackend(target.Backend) && path == target.Path
}

func normalizeBackend(b string) string {
	if b == "" {
		return backends.Badger
	}
	return b
}
