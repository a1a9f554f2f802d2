// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/poiesic/ragstream"
	"github.com/poiesic/ragstream/config"
	"github.com/urfave/cli/v2"
)

// engineOptions are applied to every engine the commands open.
var engineOptions []ragstream.EngineOption

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragstream",
		Usage: "Ingest documents and answer questions about them with streamed, retrieval-augmented generation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML config file (default: ragstream.{yaml,yml,toml} in the working directory)",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load environment variables from these files before reading configuration",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Override the index backend (badger, bolt, qdrant, memory)",
			},
			&cli.StringFlag{
				Name:  "index-path",
				Usage: "Override the index data path",
			},
			&cli.StringFlag{
				Name:  "collection",
				Usage: "Override the collection name",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			ingestCommand(),
			queryCommand(),
			searchCommand(),
			deleteCommand(),
			collectionsCommand(),
			statsCommand(),
			reembedCommand(),
			serveCommand(),
			chatCommand(),
			watchCommand(),
		},
	}
}

func setup(c *cli.Context) error {
	if err := setupLogger(c); err != nil {
		return err
	}
	return config.LoadEnv(c.StringSlice("env-file")...)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig reads the configuration file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		path = config.Find(".")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if v := c.String("backend"); v != "" {
		cfg.Index.Backend = v
	}
	if v := c.String("index-path"); v != "" {
		cfg.Index.Path = v
	}
	if v := c.String("collection"); v != "" {
		cfg.Index.Collection = v
	}
	return cfg, nil
}

func openEngine(ctx context.Context, c *cli.Context, opts ...ragstream.EngineOption) (*ragstream.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	e, err := ragstream.NewEngine(ctx, cfg, slices.Concat(engineOptions, opts)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return e, nil
}
