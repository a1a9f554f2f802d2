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
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/ragstream"
	"github.com/poiesic/ragstream/config"
	"github.com/poiesic/ragstream/core"
)

var (
	configFile = flag.String("config", "", "config file (default: ragstream.{yaml,yml,toml} in the working directory)")
	topK       = flag.Int("k", 5, "number of hits")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

func main() {
	path := *configFile
	if path == "" {
		path = config.Find(".")
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	e, err := ragstream.NewEngine(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer e.Close()

	query := "capital city"
	if flag.NArg() > 0 {
		query = strings.Join(flag.Args(), " ")
	}

	var results []*core.SearchResult
	results, err = e.Pipeline().Searcher().FindSimilarWithMonitor(ctx, query, *topK, nil, &logMonitor{})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		p := hit.Point
		fmt.Printf("%d: '%s' (%s #%d)[%0.3f]\n", i, p.Payload.ChunkText, p.Payload.DocumentID, p.Payload.SequenceIndex, hit.Score)
	}
}

// logMonitor traces each retrieval step through slog.
type logMonitor struct {
	start time.Time
}

func (m *logMonitor) Start(query string) {
	m.start = time.Now()
	slog.Info("search started", "query", query)
}

func (m *logMonitor) AfterEmbedding(v core.Vector) {
	slog.Info("query embedded", "dimension", len(v), "elapsed", time.Since(m.start))
}

func (m *logMonitor) AfterIndexSearch(results []*core.SearchResult) {
	slog.Info("index searched", "candidates", len(results), "elapsed", time.Since(m.start))
}

func (m *logMonitor) Hit(result *core.SearchResult, verbatim bool) {
	slog.Debug("hit", "point", result.Point.ID, "score", result.Score, "verbatim", verbatim)
}

func (m *logMonitor) Finish(results []*core.SearchResult) {
	slog.Info("search finished", "results", len(results), "elapsed", time.Since(m.start))
}
