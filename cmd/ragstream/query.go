package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/search"
	"github.com/urfave/cli/v2"
)

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "top-k",
			Aliases: []string{"k"},
			Usage:   "Number of chunks to retrieve (default: retrieval.top_k)",
		},
		&cli.StringFlag{
			Name:    "document",
			Aliases: []string{"d"},
			Usage:   "Only retrieve chunks of this document ID",
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Answer a question from the indexed documents, streaming the answer",
		ArgsUsage: "<question>",
		Action:    queryAction,
		Flags: append(queryFlags(),
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Generation provider (default: provider.default)",
			},
		),
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Show the chunks retrieved for a question without generating an answer",
		ArgsUsage: "<question>",
		Action:    searchAction,
		Flags: append(queryFlags(),
			&cli.BoolFlag{
				Name:    "trace",
				Aliases: []string{"t"},
				Usage:   "Print each retrieval step",
			},
		),
	}
}

func queryFromArgs(c *cli.Context) (core.Query, error) {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return core.Query{}, fmt.Errorf("a question is required")
	}
	return core.Query{
		Text:       text,
		Provider:   c.String("provider"),
		TopK:       c.Int("top-k"),
		DocumentID: c.String("document"),
	}, nil
}

func queryAction(c *cli.Context) error {
	q, err := queryFromArgs(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	e, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer e.Close()

	seq, err := e.Pipeline().Query(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to query: %w", err)
	}

	out := c.App.Writer
	for fragment, err := range seq {
		if err != nil {
			return err
		}
		if _, err := io.WriteString(out, fragment); err != nil {
			return err
		}
	}
	fmt.Fprintln(out)
	return nil
}

func searchAction(c *cli.Context) error {
	q, err := queryFromArgs(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	e, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer e.Close()

	out := c.App.Writer
	var monitor search.SearchMonitor
	if c.Bool("trace") {
		monitor = &traceMonitor{out: out}
	}

	results, err := e.Pipeline().RetrieveWithMonitor(ctx, q, monitor)
	if err != nil {
		return fmt.Errorf("failed to search: %w", err)
	}

	fmt.Fprintf(out, "Found %d hits\n", len(results))
	for i, hit := range results {
		p := hit.Point
		fmt.Fprintf(out, "%d: [%0.3f] %s #%d (%d)\n", i, hit.Score, p.Payload.DocumentID, p.Payload.SequenceIndex, p.ID)
		fmt.Fprintf(out, "   %s\n", preview(p.Payload.ChunkText, 160))
	}
	return nil
}

// traceMonitor prints every retrieval step.
type traceMonitor struct {
	out io.Writer
}

func (m *traceMonitor) Start(query string) {
	fmt.Fprintf(m.out, "query: %q\n", query)
}

func (m *traceMonitor) AfterEmbedding(v core.Vector) {
	fmt.Fprintf(m.out, "embedded query (%d dimensions)\n", len(v))
}

func (m *traceMonitor) AfterIndexSearch(results []*core.SearchResult) {
	fmt.Fprintf(m.out, "index returned %d candidates\n", len(results))
}

func (m *traceMonitor) Hit(result *core.SearchResult, verbatim bool) {
	mark := ""
	if verbatim {
		mark = " (all query terms present)"
	}
	fmt.Fprintf(m.out, "  hit %d [%0.3f]%s\n", result.Point.ID, result.Score, mark)
}

func (m *traceMonitor) Finish(results []*core.SearchResult) {
	fmt.Fprintf(m.out, "kept %d results\n\n", len(results))
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
