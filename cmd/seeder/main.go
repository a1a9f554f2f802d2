package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/ragstream"
	"github.com/poiesic/ragstream/config"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/pipeline"
)

// facts is the built-in corpus. Each group of lines becomes one document.
var facts = []string{
	"Paris is the capital of France and sits on the Seine.",
	"The Eiffel Tower was finished in 1889 for the World's Fair.",
	"The Louvre is the most visited art museum in the world.",
	"Rome is the capital of Italy and was founded, by legend, in 753 BC.",
	"The Colosseum could hold around fifty thousand spectators.",
	"Vatican City is an independent state enclosed by Rome.",
	"Berlin is the capital of Germany and its largest city.",
	"The Berlin Wall fell on 9 November 1989.",
	"The Brandenburg Gate was built in the eighteenth century.",
	"Madrid is the capital of Spain and lies near the centre of the peninsula.",
	"The Prado holds one of the finest collections of European art.",
	"Madrid's Retiro Park was once a royal garden.",
	"Lisbon is the capital of Portugal and faces the Atlantic.",
	"An earthquake destroyed much of Lisbon in 1755.",
	"Trams have climbed Lisbon's hills since the nineteenth century.",
	"Vienna is the capital of Austria and sits on the Danube.",
	"Vienna was home to Mozart, Beethoven and Schubert.",
	"The Vienna State Opera opened in 1869.",
	"Prague is the capital of the Czech Republic.",
	"Prague's astronomical clock was installed in 1410.",
	"The Charles Bridge crosses the Vltava in Prague.",
	"Amsterdam is the capital of the Netherlands and is built on canals.",
	"The Rijksmuseum houses Rembrandt's Night Watch.",
	"Amsterdam has more bicycles than residents.",
}

var (
	seedFileName = flag.String("src", "", "file of seed data, one sentence per line")
	configFile   = flag.String("config", "", "config file (default: ragstream.{yaml,yml,toml} in the working directory)")
	linesPerDoc  = flag.Int("lines", 3, "lines per seeded document")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over the non-blank lines of a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}, nil
}

// ingestGrouped joins every n lines of source into one document and ingests it.
func ingestGrouped(ctx context.Context, p *pipeline.Pipeline, source iter.Seq[string], n int) (int, error) {
	group := make([]string, 0, n)
	docs := 0
	flush := func() error {
		id := fmt.Sprintf("seed-%03d", docs)
		res, err := p.IngestText(ctx, id, strings.Join(group, "\n"), core.FileTypeText)
		if err != nil {
			return err
		}
		slog.Info("seeded document", "document_id", id, "chunks", res.ChunkCount)
		docs++
		group = group[:0]
		return nil
	}

	for line := range source {
		group = append(group, line)
		if len(group) == n {
			if err := flush(); err != nil {
				return docs, err
			}
		}
	}

	// Process any remaining lines
	if len(group) > 0 {
		if err := flush(); err != nil {
			return docs, err
		}
	}

	return docs, nil
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

	// Determine source of seed data
	var source iter.Seq[string] = func(yield func(string) bool) {
		for _, line := range facts {
			if !yield(line) {
				return
			}
		}
	}
	if *seedFileName != "" {
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	}

	docs, err := ingestGrouped(ctx, e.Pipeline(), source, max(*linesPerDoc, 1))
	if err != nil {
		panic(err)
	}
	fmt.Printf("Seeded %d documents\n", docs)
}
