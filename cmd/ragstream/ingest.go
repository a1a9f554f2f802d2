package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/pipeline"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
)

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Extract, chunk, embed and index files",
		ArgsUsage: "<file|dir|glob>...",
		Action:    ingestAction,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Doublestar patterns selecting files inside directories",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Doublestar patterns excluding files inside directories",
			},
			&cli.StringFlag{
				Name:  "document-id",
				Usage: "Document ID to use (single file only; default: generated)",
			},
			&cli.BoolFlag{
				Name:  "path-ids",
				Usage: "Use each file's relative path as its document ID, replacing earlier ingests of the same path",
			},
			&cli.StringFlag{
				Name:  "file-type",
				Usage: "Force the file type (text, markdown, pdf, csv, excel)",
			},
		},
	}
}

func ingestAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file, directory or pattern is required")
	}
	files, err := collectFiles(c.Args().Slice(), newFileFilter(c.StringSlice("include"), c.StringSlice("exclude")))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to ingest")
	}
	if c.String("document-id") != "" && len(files) > 1 {
		return fmt.Errorf("--document-id needs exactly one file, got %d", len(files))
	}

	ctx := c.Context
	e, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer e.Close()

	var fileType core.FileType
	if v := c.String("file-type"); v != "" {
		fileType = core.ParseFileType(v)
	}

	ing := &fileIngester{
		pipeline: e.Pipeline(),
		pathIDs:  c.Bool("path-ids"),
	}

	var bar *progressbar.ProgressBar
	if len(files) > 1 {
		bar = newProgressBar(len(files), "Ingesting")
	}

	out := c.App.Writer
	start := time.Now()
	var (
		chunks int
		failed []error
	)
	for _, f := range files {
		res, err := ing.ingest(ctx, f, c.String("document-id"), fileType)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed = append(failed, fmt.Errorf("%s: %w", f.Path, err))
		} else {
			chunks += res.ChunkCount
			if bar == nil {
				fmt.Fprintf(out, "Ingested %s as %s (%d chunks)\n", f.Path, res.Document.ID, res.ChunkCount)
			}
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		fmt.Fprintf(out, "\nIngestion complete:\n")
		fmt.Fprintf(out, "  Files ingested: %d\n", len(files)-len(failed))
		fmt.Fprintf(out, "  Chunks indexed: %d\n", chunks)
		fmt.Fprintf(out, "  Elapsed:        %s\n", time.Since(start).Round(time.Millisecond))
	}
	if len(failed) > 0 {
		fmt.Fprintf(out, "\nErrors:\n")
		for _, err := range failed {
			fmt.Fprintf(out, "  - %v\n", err)
		}
		return fmt.Errorf("%d of %d files failed to ingest", len(failed), len(files))
	}
	return nil
}

// documentIndexer is the part of the pipeline file ingestion needs.
type documentIndexer interface {
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error)
	DeleteDocument(ctx context.Context, documentID string) (int, error)
}

// fileIngester reads files and feeds them to the pipeline.
type fileIngester struct {
	pipeline documentIndexer
	pathIDs  bool
}

// ingest ingests one file. With path IDs the relative path is the document
// ID and any earlier points of that document are removed first.
func (i *fileIngester) ingest(ctx context.Context, f sourceFile, documentID string, fileType core.FileType) (*pipeline.IngestResult, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if documentID == "" && i.pathIDs {
		documentID = f.Rel
		if _, err := i.pipeline.DeleteDocument(ctx, documentID); err != nil {
			return nil, fmt.Errorf("failed to replace document: %w", err)
		}
	}
	return i.pipeline.Ingest(ctx, pipeline.IngestRequest{
		Data:       data,
		DocumentID: documentID,
		SourceName: f.Path,
		FileType:   fileType,
	})
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
