package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove every chunk of a document from the index",
		ArgsUsage: "<document-id>...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one document ID is required")
			}
			e, err := openEngine(c.Context, c)
			if err != nil {
				return err
			}
			defer e.Close()

			for _, id := range c.Args().Slice() {
				n, err := e.Pipeline().DeleteDocument(c.Context, id)
				if err != nil {
					return fmt.Errorf("failed to delete %s: %w", id, err)
				}
				fmt.Fprintf(c.App.Writer, "Deleted %d chunks of %s\n", n, id)
			}
			return nil
		},
	}
}

func collectionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "collections",
		Usage: "List the collections known to the index backend",
		Action: func(c *cli.Context) error {
			e, err := openEngine(c.Context, c)
			if err != nil {
				return err
			}
			defer e.Close()

			names, err := e.Index().Collections(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list collections: %w", err)
			}
			for _, name := range names {
				fmt.Fprintln(c.App.Writer, name)
			}
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show the collection layout and point count",
		Action: func(c *cli.Context) error {
			e, err := openEngine(c.Context, c)
			if err != nil {
				return err
			}
			defer e.Close()

			cfg, err := e.Index().Config()
			if err != nil {
				return err
			}
			count, err := e.Index().Count(c.Context)
			if err != nil {
				return fmt.Errorf("failed to count points: %w", err)
			}

			out := c.App.Writer
			fmt.Fprintf(out, "Backend:    %s\n", e.Config().Index.Backend)
			fmt.Fprintf(out, "Collection: %s\n", cfg.Name)
			fmt.Fprintf(out, "Dimension:  %d\n", cfg.Dimension)
			fmt.Fprintf(out, "Distance:   %s\n", cfg.Distance)
			fmt.Fprintf(out, "Points:     %d\n", count)
			return nil
		},
	}
}
