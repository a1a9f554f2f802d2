package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve upload and streaming search over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.addr)",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := openEngine(ctx, c)
			if err != nil {
				return err
			}
			defer e.Close()

			addr := c.String("addr")
			if addr == "" {
				addr = e.Config().Server.Addr
			}
			return e.NewServer().ListenAndServe(ctx, addr)
		},
	}
}
