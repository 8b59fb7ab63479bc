package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "vending-machine",
		Usage:   "kiosk controller: inventory, orders, payment verification and dispensing",
		Version: version,
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the local HTTP API (default)",
				Action: serve,
			},
			{
				Name:      "test-channel",
				Usage:     "fire one unit from a channel without touching inventory",
				ArgsUsage: "<channel>",
				Action:    testChannel,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
