// cmd/review-worker/main.go
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "review-worker",
		Usage: "Application review and voting workflow for the foundation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file (defaults to configs/config.yaml)",
				EnvVars: []string{"REVIEW_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			workersCommand,
			statsCommand,
			reindexCommand,
			migrateCommand,
			activitiesCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "review-worker: %v\n", err)
		os.Exit(1)
	}
}
