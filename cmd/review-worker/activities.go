// cmd/review-worker/activities.go
package main

import (
	"os"

	"foundation-review/pkg/registry"

	"github.com/urfave/cli/v2"
)

var activitiesCommand = &cli.Command{
	Name:  "activities",
	Usage: "Print the job worker catalogue for BPMN modelers as JSON",
	Action: func(c *cli.Context) error {
		return registry.Write(os.Stdout, registry.Review())
	},
}
