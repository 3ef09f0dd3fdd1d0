// cmd/review-worker/migrate.go
package main

import (
	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Create the review tables in PostgreSQL",
	Action: func(c *cli.Context) error {
		ctx := c.Context
		s, err := buildServices(ctx, c)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.store.Migrate(ctx); err != nil {
			return err
		}
		s.log.Info("review schema applied", nil)
		return nil
	},
}
