// cmd/review-worker/reindex.go
package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

var reindexCommand = &cli.Command{
	Name:  "reindex",
	Usage: "Rebuild the Elasticsearch application projection from PostgreSQL",
	Action: func(c *cli.Context) error {
		ctx := c.Context
		s, err := buildServices(ctx, c)
		if err != nil {
			return err
		}
		defer s.Close()

		if s.search == nil {
			return errors.New("search is disabled; set search.enabled to reindex")
		}

		indexed, err := s.search.Reindex(ctx, s.store)
		s.log.Info("reindex finished", map[string]interface{}{"indexed": indexed})
		if err != nil {
			return fmt.Errorf("reindex incomplete: %w", err)
		}
		return nil
	},
}
