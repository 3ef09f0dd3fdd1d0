// cmd/review-worker/stats.go
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var statsCommand = &cli.Command{
	Name:  "stats",
	Usage: "Print foundation-wide or per-board-member review statistics as JSON",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "board-member",
			Usage: "Board member ID; omit for foundation-wide statistics",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := c.Context
		s, err := buildServices(ctx, c)
		if err != nil {
			return err
		}
		defer s.Close()

		var out interface{}
		if id := c.String("board-member"); id != "" {
			out, err = s.stats.BoardMemberStatistics(ctx, id)
		} else {
			out, err = s.stats.ApplicationStatistics(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to compute statistics: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}
