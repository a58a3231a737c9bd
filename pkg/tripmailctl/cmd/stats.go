package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show email queue statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := rt.Client()
			if err != nil {
				return err
			}

			counts, err := c.Admin().QueueStats(cmd.Context())
			if err != nil {
				return err
			}
			if rt.outputFormat == "json" {
				encoder := json.NewEncoder(rt.Writer())
				encoder.SetIndent("", "  ")
				return encoder.Encode(counts)
			}
			_, err = fmt.Fprintf(rt.Writer(),
				"waiting: %d\ndelayed: %d\nactive: %d\ncompleted: %d\nfailed: %d\n",
				counts.Waiting, counts.Delayed, counts.Active, counts.Completed, counts.Failed)
			return err
		},
	}
}
