package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldruley/tripmailer/pkg/tripmailctl/client"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show the delivery status of a queued email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := rt.Client()
			if err != nil {
				return err
			}

			resp, err := c.Emails().Status(cmd.Context(), args[0])
			if err != nil {
				if client.IsNotFound(err) {
					return fmt.Errorf("email %s not found", args[0])
				}
				return err
			}
			return printResponse(rt, resp)
		},
	}
}
