package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ldruley/tripmailer/pkg/email"
)

func NewSendCommand() *cobra.Command {
	var (
		to          string
		subject     string
		template    string
		vars        []string
		priority    int
		scheduledAt string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Queue an email for delivery",
		Example: `  tripmailctl send --to user@example.com --subject "Welcome to TripPlanner!" \
    --template welcome --var firstName=Ada`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			variables, err := parseVariables(vars)
			if err != nil {
				return err
			}

			req := email.Request{
				To:        to,
				Subject:   subject,
				Template:  email.Template(template),
				Variables: variables,
				Priority:  priority,
			}
			if scheduledAt != "" {
				at, err := time.Parse(time.RFC3339, scheduledAt)
				if err != nil {
					return fmt.Errorf("invalid --at value (want RFC3339): %w", err)
				}
				req.ScheduledAt = &at
			}

			c, err := rt.Client()
			if err != nil {
				return err
			}
			resp, err := c.Emails().Send(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResponse(rt, resp)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	cmd.Flags().StringVar(&subject, "subject", "", "Email subject")
	cmd.Flags().StringVar(&template, "template", "", "Template name (welcome, password-reset, email-verification, trip-invitation, trip-itinerary)")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Template variable as key=value (repeatable)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Job priority 1-10 (higher wins)")
	cmd.Flags().StringVar(&scheduledAt, "at", "", "Deliver no earlier than this RFC3339 timestamp")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func parseVariables(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	variables := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --var %q: want key=value", pair)
		}
		variables[key] = value
	}
	return variables, nil
}

func printResponse(rt *runtimeState, resp *email.Response) error {
	if rt.outputFormat == "json" {
		encoder := json.NewEncoder(rt.Writer())
		encoder.SetIndent("", "  ")
		return encoder.Encode(resp)
	}
	_, err := fmt.Fprintf(rt.Writer(), "%s\t%s", resp.ID, resp.Status)
	if err != nil {
		return err
	}
	if resp.SentAt != nil {
		_, _ = fmt.Fprintf(rt.Writer(), "\tsent at %s", resp.SentAt.Format(time.RFC3339))
	}
	if resp.Error != "" {
		_, _ = fmt.Fprintf(rt.Writer(), "\t%s", resp.Error)
	}
	_, err = fmt.Fprintln(rt.Writer())
	return err
}
