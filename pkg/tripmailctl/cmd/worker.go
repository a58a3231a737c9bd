package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldruley/tripmailer/pkg/email"
	"github.com/ldruley/tripmailer/pkg/queue"
	"github.com/ldruley/tripmailer/pkg/tripmailctl/client"
)

func NewWorkerCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Inspect and control delivery workers",
	}
	cmd.PersistentFlags().StringVar(&name, "name", email.WorkerName, "Worker name")

	cmd.AddCommand(
		newWorkerActionCommand("status", "Show worker state", &name,
			func(ctx context.Context, admin *client.AdminService, workerName string) (queue.WorkerStats, error) {
				return admin.WorkerStats(ctx, workerName)
			}),
		newWorkerActionCommand("pause", "Pause job pickup", &name,
			func(ctx context.Context, admin *client.AdminService, workerName string) (queue.WorkerStats, error) {
				return admin.PauseWorker(ctx, workerName)
			}),
		newWorkerActionCommand("resume", "Resume job pickup", &name,
			func(ctx context.Context, admin *client.AdminService, workerName string) (queue.WorkerStats, error) {
				return admin.ResumeWorker(ctx, workerName)
			}),
	)

	return cmd
}

func newWorkerActionCommand(use, short string, name *string, action func(ctx context.Context, admin *client.AdminService, name string) (queue.WorkerStats, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := rt.Client()
			if err != nil {
				return err
			}
			stats, err := action(cmd.Context(), c.Admin(), *name)
			if err != nil {
				if client.IsNotFound(err) {
					return fmt.Errorf("worker %s not found", *name)
				}
				return err
			}
			return printWorkerStats(rt, stats)
		},
	}
}

func printWorkerStats(rt *runtimeState, stats queue.WorkerStats) error {
	if rt.outputFormat == "json" {
		encoder := json.NewEncoder(rt.Writer())
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}
	state := "running"
	if !stats.Running {
		state = "closed"
	} else if stats.Paused {
		state = "paused"
	}
	_, err := fmt.Fprintf(rt.Writer(), "%s\tqueue=%s\t%s\tconcurrency=%d\tinFlight=%d\n",
		stats.Name, stats.Queue, state, stats.Concurrency, stats.InFlight)
	return err
}
