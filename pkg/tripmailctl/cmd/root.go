package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ldruley/tripmailer/pkg/tripmailctl/client"
)

const defaultServer = "http://localhost:8080"

type Config struct {
	Server       string
	OutputWriter io.Writer
}

type runtimeState struct {
	server       string
	outputFormat string
	writer       io.Writer
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		Server:       defaultServer,
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{server: cfg.Server, writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:   "tripmailctl",
		Short: "Tripmailer CLI",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if env := os.Getenv("TRIPMAILCTL_SERVER"); env != "" && rt.server == defaultServer {
				rt.server = env
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("TRIPMAILCTL_OUTPUT")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.server, "server", rt.server, "Tripmailer API server address")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: text, json")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewSendCommand(),
		NewStatusCommand(),
		NewStatsCommand(),
		NewWorkerCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("command runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer == nil {
		return os.Stdout
	}
	return rt.writer
}

func (rt *runtimeState) Client() (*client.Client, error) {
	return client.New(client.WithServer(rt.server))
}
