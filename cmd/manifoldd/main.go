// Command manifoldd runs the manifold orchestration daemon. It is normally
// launched by `manifold start`, which locates this binary next to the CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"manifold/internal/config"
	"manifold/internal/daemonrun"
)

func main() {
	if err := newDaemonCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newDaemonCommand() *cobra.Command {
	var socketPath string
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "manifoldd",
		Short:         "Manifold workflow orchestration daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   logLevel,
				SocketPath: socketPath,
			})
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "Path to the control socket")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}
