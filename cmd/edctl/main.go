// Command edctl is the operator console for emergency department intake:
// nurses admit and triage patients, physicians take them from the queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/ed-intake/internal/config"
)

type contextKey struct{}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(exitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	var configPath, metricsAddr string

	root := &cobra.Command{
		Use:           "edctl",
		Short:         "Emergency department intake console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(contextKey{}).(*app); ok {
				a.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml or ~/.ed-intake/config.yaml)")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve client metrics on this address while a long-running command runs")

	root.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newWhoamiCommand(),
		newPatientCommand(),
		newProvidersCommand(),
		newAdmitCommand(),
		newQueueCommand(),
		newHistoryCommand(),
		newShowCommand(),
		newNextCommand(),
		newResumeCommand(),
		newFinalizeCommand(),
	)
	return root
}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(contextKey{}).(*app)
}
