package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/betbot/enginectl/internal/controlplane/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
	)
	var c *client.Client

	root := &cobra.Command{
		Use:           "botctl",
		Short:         "Operate the trading engine through the control plane",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				serverURL = os.Getenv("ENGINECTL_SERVER")
			}
			if serverURL == "" {
				serverURL = "http://localhost:8090"
			}
			c = client.New(serverURL, timeout)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "", "Control plane URL (default $ENGINECTL_SERVER or http://localhost:8090)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")

	getClient := func() *client.Client { return c }
	root.AddCommand(statusCmd(getClient))
	root.AddCommand(lifecycleCmds(getClient)...)
	root.AddCommand(configCmd(getClient))
	return root
}
