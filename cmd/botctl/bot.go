package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/betbot/enginectl/internal/controlplane/client"
	"github.com/betbot/enginectl/internal/domain"
)

func statusCmd(getClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the bot status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := getClient().Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Status)
			return nil
		},
	}
}

func lifecycleCmds(getClient func() *client.Client) []*cobra.Command {
	short := map[domain.LifecycleCommand]string{
		domain.CommandStart:   "Start the engine",
		domain.CommandStop:    "Stop the engine (cancels an in-flight start)",
		domain.CommandRestart: "Stop then start the engine",
	}
	var cmds []*cobra.Command
	for _, lc := range []domain.LifecycleCommand{domain.CommandStart, domain.CommandStop, domain.CommandRestart} {
		lc := lc
		cmds = append(cmds, &cobra.Command{
			Use:   string(lc),
			Short: short[lc],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := getClient().Command(cmd.Context(), lc)
				if err != nil {
					if res.Status != "" {
						return fmt.Errorf("%w (status: %s)", err, res.Status)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s ok, status: %s\n", lc, res.Status)
				return nil
			},
		})
	}
	return cmds
}
