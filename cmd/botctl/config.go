package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/betbot/enginectl/internal/controlplane/client"
)

func configCmd(getClient func() *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or replace the engine configuration",
	}
	cmd.AddCommand(configGetCmd(getClient))
	cmd.AddCommand(configSetCmd(getClient))
	return cmd
}

func configGetCmd(getClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the configuration the engine is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := getClient().GetConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Config)
			return nil
		},
	}
}

func configSetCmd(getClient func() *client.Client) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the configuration with the contents of a file (- for stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			c := getClient()
			// 提交前必须先有基线
			if _, err := c.GetConfig(cmd.Context()); err != nil {
				return errors.Wrap(err, "fetch baseline")
			}
			res, err := c.SetConfig(cmd.Context(), content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (revision %d)\n", res.Message, res.Revision)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Configuration file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(stdin io.Reader, file string) (string, error) {
	if file == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), errors.Wrap(err, "read stdin")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", file)
	}
	return string(b), nil
}
