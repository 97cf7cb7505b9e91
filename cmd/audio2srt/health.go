package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newHealthCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}

			resp, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}

			green := color.New(color.FgGreen, color.Bold).SprintFunc()
			cmd.Printf("%s %s is %s\n", green("✓"), flags.server, resp.Status)
			return nil
		},
	}
}
