package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEndpointCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Show or change the remote endpoint",
		Long: `The endpoint is a spreadsheet web app that mirrors your tasks.
Without one, tasks are kept on this machine only.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configured endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := a.settings.EndpointURL(cmd.Context())
			if err != nil {
				return err
			}
			if url == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No endpoint configured (local-only mode)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <url>",
		Short: "Sync tasks with the endpoint at url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.settings.SetEndpointURL(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Endpoint saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Switch back to local-only mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.settings.ClearEndpointURL(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Endpoint cleared")
			return nil
		},
	})
	return cmd
}
