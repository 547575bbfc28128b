package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"megatrack/internal/model"
)

func newLoginCmd(a *app) *cobra.Command {
	var user model.User
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Remember who is signed in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user.Email = args[0]
			if err := a.sessions.Save(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.ID())
			return nil
		},
	}
	cmd.Flags().StringVar(&user.Name, "name", "", "display name")
	cmd.Flags().StringVar(&user.Picture, "picture", "", "avatar URL")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessions.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.sessions.Current(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if user == nil {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}
			if user.Name != "" {
				fmt.Fprintf(out, "%s <%s>\n", user.Name, user.Email)
				return nil
			}
			fmt.Fprintln(out, user.Email)
			return nil
		},
	}
}
