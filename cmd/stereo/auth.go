package main

import (
	"github.com/spf13/cobra"
)

func newLoginCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to X in a browser window and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := e.authManager()
			if err != nil {
				return err
			}
			if manager.IsAuthenticated() {
				e.out.Info("already logged in; run `stereo logout` first to switch accounts")
				return nil
			}
			e.out.Info("log in inside the browser window; it closes once X shows your timeline")
			if err := manager.Login(cmd.Context()); err != nil {
				return err
			}
			e.out.Success("X session stored")
			return nil
		},
	}
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored X session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := e.authManager()
			if err != nil {
				return err
			}
			if err := manager.Logout(); err != nil {
				return err
			}
			e.out.Success("X session removed")
			return nil
		},
	}
}
