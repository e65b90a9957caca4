package commands

import (
	"errors"
	"log/slog"

	"atdkit/lib/credstore"
	"atdkit/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidates the portal session and forgets the saved credentials.",
	Run: func(cmd *cobra.Command, args []string) {
		app := setup(cmd.Context())
		defer app.Close()

		err := app.core.Logout(cmd.Context())
		if err != nil {
			serviceutil.Fatal("logout failed", err)
		}

		err = credstore.Delete()
		if err != nil && !errors.Is(err, credstore.ErrNotFound) {
			slog.Warn("could not remove saved credentials", "err", err)
		}

		slog.Info("logged out")
	},
}
