package commands

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"atdkit/lib/credstore"
	"atdkit/lib/serviceutil"

	"github.com/spf13/cobra"
)

var loginEmail *string

func init() {
	loginEmail = loginCmd.Flags().String("email", "", "The portal account's email address.")
	rootCmd.AddCommand(loginCmd)
}

func prompt(label string) string {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		serviceutil.Fatal("failed to read input", err)
	}
	return strings.TrimSpace(line)
}

var loginCmd = &cobra.Command{
	Use:   "login [--email <address>]",
	Short: "Logs in to the portal and saves the credentials in the OS keychain.",
	Run: func(cmd *cobra.Command, args []string) {
		app := setup(cmd.Context())
		defer app.Close()

		email := *loginEmail
		if email == "" {
			email = prompt("email")
		}
		password := prompt("password")

		sessionId, err := app.core.Login(cmd.Context(), email, password)
		if err != nil {
			serviceutil.Fatal("login failed", err)
		}

		if credstore.IsAvailable() {
			err = credstore.Set(credstore.Credentials{Email: email, Password: password})
			if err != nil {
				slog.Warn("could not save credentials, automatic re-login stays off", "err", err)
			}
		} else {
			slog.Warn("no OS keychain available, automatic re-login stays off")
		}

		slog.Info("logged in", "session", sessionId)
	},
}
