package commands

import (
	"context"
	"fmt"
	"os"

	"atdkit/lib/restyutil"
	"atdkit/lib/scrapers/atd/core"
	"atdkit/lib/telemetry"

	"github.com/spf13/cobra"
)

var verbose *bool

var rootCmd = &cobra.Command{
	Use:   "atd",
	Short: "atd manages time-and-attendance on the company portal from the command line.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		if *verbose {
			core.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/atd"))
		}
	},
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP(
		"verbose", "v", false,
		"Log debug output and dump http traffic to .dev/resty/atd.",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
