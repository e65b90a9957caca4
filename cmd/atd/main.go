package main

import (
	"fmt"
	"os"

	"atdkit/cmd/atd/commands"
	"atdkit/lib/serviceutil"
	"atdkit/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	// a missing telemetry.json5 just means spans and metrics stay no-ops
	err := telemetry.SetupFromEnv(ctx, "atd")
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "telemetry setup failed:", err)
	}
	telemetry.InstrumentPerfStats(ctx)

	commands.ExecuteContext(ctx)
}
