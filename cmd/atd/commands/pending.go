package commands

import (
	"log/slog"
	"os"
	"time"

	"atdkit/lib/scrapers/atd/attendance"
	"atdkit/lib/scrapers/atd/clock"
	"atdkit/lib/serviceutil"
	"atdkit/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	pendingMonths *int
	pendingSubmit *bool
	pendingNote   *string
	pendingSpot   *string
	pendingForce  *bool
)

func init() {
	pendingMonths = pendingCmd.Flags().IntP(
		"months", "m", 1, "How many months to scan, counting back from the current one.")
	pendingSubmit = pendingCmd.Flags().Bool(
		"submit", false, "Submit every unlogged past day, oldest first, instead of just listing.")
	pendingNote = pendingCmd.Flags().String("note", "", "Notice to attach to submissions.")
	pendingSpot = pendingCmd.Flags().String("spot", "", "Work location for submissions, by name or numeric id.")
	pendingForce = pendingCmd.Flags().Bool("force", false,
		"Submit even if the portal's form changed since the last confirmed run.")
	rootCmd.AddCommand(pendingCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending [--months <n>] [--submit]",
	Short: "Lists past days that are still unlogged or waiting for approval.",
	Run: func(cmd *cobra.Command, args []string) {
		app := setup(cmd.Context())
		defer app.Close()
		ctx := cmd.Context()

		client := attendance.NewClient(app.core)
		entries, err := client.Months(ctx, attendance.RecentMonths(timezone.Now(), *pendingMonths))
		if err != nil {
			serviceutil.Fatal("failed to fetch attendance", err)
		}

		now := timezone.Now()
		var unlogged []attendance.Entry
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Date", "Day", "Status"})

		for _, entry := range entries {
			if entry.Date.After(now) {
				continue
			}
			switch entry.Status {
			case attendance.StatusUnlogged:
				unlogged = append(unlogged, entry)
			case attendance.StatusPending:
			default:
				continue
			}
			t.AppendRow(table.Row{
				entry.Date.Format("01/02"),
				entry.DayOfWeek,
				string(entry.Status),
			})
		}

		if t.Length() == 0 {
			cmd.Println("nothing pending")
			return
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		if !*pendingSubmit {
			return
		}
		if len(unlogged) == 0 {
			cmd.Println("nothing to submit, the listed days are already awaiting approval")
			return
		}
		submitUnlogged(cmd, app, unlogged)
	},
}

// submitUnlogged clocks every unlogged day in, oldest first, stopping
// at the first failure so a broken form doesn't spray bad submissions
// over the whole backlog.
func submitUnlogged(cmd *cobra.Command, app *app, unlogged []attendance.Entry) {
	ctx := cmd.Context()
	executor := clock.NewExecutor(app.core)
	remembered := clock.NewRemembered(app.kv)

	page, err := executor.FetchModifyPage(ctx, unlogged[0].Date)
	if err != nil {
		serviceutil.Fatal("failed to fetch the modification page", err)
	}
	changed, err := clock.HasFieldSchemaChanged(ctx, app.kv, page.FormFields)
	if err != nil {
		serviceutil.Fatal("failed to check the form schema", err)
	}
	if changed && !*pendingForce {
		notifyDrift(ctx, app, unlogged[0].Date)
		serviceutil.Fatal(
			"the portal's clock form changed since the last run, "+
				"re-check your values and pass --force to submit", nil)
	}
	if changed {
		err = clock.RememberFieldSchema(ctx, app.kv, page.FormFields)
		if err != nil {
			slog.Warn("failed to store the new form schema", "err", err)
		}
	}

	req := clock.Request{
		ClockIn:  resolveValue(ctx, remembered, clock.FieldClockInTime, "", defaultFor(page.FormFields, clock.FieldClockInTime)),
		ClockOut: resolveValue(ctx, remembered, clock.FieldClockOutTime, "", defaultFor(page.FormFields, clock.FieldClockOutTime)),
		Notes:    resolveValue(ctx, remembered, clock.FieldNotice, *pendingNote, ""),
	}
	if req.Notes == "" {
		serviceutil.Fatal("no notice on record, pass --note or run `atd clock --note` once first", nil)
	}
	spot := resolveValue(ctx, remembered, clock.FieldGroupId, *pendingSpot, "")
	if isNumeric(spot) {
		req.SpotId = spot
	} else {
		req.SpotName = spot
	}

	for _, entry := range unlogged {
		req.Date = entry.Date
		err := executor.Submit(ctx, req)
		if err != nil {
			notifyFailure(ctx, app, entry.Date, err)
			serviceutil.Fatal("clock submission failed, stopping here", err)
		}
		slog.Info("clocked in and out", "date", entry.Date.Format(time.DateOnly))
	}
}
