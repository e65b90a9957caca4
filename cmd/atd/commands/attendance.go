package commands

import (
	"context"
	"log/slog"
	"os"

	"atdkit/lib/attendstore"
	"atdkit/lib/attendstore/db"
	"atdkit/lib/scrapers/atd/attendance"
	"atdkit/lib/serviceutil"
	"atdkit/lib/sqliteutil"
	"atdkit/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var attendanceMonths *int

func init() {
	attendanceMonths = attendanceCmd.Flags().IntP(
		"months", "m", 1, "How many months to fetch, counting back from the current one.")
	rootCmd.AddCommand(attendanceCmd)
}

var attendanceCmd = &cobra.Command{
	Use:   "attendance [--months <n>]",
	Short: "Prints the attendance table and records a local history snapshot.",
	Run: func(cmd *cobra.Command, args []string) {
		app := setup(cmd.Context())
		defer app.Close()
		ctx := cmd.Context()

		client := attendance.NewClient(app.core)
		entries, err := client.Months(ctx, attendance.RecentMonths(timezone.Now(), *attendanceMonths))
		if err != nil {
			serviceutil.Fatal("failed to fetch attendance", err)
		}

		renderEntries(entries)
		pushHistory(ctx, app, entries)
	},
}

func renderEntries(entries []attendance.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Date", "Day", "Status", "In", "Out", "Hours", "Note"})

	for _, entry := range entries {
		note := entry.Holiday
		if note == "" {
			note = entry.Tooltip
		}
		t.AppendRow(table.Row{
			entry.Date.Format("01/02"),
			entry.DayOfWeek,
			string(entry.Status),
			entry.ClockIn,
			entry.ClockOut,
			entry.WorkingHours,
			note,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func pushHistory(ctx context.Context, app *app, entries []attendance.Entry) {
	database, err := sqliteutil.OpenWithSchema(db.Schema, app.attendanceDbPath())
	if err != nil {
		slog.Warn("failed to open attendance history", "err", err)
		return
	}
	defer database.Close()

	err = attendstore.NewStore(database).Push(ctx, attendstore.PushRequest{
		Time:    timezone.Now(),
		Entries: entries,
	})
	if err != nil {
		slog.Warn("failed to record attendance history", "err", err)
	}
}
