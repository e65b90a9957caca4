package commands

import (
	"context"
	"log/slog"
	"time"

	"atdkit/lib/notify"
	"atdkit/lib/scrapers/atd/clock"
	"atdkit/lib/serviceutil"
	"atdkit/lib/timezone"

	"github.com/spf13/cobra"
)

var (
	clockDate  *string
	clockIn    *string
	clockOut   *string
	clockSpot  *string
	clockNote  *string
	clockForce *bool
)

func init() {
	clockDate = clockCmd.Flags().String("date", "", "The day to submit, YYYY-MM-DD. Defaults to today.")
	clockIn = clockCmd.Flags().String("in", "", "Clock-in time, HH:MM.")
	clockOut = clockCmd.Flags().String("out", "", "Clock-out time, HH:MM.")
	clockSpot = clockCmd.Flags().String("spot", "", "Work location, by name or numeric id.")
	clockNote = clockCmd.Flags().String("note", "", "Free-text notice attached to the submission.")
	clockForce = clockCmd.Flags().Bool("force", false,
		"Submit even if the portal's form changed since the last confirmed run.")
	rootCmd.AddCommand(clockCmd)
}

var clockCmd = &cobra.Command{
	Use:   "clock [--date <day>] [--in <time>] [--out <time>] [--spot <name>] [--note <text>]",
	Short: "Submits a clock-in/out pair for one day.",
	Run: func(cmd *cobra.Command, args []string) {
		app := setup(cmd.Context())
		defer app.Close()
		ctx := cmd.Context()

		date := timezone.Now()
		if *clockDate != "" {
			parsed, err := time.ParseInLocation(time.DateOnly, *clockDate, timezone.Location)
			if err != nil {
				serviceutil.Fatal("invalid --date, expected YYYY-MM-DD", err)
			}
			date = parsed
		}

		executor := clock.NewExecutor(app.core)
		page, err := executor.FetchModifyPage(ctx, date)
		if err != nil {
			serviceutil.Fatal("failed to fetch the modification page", err)
		}

		changed, err := clock.HasFieldSchemaChanged(ctx, app.kv, page.FormFields)
		if err != nil {
			serviceutil.Fatal("failed to check the form schema", err)
		}
		if changed && !*clockForce {
			notifyDrift(ctx, app, date)
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

		remembered := clock.NewRemembered(app.kv)
		req := clock.Request{
			Date:     date,
			ClockIn:  resolveValue(ctx, remembered, clock.FieldClockInTime, *clockIn, defaultFor(page.FormFields, clock.FieldClockInTime)),
			ClockOut: resolveValue(ctx, remembered, clock.FieldClockOutTime, *clockOut, defaultFor(page.FormFields, clock.FieldClockOutTime)),
			Notes:    resolveValue(ctx, remembered, clock.FieldNotice, *clockNote, ""),
		}
		spot := resolveValue(ctx, remembered, clock.FieldGroupId, *clockSpot, "")
		if isNumeric(spot) {
			req.SpotId = spot
		} else {
			req.SpotName = spot
		}

		err = executor.Submit(ctx, req)
		if err != nil {
			notifyFailure(ctx, app, date, err)
			serviceutil.Fatal("clock submission failed", err)
		}

		rememberValues(ctx, remembered, req, spot)
		slog.Info("clocked in and out",
			"date", date.Format(time.DateOnly),
			"in", req.ClockIn, "out", req.ClockOut)
	},
}

// resolveValue picks, in order, the explicit flag, the value
// remembered from the last confirmed run, then the form's default.
func resolveValue(ctx context.Context, remembered clock.Remembered, field, flag, fallback string) string {
	if flag != "" {
		return flag
	}
	value, ok, err := remembered.Get(ctx, field)
	if err != nil {
		slog.Warn("failed to read remembered value", "field", field, "err", err)
	}
	if ok {
		return value
	}
	return fallback
}

func defaultFor(fields []clock.ClockField, name string) string {
	for _, field := range fields {
		if field.Name == name {
			return field.DefaultValue
		}
	}
	return ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func rememberValues(ctx context.Context, remembered clock.Remembered, req clock.Request, spot string) {
	values := map[string]string{
		clock.FieldGroupId:      spot,
		clock.FieldClockInTime:  req.ClockIn,
		clock.FieldClockOutTime: req.ClockOut,
		clock.FieldNotice:       req.Notes,
	}
	for field, value := range values {
		if value == "" {
			continue
		}
		err := remembered.Set(ctx, field, value)
		if err != nil {
			slog.Warn("failed to remember value", "field", field, "err", err)
		}
	}
}

func notifyDrift(ctx context.Context, app *app, date time.Time) {
	if !app.notifier.Enabled() {
		return
	}
	subject, body := notify.SchemaDrifted(date.Format(time.DateOnly))
	err := app.notifier.Send(ctx, subject, body)
	if err != nil {
		slog.Warn("failed to send drift notification", "err", err)
	}
}

func notifyFailure(ctx context.Context, app *app, date time.Time, cause error) {
	if !app.notifier.Enabled() {
		return
	}
	subject, body := notify.SubmissionFailed(date.Format(time.DateOnly), cause)
	err := app.notifier.Send(ctx, subject, body)
	if err != nil {
		slog.Warn("failed to send failure notification", "err", err)
	}
}
