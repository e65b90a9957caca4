// Package attendstore keeps a local history of scraped attendance so
// day-to-day changes (a submission turning up approved, a pending flag
// clearing) can be detected without asking the portal what it said
// yesterday.
package attendstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"atdkit/lib/scrapers/atd/attendance"
	"atdkit/lib/timezone"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

type PushRequest struct {
	Time    time.Time
	Entries []attendance.Entry
}

// Push records a scrape. At most one snapshot per entry per calendar
// day is kept, a second push on the same day replaces the first.
func (s Store) Push(ctx context.Context, req PushRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	startOfToday := time.Date(req.Time.Year(), req.Time.Month(), req.Time.Day(), 0, 0, 0, 0, timezone.Location).Unix()
	startOfTommorow := time.Date(req.Time.Year(), req.Time.Month(), req.Time.Day()+1, 0, 0, 0, 0, timezone.Location).Unix()

	for _, entry := range req.Entries {
		date := entry.Date.Format(time.DateOnly)

		_, err = tx.ExecContext(ctx,
			`DELETE FROM attendance_snapshot
			 WHERE date = ? AND fetched_at >= ? AND fetched_at < ?`,
			date, startOfToday, startOfTommorow)
		if err != nil {
			return err
		}

		rawStatus, err := json.Marshal(entry.RawStatus)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attendance_snapshot
			 (date, fetched_at, status, clock_in, clock_out, working_hours, raw_status, pending)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			date, req.Time.Unix(), string(entry.Status),
			entry.ClockIn, entry.ClockOut, entry.WorkingHours,
			string(rawStatus), entry.Pending)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

type DaySnapshot struct {
	Date         time.Time
	FetchedAt    time.Time
	Status       attendance.Status
	ClockIn      string
	ClockOut     string
	WorkingHours string
	RawStatus    []string
	Pending      bool
}

// Pull returns the latest snapshot per date inside [from, to],
// date-sorted.
func (s Store) Pull(ctx context.Context, from, to time.Time) ([]DaySnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, fetched_at, status, clock_in, clock_out, working_hours, raw_status, pending
		 FROM attendance_snapshot a
		 WHERE fetched_at = (
		     SELECT MAX(fetched_at) FROM attendance_snapshot b WHERE b.date = a.date
		 ) AND date >= ? AND date <= ?
		 ORDER BY date`,
		from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []DaySnapshot
	for rows.Next() {
		var date, status, rawStatus string
		var fetchedAt int64
		snapshot := DaySnapshot{}
		err = rows.Scan(&date, &fetchedAt, &status,
			&snapshot.ClockIn, &snapshot.ClockOut, &snapshot.WorkingHours,
			&rawStatus, &snapshot.Pending)
		if err != nil {
			return nil, err
		}

		snapshot.Date, err = time.ParseInLocation(time.DateOnly, date, timezone.Location)
		if err != nil {
			slog.WarnContext(ctx, "skipping snapshot with malformed date", "date", date)
			continue
		}
		snapshot.FetchedAt = time.Unix(fetchedAt, 0).In(timezone.Location)
		snapshot.Status = attendance.Status(status)
		err = json.Unmarshal([]byte(rawStatus), &snapshot.RawStatus)
		if err != nil {
			slog.WarnContext(ctx, "skipping snapshot with malformed raw status", "date", date)
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// History returns every stored snapshot of one date, oldest first.
func (s Store) History(ctx context.Context, date time.Time) ([]DaySnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, fetched_at, status, clock_in, clock_out, working_hours, raw_status, pending
		 FROM attendance_snapshot
		 WHERE date = ?
		 ORDER BY fetched_at`,
		date.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []DaySnapshot
	for rows.Next() {
		var day, status, rawStatus string
		var fetchedAt int64
		snapshot := DaySnapshot{}
		err = rows.Scan(&day, &fetchedAt, &status,
			&snapshot.ClockIn, &snapshot.ClockOut, &snapshot.WorkingHours,
			&rawStatus, &snapshot.Pending)
		if err != nil {
			return nil, err
		}
		snapshot.Date, _ = time.ParseInLocation(time.DateOnly, day, timezone.Location)
		snapshot.FetchedAt = time.Unix(fetchedAt, 0).In(timezone.Location)
		snapshot.Status = attendance.Status(status)
		json.Unmarshal([]byte(rawStatus), &snapshot.RawStatus)
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}
