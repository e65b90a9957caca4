package attendstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"atdkit/lib/attendstore/db"
	"atdkit/lib/scrapers/atd/attendance"
	"atdkit/lib/timezone"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func entry(day int, status attendance.Status, clockIn string) attendance.Entry {
	return attendance.Entry{
		EntryRaw: attendance.EntryRaw{
			Date:    timezone.Date(2024, time.April, day),
			ClockIn: clockIn,
		},
		Status: status,
	}
}

func TestStore(t *testing.T) {
	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(sqlite)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	from := timezone.Date(2024, time.April, 1)
	to := timezone.Date(2024, time.April, 30)

	{
		res, err := store.Pull(ctx, from, to)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 0)
	}
	{
		err := store.Push(ctx, PushRequest{
			Time: timezone.Now(),
			Entries: []attendance.Entry{
				entry(1, attendance.StatusPending, "09:58"),
				entry(2, attendance.StatusUnlogged, ""),
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	{
		res, err := store.Pull(ctx, from, to)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 2)
		require.Equal(t, attendance.StatusPending, res[0].Status)
		require.Equal(t, "09:58", res[0].ClockIn)
		require.Equal(t, timezone.Date(2024, time.April, 1), res[0].Date)
	}

	// a second push on the same day replaces today's snapshot instead
	// of stacking a duplicate
	{
		err := store.Push(ctx, PushRequest{
			Time: timezone.Now().Add(time.Minute),
			Entries: []attendance.Entry{
				entry(1, attendance.StatusLogged, "09:58"),
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		res, err := store.Pull(ctx, from, to)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 2)
		require.Equal(t, attendance.StatusLogged, res[0].Status)

		history, err := store.History(ctx, timezone.Date(2024, time.April, 1))
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, history, 1)
	}

	// range bounds exclude other months
	{
		res, err := store.Pull(ctx,
			timezone.Date(2024, time.May, 1),
			timezone.Date(2024, time.May, 31))
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 0)
	}
}
