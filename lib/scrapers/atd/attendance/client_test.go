package attendance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"atdkit/lib/kvstore"
	"atdkit/lib/scrapers/atd/core"
	"atdkit/lib/timezone"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (Client, *core.Client) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	kv, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	coreClient, err := core.NewClient(context.Background(), core.ClientOptions{
		AppBaseUrl: server.URL,
		IdBaseUrl:  server.URL,
		Store:      kv,
	})
	require.NoError(t, err)

	err = coreClient.Sessions.Write(context.Background(), core.Session{
		Id:        "s1",
		Cookies:   "_session_id=s1",
		ExpiresAt: timezone.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	return NewClient(coreClient), coreClient
}

func TestMonthCachesPage(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/employee/attendance", r.URL.Path)
		require.Equal(t, "month", r.URL.Query().Get("search_type"))
		require.Equal(t, "2024", r.URL.Query().Get("year"))
		require.Equal(t, "30", r.URL.Query().Get("to[day]"))
		hits.Add(1)
		w.Write(page(workedRow(1), workedRow(2)))
	}))

	ctx := context.Background()
	ym := YearMonth{Year: 2024, Month: time.April}

	first, err := client.Month(ctx, ym)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.EqualValues(t, 1, hits.Load())

	second, err := client.Month(ctx, ym)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.EqualValues(t, 1, hits.Load(), "second read must come from the cache")
}

func TestMonthDoesNotCacheUnparseablePage(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Write([]byte(`<html><body><p>under maintenance</p></body></html>`))
			return
		}
		w.Write(page(workedRow(1)))
	}))

	ctx := context.Background()
	ym := YearMonth{Year: 2024, Month: time.April}

	_, err := client.Month(ctx, ym)
	require.Error(t, err)

	entries, err := client.Month(ctx, ym)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.EqualValues(t, 2, hits.Load(), "a page that failed to parse must be refetched")
}

func TestMonthsMergesAndSorts(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(page(workedRow(2), workedRow(1)))
	}))

	entries, err := client.Months(context.Background(), []YearMonth{
		{Year: 2024, Month: time.May},
		{Year: 2024, Month: time.April},
	})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		require.False(t, entries[i].Date.Before(entries[i-1].Date))
	}
}

func TestRecentMonths(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, timezone.Location)
	require.Equal(t, []YearMonth{
		{Year: 2024, Month: time.January},
		{Year: 2024, Month: time.February},
		{Year: 2024, Month: time.March},
	}, RecentMonths(now, 3))
}
