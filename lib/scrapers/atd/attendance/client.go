package attendance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"atdkit/lib/kvstore"
	"atdkit/lib/scrapers/atd/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/atd/attendance")

const monthCacheLifetime = time.Minute * 15

// Client fetches and parses monthly attendance tables through an
// authenticated core client, caching recently fetched pages so that
// repeated reads within a few minutes don't hammer the portal.
type Client struct {
	core *core.Client
}

func NewClient(core *core.Client) Client {
	return Client{core: core}
}

// YearMonth names one attendance page.
type YearMonth struct {
	Year  int
	Month time.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func monthCacheKey(ym YearMonth) string {
	return core.DerivedCachePrefix + "month:" + ym.String()
}

// Month returns the parsed entries for one month, serving from the
// cache when a fresh enough page is available.
func (c Client) Month(ctx context.Context, ym YearMonth) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "Month")
	defer span.End()

	key := monthCacheKey(ym)
	record, err := c.core.Store().GetFresh(ctx, key, monthCacheLifetime)
	if err == nil {
		return ParseMonth(record.Value, ym.Year, ym.Month)
	}
	if !errors.Is(err, kvstore.ErrKeyNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read month cache")
		return nil, err
	}

	page, err := c.fetchMonthPage(ctx, ym)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch month page")
		return nil, err
	}
	entries, err := ParseMonth(page, ym.Year, ym.Month)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse month page")
		return nil, err
	}
	// only a page that parsed is worth keeping, a maintenance page
	// served with a 200 must not be pinned for the cache lifetime
	if err := c.core.Store().Set(ctx, key, page); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c Client) fetchMonthPage(ctx context.Context, ym YearMonth) ([]byte, error) {
	lastDay := daysIn(ym)
	query := url.Values{
		"list_type":   {"normal"},
		"search_type": {"month"},
		"year":        {strconv.Itoa(ym.Year)},
		"month":       {strconv.Itoa(int(ym.Month))},
		"from[year]":  {strconv.Itoa(ym.Year)},
		"from[month]": {strconv.Itoa(int(ym.Month))},
		"from[day]":   {"1"},
		"to[year]":    {strconv.Itoa(ym.Year)},
		"to[month]":   {strconv.Itoa(int(ym.Month))},
		"to[day]":     {strconv.Itoa(lastDay)},
	}
	res, err := c.core.Get(ctx, "/employee/attendance", query)
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

func daysIn(ym YearMonth) int {
	return time.Date(ym.Year, ym.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Months fetches several months concurrently. Entries from every
// month that succeeded come back date-sorted in one flat list, errors
// are joined so a single bad month doesn't discard the rest.
func (c Client) Months(ctx context.Context, yms []YearMonth) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "Months")
	defer span.End()

	var wg sync.WaitGroup
	var mutex sync.Mutex
	var entries []Entry
	var errs []error

	for _, ym := range yms {
		wg.Add(1)
		go func(ym YearMonth) {
			defer wg.Done()
			got, err := c.Month(ctx, ym)
			mutex.Lock()
			defer mutex.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ym, err))
				return
			}
			entries = append(entries, got...)
		}(ym)
	}
	wg.Wait()

	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch months")
		return entries, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
	return entries, nil
}

// RecentMonths lists the current month and the n-1 months before it,
// oldest first.
func RecentMonths(now time.Time, n int) []YearMonth {
	yms := make([]YearMonth, 0, n)
	for i := n - 1; i >= 0; i-- {
		t := now.AddDate(0, -i, -now.Day()+1)
		yms = append(yms, YearMonth{Year: t.Year(), Month: t.Month()})
	}
	return yms
}
