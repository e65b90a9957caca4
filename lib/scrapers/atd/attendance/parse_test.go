package attendance

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"atdkit/lib/timezone"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func page(rows ...string) []byte {
	return []byte(`<html><body>
<table class="attendance-table"><tbody>` + strings.Join(rows, "\n") + `</tbody></table>
</body></html>`)
}

func row(class string, cells ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<tr class=%q>`, class)
	for _, cell := range cells {
		b.WriteString("<td>" + cell + "</td>")
	}
	b.WriteString("</tr>")
	return b.String()
}

func dateAnchor(day int, dow string) string {
	return fmt.Sprintf(`<a href="/employee/adit/modify?year=2024&amp;month=4&amp;day=%d">04/%02d(%s)</a>`, day, day, dow)
}

// a normal worked day, cell order is date, holiday, shift, clock-in,
// clock-out, working hours, off-shift, overtime, night shift, break,
// status
func workedRow(day int) string {
	return row("",
		dateAnchor(day, "月"), "", "10:00-19:00", "09:58", "19:04",
		"8:06", "", "0:04", "", "1:00", "")
}

func TestParseMonthWorkedDay(t *testing.T) {
	entries, err := ParseMonth(page(workedRow(1)), 2024, time.April)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	require.Equal(t, timezone.Date(2024, time.April, 1), e.Date)
	require.Equal(t, "月", e.DayOfWeek)
	require.Equal(t, "09:58", e.ClockIn)
	require.Equal(t, "19:04", e.ClockOut)
	require.Equal(t, "8:06", e.WorkingHours)
	require.Equal(t, "1:00", e.BreakTime)
	require.Equal(t, StatusLogged, e.Status)
	require.True(t, e.IsLogged)
	require.False(t, e.IsHoliday)
}

func TestParseMonthStatusPrecedence(t *testing.T) {
	for _, test := range []struct {
		name     string
		row      string
		status   Status
		isLogged bool
	}{
		{
			name: "paid vacation without clock times",
			row: row("", dateAnchor(2, "火"), "", "", "", "", "", "", "", "", "",
				`<font style="font-weight: bold;">PV</font>`),
			status: StatusPaidVacation,
		},
		{
			name: "holiday work beats raw codes",
			row: row("", dateAnchor(3, "水"), "昭和の日", "", "09:00", "17:30",
				"7:30", "", "", "", "1:00",
				`<font style="font-weight: bold;">A</font>`),
			status:   StatusHolidayWork,
			isLogged: true,
		},
		{
			name: "absence",
			row: row("", dateAnchor(4, "木"), "", "10:00-19:00", "", "", "", "", "", "", "",
				`<font style="font-weight: bold;">A</font>`),
			status: StatusAbsence,
		},
		{
			name: "late",
			row: row("", dateAnchor(5, "金"), "", "10:00-19:00", "", "", "", "", "", "", "",
				`<font style="font-weight: bold;">L</font>`),
			status: StatusLate,
		},
		{
			name: "substitution holiday",
			row: row("", dateAnchor(8, "月"), "", "", "", "", "", "", "", "", "",
				`<font style="font-weight: bold;">SH</font>`),
			status: StatusSubstitutionHoliday,
		},
		{
			name:   "plain holiday",
			row:    row("", dateAnchor(6, "土"), "法定休日", "", "", "", "", "", "", "", "", ""),
			status: StatusHoliday,
		},
		{
			name:   "unlogged",
			row:    row("", dateAnchor(9, "火"), "", "10:00-19:00", "", "", "", "", "", "", "", ""),
			status: StatusUnlogged,
		},
		{
			name: "pending wins over everything",
			row: row("warning", dateAnchor(10, "水"), "法定休日", "", "09:00", "18:00",
				"8:00", "", "", "", "1:00",
				`<font style="font-weight: bold;">PV</font>`),
			status:   StatusPending,
			isLogged: true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			entries, err := ParseMonth(page(test.row), 2024, time.April)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, test.status, entries[0].Status)
			require.Equal(t, test.isLogged, entries[0].IsLogged)
		})
	}
}

func TestParseMonthSkipsMalformedRows(t *testing.T) {
	short := row("", dateAnchor(11, "木"), "", "09:58")
	noAnchor := row("", "合計", "", "", "", "", "", "", "", "", "", "")
	entries, err := ParseMonth(page(short, noAnchor, workedRow(12)), 2024, time.April)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 12, entries[0].Date.Day())
}

func TestParseMonthIdempotent(t *testing.T) {
	doc := page(
		workedRow(1),
		row("", dateAnchor(2, "火"), "", "", "", "", "", "", "", "", "",
			`<font style="font-weight: bold;">PV</font>`),
		row("warning", dateAnchor(3, "水"), "", "10:00-19:00", "09:55", "", "", "", "", "", "", ""),
	)
	first, err := ParseMonth(doc, 2024, time.April)
	require.NoError(t, err)
	second, err := ParseMonth(doc, 2024, time.April)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("parse not idempotent (-first +second):\n%s", diff)
	}
}

func TestParseMonthUnknownCodePassesThrough(t *testing.T) {
	entries, err := ParseMonth(page(
		row("", dateAnchor(15, "月"), "", "", "", "", "", "", "", "", "",
			`<font style="font-weight: bold;">XYZ</font>`),
	), 2024, time.April)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{"XYZ"}, entries[0].RawStatus)
	require.Equal(t, StatusUnlogged, entries[0].Status)
}

func TestParseMonthStatusCellSources(t *testing.T) {
	for _, test := range []struct {
		name string
		cell string
		want []string
	}{
		{
			name: "bold font wins over anchor",
			cell: `<font style="font-weight: bold;">A</font><a href="#">PV</a>`,
			want: []string{"A"},
		},
		{
			name: "anchor with styled inner text",
			cell: `<a href="#"><b>SH</b></a>`,
			want: []string{"SH"},
		},
		{
			name: "bare anchor filtered to short uppercase",
			cell: `<a href="#">PV</a>`,
			want: []string{"PV"},
		},
		{
			name: "bare anchor with long text ignored",
			cell: `<a href="#">details</a> L`,
			want: []string{"L"},
		},
		{
			name: "plain text tokens",
			cell: `A / L`,
			want: []string{"A", "L"},
		},
		{
			name: "empty cell",
			cell: "",
			want: nil,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			entries, err := ParseMonth(page(
				row("", dateAnchor(16, "火"), "", "", "", "", "", "", "", "", "", test.cell),
			), 2024, time.April)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, test.want, entries[0].RawStatus)
		})
	}
}

func TestParseMonthTooltip(t *testing.T) {
	entries, err := ParseMonth(page(
		row("", dateAnchor(17, "水"), "", "", "", "", "", "", "", "", "",
			`<a href="#" title="承認待ち">PV</a>`),
	), 2024, time.April)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "承認待ち", entries[0].Tooltip)
}
