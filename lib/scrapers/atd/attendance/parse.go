package attendance

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"atdkit/lib/htmlutil"
	"atdkit/lib/timezone"

	"github.com/PuerkitoBio/goquery"
)

const pendingRowClass = "warning"

var (
	dateAnchorRegexp  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})\((.+)\)$`)
	statusTokenRegexp = regexp.MustCompile(`\b([A-Z]{1,3})\b`)
	uppercaseRegexp   = regexp.MustCompile(`^[A-Z]{1,3}$`)
)

// ParseMonth extracts one entry per table row from a month's
// attendance page. The year and month must be supplied by the caller
// because the row text only carries "MM/DD(dow)". Malformed rows are
// skipped, never fatal.
func ParseMonth(html []byte, year int, month time.Month) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse attendance html: %w", err)
	}

	table := doc.Find("table tbody").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("attendance table not found")
	}

	var entries []Entry
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 11 {
			slog.Debug("skipping short attendance row",
				"row", i, "cells", cells.Length())
			return
		}

		raw, ok := parseRow(row, cells, year, month)
		if !ok {
			slog.Debug("skipping attendance row without date anchor", "row", i)
			return
		}

		entry := derive(raw)
		logAnomalies(entry)
		entries = append(entries, entry)
	})
	return entries, nil
}

func parseRow(row, cells *goquery.Selection, year int, month time.Month) (EntryRaw, bool) {
	anchor := cells.Eq(0).Find("a").First()
	matches := dateAnchorRegexp.FindStringSubmatch(htmlutil.CleanText(anchor.Text()))
	if matches == nil {
		return EntryRaw{}, false
	}
	day, err := strconv.Atoi(matches[2])
	if err != nil || day < 1 || day > 31 {
		return EntryRaw{}, false
	}

	cellText := func(i int) string {
		return htmlutil.CleanText(cells.Eq(i).Text())
	}

	raw := EntryRaw{
		Date:          timezone.Date(year, month, day),
		DayOfWeek:     matches[3],
		Holiday:       cellText(1),
		ShiftTime:     cellText(2),
		ClockIn:       cellText(3),
		ClockOut:      cellText(4),
		WorkingHours:  cellText(5),
		OffShiftHours: cellText(6),
		Overtime:      cellText(7),
		NightShift:    cellText(8),
		BreakTime:     cellText(9),
		Pending:       row.HasClass(pendingRowClass),
	}

	statusCell := cells.Eq(10)
	raw.RawStatus = parseStatusCell(statusCell)
	if title, ok := statusCell.Find("[title]").First().Attr("title"); ok {
		raw.Tooltip = htmlutil.CleanText(title)
	}
	return raw, true
}

// parseStatusCell reads the status codes out of cell 10. The portal
// renders these three different ways depending on the day's state, so
// each source is tried in priority order and the first that yields
// anything wins.
func parseStatusCell(cell *goquery.Selection) []string {
	var codes []string
	appendCode := func(text string) {
		text = htmlutil.CleanText(text)
		if text != "" && !slices.Contains(codes, text) {
			codes = append(codes, text)
		}
	}

	cell.Find("font").Each(func(_ int, font *goquery.Selection) {
		style, _ := font.Attr("style")
		if strings.Contains(style, "bold") {
			appendCode(font.Text())
		}
	})
	if len(codes) > 0 {
		return codes
	}

	if anchor := cell.Find("a").First(); anchor.Length() > 0 {
		styled := anchor.Find("font, b, span")
		if styled.Length() > 0 {
			styled.Each(func(_ int, s *goquery.Selection) {
				appendCode(s.Text())
			})
		} else if text := htmlutil.CleanText(anchor.Text()); uppercaseRegexp.MatchString(text) {
			appendCode(text)
		}
	}
	if len(codes) > 0 {
		return codes
	}

	for _, match := range statusTokenRegexp.FindAllStringSubmatch(htmlutil.CleanText(cell.Text()), -1) {
		appendCode(match[1])
	}
	return codes
}

// logAnomalies reports rows that look inconsistent. Future days are
// expected to be empty so they never count as anomalies, and an
// unknown status code is only log-worthy because the portal's
// vocabulary is not ours to police.
func logAnomalies(entry Entry) {
	if entry.Date.After(timezone.Now()) {
		return
	}
	if entry.hasStatus("A") && (entry.ClockIn != "" || entry.ClockOut != "") {
		slog.Debug("absence code on a day with clock times",
			"date", entry.Date.Format(time.DateOnly), "status", entry.RawStatus)
	}
	for _, code := range entry.RawStatus {
		if !slices.Contains(knownStatusCodes, code) {
			slog.Debug("unrecognized attendance status code",
				"date", entry.Date.Format(time.DateOnly), "code", code)
		}
	}
}
