// Package timetrack extracts time-attendance entries from the vendor's
// weekly time calendar. The calendar renders two event groups: all-day
// rows in the multi-day header table (holidays, full-day absences) and
// the user's own clocked blocks on the appointment panel. Event nodes
// carry "month-day-hour-minute" attributes with no year; the year comes
// from the week span displayed above the calendar.
package timetrack

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("worknight/timetrack")

const (
	selDailyEvent = "table[class*='multiDayBody'] div[data-automation-id='calendarevent']"
	selOwnEvent   = "div[class*='gwt-appointment-panel'] div[data-automation-id='calendarevent']"

	selTitle    = "div[data-automation-id='calendarAppointmentTitle']"
	selClock    = "div[data-automation-id='calendarAppointmentSubtitle']"
	selDuration = "div[data-automation-id='calendarAppointmentSubtitle2']"
)

// Entry is one time-attendance event. Invalid entries preserve the raw
// scraped excerpt for the user to inspect; their other fields are zero.
type Entry struct {
	Start    time.Time
	End      time.Time
	Title    string // "Regular/Time Worked"
	Clock    string // "09:00 - 13:00 (Meal)"
	Duration string // "4 Hours"
	Raw      string
	Invalid  bool
}

// Within reports whether the whole entry falls inside the given month.
func (e Entry) Within(month time.Month) bool {
	return !e.Invalid && e.Start.Month() == month && e.End.Month() == month
}

// Events groups one extraction pass by calendar section.
type Events struct {
	Daily []Entry
	Own   []Entry
}

// Summary aggregates one extraction pass.
type Summary struct {
	Total   int
	Skipped int
}

// Extract reads both event groups from the snapshot. weekFirst and
// weekLast supply the year the event attributes omit. A node that cannot
// be parsed is isolated: it yields an Invalid entry carrying the raw
// excerpt instead of aborting the extraction.
func Extract(ctx context.Context, doc *goquery.Document, weekFirst, weekLast time.Time) (Events, Summary) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()

	skipped := 0
	collect := func(selector string) []Entry {
		var entries []Entry
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			entry, err := parseEntry(sel, weekFirst, weekLast)
			if err != nil {
				slog.WarnContext(ctx, "skipping unparsable time entry",
					"excerpt", entry.Raw,
					"err", err,
				)
				entries = append(entries, Entry{Raw: entry.Raw, Invalid: true})
				skipped++
				return
			}
			entries = append(entries, entry)
		})
		return entries
	}

	events := Events{
		Daily: collect(selDailyEvent),
		Own:   collect(selOwnEvent),
	}

	span.SetAttributes(
		attribute.Int("daily", len(events.Daily)),
		attribute.Int("own", len(events.Own)),
		attribute.Int("skipped", skipped),
	)
	return events, Summary{Total: len(events.Daily) + len(events.Own), Skipped: skipped}
}

// parseEntry converts one calendar node. On failure the returned entry
// still carries the raw excerpt.
func parseEntry(sel *goquery.Selection, weekFirst, weekLast time.Time) (Entry, error) {
	startAttr := sel.AttrOr("data-automation-startdate", "")
	endAttr := sel.AttrOr("data-automation-enddate", "")
	title := strings.TrimSpace(sel.Find(selTitle).Text())
	raw := strings.TrimSpace(fmt.Sprintf("%s %s %s", startAttr, endAttr, title))

	start, err := parseEventDate(startAttr, weekFirst, weekLast)
	if err != nil {
		return Entry{Raw: raw}, err
	}
	end, err := parseEventDate(endAttr, weekFirst, weekLast)
	if err != nil {
		return Entry{Raw: raw}, err
	}
	if end.Before(start) {
		return Entry{Raw: raw}, fmt.Errorf("entry ends before it starts: %s", raw)
	}

	return Entry{
		Start:    start,
		End:      end,
		Title:    title,
		Clock:    strings.TrimSpace(sel.Find(selClock).Text()),
		Duration: strings.TrimSpace(sel.Find(selDuration).Text()),
		Raw:      raw,
	}, nil
}

// parseEventDate parses the "month-day-hour-minute" event attribute,
// e.g. "1-5-13-30". On a week spanning New Year the month decides which
// side the event belongs to.
func parseEventDate(attr string, weekFirst, weekLast time.Time) (time.Time, error) {
	parts := strings.Split(attr, "-")
	if len(parts) != 4 {
		return time.Time{}, fmt.Errorf("expected month-day-hour-minute, got %q", attr)
	}

	var nums [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, fmt.Errorf("expected month-day-hour-minute, got %q", attr)
		}
		nums[i] = n
	}
	month, day, hour, minute := time.Month(nums[0]), nums[1], nums[2], nums[3]
	if month < time.January || month > time.December ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("event date out of range: %q", attr)
	}

	year := weekFirst.Year()
	if weekFirst.Year() != weekLast.Year() && month != weekFirst.Month() {
		year = weekLast.Year()
	}

	date := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	if date.Day() != day || date.Month() != month {
		// normalization means the day does not exist in that month
		return time.Time{}, fmt.Errorf("event date out of range: %q", attr)
	}
	return date, nil
}
