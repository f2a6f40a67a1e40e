package absence

import (
	"context"
	"strings"
	"testing"
	"time"
	"worknight/lib/dateparse"
	"worknight/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const calendarFixture = `<html><body>
<div data-automation-calendar-automation-ready="true"
     data-automation-visiblerangeinterval="MONTH"
     data-automation-visiblerangestartdate="1706745600000">
  <div data-automation-id="calendarevent"
       aria-label="Holiday | Restoration Day | Monday, 1 January 2024"></div>
  <div data-automation-id="calendarevent"
       aria-label="Approved | Sick Leave | Monday, 8 January 2024 to Monday, 15 January 2024"></div>
  <button data-automation-id="calendarevent"
          aria-label="Approved | Annual Leave | Thursday, 1 February 2024 to Friday, 2 February 2024"></button>
  <button data-automation-id="calendarevent"
          aria-label="Approved | Annual Leave | sometime in spring"></button>
  <div data-automation-id="calendarevent"></div>
  <div data-automation-id="somethingelse" aria-label="not an event"></div>
</body></html>`

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtract(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:absence")
	defer cleanup()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(calendarFixture))
	require.NoError(t, err)

	records, summary := Extract(context.Background(), doc, dateparse.New("en"))

	expected := []Record{
		{
			First:  date(2024, time.January, 1),
			Last:   date(2024, time.January, 1),
			Status: "Holiday",
			Type:   "Restoration Day",
			Raw:    "Holiday | Restoration Day | Monday, 1 January 2024",
		},
		{
			First:  date(2024, time.January, 8),
			Last:   date(2024, time.January, 15),
			Status: "Approved",
			Type:   "Sick Leave",
			Raw:    "Approved | Sick Leave | Monday, 8 January 2024 to Monday, 15 January 2024",
		},
		{
			First:  date(2024, time.February, 1),
			Last:   date(2024, time.February, 2),
			Status: "Approved",
			Type:   "Annual Leave",
			Raw:    "Approved | Annual Leave | Thursday, 1 February 2024 to Friday, 2 February 2024",
		},
		{
			Raw:     "Approved | Annual Leave | sometime in spring",
			Invalid: true,
		},
	}

	diff := cmp.Diff(expected, records)
	if diff != "" {
		t.Fatal(diff)
	}

	require.Equal(t, Summary{Total: 4, Skipped: 1}, summary)
}

func TestExtractEmptyPage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:absence")
	defer cleanup()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)

	records, summary := Extract(context.Background(), doc, dateparse.New("en"))
	require.Empty(t, records)
	require.Equal(t, Summary{}, summary)
}

func TestRecordDays(t *testing.T) {
	testCases := []struct {
		record   Record
		expected int
	}{
		{Record{First: date(2024, time.January, 1), Last: date(2024, time.January, 1)}, 1},
		{Record{First: date(2024, time.January, 8), Last: date(2024, time.January, 15)}, 8},
		{Record{Invalid: true}, 0},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, test.record.Days())
	}
}

func TestParseEventMalformedLabel(t *testing.T) {
	_, err := parseEvent("Approved | Annual Leave", dateparse.New("en"))
	require.Error(t, err)

	_, err = parseEvent("just some text", dateparse.New("en"))
	require.Error(t, err)
}
