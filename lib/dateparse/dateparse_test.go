package dateparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	testCases := []struct {
		hint     string
		text     string
		expected time.Time
	}{
		{"en", "Thursday, 1 February 2024", date(2024, time.February, 1)},
		{"en", "1 February 2024", date(2024, time.February, 1)},
		{"en", "February 1, 2024", date(2024, time.February, 1)},
		{"en", "Mon, 8 Jan 2024", date(2024, time.January, 8)},
		{"en", "15/01/2024", date(2024, time.January, 15)},
		{"cs", "12. 5. 2024", date(2024, time.May, 12)},
		{"cs", "čtvrtek, 1. února 2024", date(2024, time.February, 1)},
		{"cs", "8. ledna 2024", date(2024, time.January, 8)},
		{"cs-CZ", "31. prosince 2023", date(2023, time.December, 31)},
		{"de", "Donnerstag, 1. Februar 2024", date(2024, time.February, 1)},
		{"de-AT", "15. März 2024", date(2024, time.March, 15)},
		// unknown hints fall back to English
		{"xx-klingon", "1 February 2024", date(2024, time.February, 1)},
		{"", "1 February 2024", date(2024, time.February, 1)},
	}

	for _, test := range testCases {
		parser := New(test.hint)
		got, err := parser.ParseDate(test.text)
		require.NoError(t, err, "text: %q hint: %q", test.text, test.hint)
		require.Equal(t, test.expected, got, "text: %q hint: %q", test.text, test.hint)
	}
}

func TestParseDateFailure(t *testing.T) {
	parser := New("en")

	for _, text := range []string{"", "Annual Leave", "8 Hours", "99/99/9999"} {
		_, err := parser.ParseDate(text)

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr, "text: %q", text)
		require.Equal(t, text, parseErr.Text)
	}
}

func TestParseMonthYear(t *testing.T) {
	testCases := []struct {
		hint     string
		text     string
		expected time.Time
	}{
		{"en", "January 2024", date(2024, time.January, 1)},
		{"en", "December 2023", date(2023, time.December, 1)},
		{"cs", "únor 2024", date(2024, time.February, 1)},
		{"de", "März 2024", date(2024, time.March, 1)},
	}

	for _, test := range testCases {
		got, err := New(test.hint).ParseMonthYear(test.text)
		require.NoError(t, err, "text: %q", test.text)
		require.Equal(t, test.expected, got)
	}

	_, err := New("en").ParseMonthYear("not a title")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseRange(t *testing.T) {
	testCases := []struct {
		hint  string
		text  string
		first time.Time
		last  time.Time
	}{
		{
			hint:  "en",
			text:  "Monday, 8 January 2024 to Monday, 15 January 2024",
			first: date(2024, time.January, 8),
			last:  date(2024, time.January, 15),
		},
		{
			hint:  "en",
			text:  "Monday, 1 January 2024",
			first: date(2024, time.January, 1),
			last:  date(2024, time.January, 1),
		},
		{
			hint:  "cs",
			text:  "8. ledna 2024 do 15. ledna 2024",
			first: date(2024, time.January, 8),
			last:  date(2024, time.January, 15),
		},
		{
			hint:  "de",
			text:  "1. Februar 2024 bis 2. Februar 2024",
			first: date(2024, time.February, 1),
			last:  date(2024, time.February, 2),
		},
	}

	for _, test := range testCases {
		first, last, err := New(test.hint).ParseRange(test.text)
		require.NoError(t, err, "text: %q", test.text)
		require.Equal(t, test.first, first)
		require.Equal(t, test.last, last)
	}
}

func TestParseRangeRejectsReversedSpan(t *testing.T) {
	_, _, err := New("en").ParseRange("15 January 2024 to 8 January 2024")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseWeekRange(t *testing.T) {
	testCases := []struct {
		hint  string
		text  string
		first time.Time
		last  time.Time
	}{
		{"en", "1–7 Jan 2024", date(2024, time.January, 1), date(2024, time.January, 7)},
		{"en", "29 Jan – 4 Feb 2024", date(2024, time.January, 29), date(2024, time.February, 4)},
		{"en", "26 Dec 2022 – 1 Jan 2023", date(2022, time.December, 26), date(2023, time.January, 1)},
		{"cs", "6.–12. 5. 2024", date(2024, time.May, 6), date(2024, time.May, 12)},
	}

	for _, test := range testCases {
		first, last, err := New(test.hint).ParseWeekRange(test.text)
		require.NoError(t, err, "text: %q", test.text)
		require.Equal(t, test.first, first, "text: %q", test.text)
		require.Equal(t, test.last, last, "text: %q", test.text)
	}
}

func TestParseWeekRangeFailure(t *testing.T) {
	parser := New("en")

	for _, text := range []string{"Enter Time", "7 Jan 2024", "9–2 Jan 2024", ""} {
		_, _, err := parser.ParseWeekRange(text)
		require.Error(t, err, "text: %q", text)
	}
}

func TestLocaleResolution(t *testing.T) {
	require.Equal(t, "en", New("en-US").Locale())
	require.Equal(t, "cs", New("cs-CZ").Locale())
	require.Equal(t, "de", New("de").Locale())
	require.Equal(t, "en", New("tlh").Locale())
}
