// Package dateparse converts locale-formatted date text scraped from
// rendered vendor pages into calendar dates. The locale comes from the
// account_preferences.language configuration key; unknown hints fall back
// to English, which is also what the vendor app defaults to.
package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// ParseError means the text matched no known pattern for the hint locale.
// Callers treat this as a recoverable per-record failure, never fatal to
// the whole extraction.
type ParseError struct {
	Text   string
	Locale string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no known date pattern matches %q (locale %s)", e.Text, e.Locale)
}

type localeData struct {
	// each month lists its accepted written forms, e.g. Czech nominative
	// and genitive ("únor", "února")
	months    [12][]string
	rangeWord string
}

var locales = map[language.Tag]localeData{
	language.English: {
		months: [12][]string{
			{"january"}, {"february"}, {"march"}, {"april"}, {"may"}, {"june"},
			{"july"}, {"august"}, {"september"}, {"october"}, {"november"}, {"december"},
		},
		rangeWord: " to ",
	},
	language.Czech: {
		months: [12][]string{
			{"leden", "ledna"}, {"únor", "února"}, {"březen", "března"},
			{"duben", "dubna"}, {"květen", "května"}, {"červen", "června"},
			{"červenec", "července"}, {"srpen", "srpna"}, {"září"},
			{"říjen", "října"}, {"listopad", "listopadu"}, {"prosinec", "prosince"},
		},
		rangeWord: " do ",
	},
	language.German: {
		months: [12][]string{
			{"januar"}, {"februar"}, {"märz"}, {"april"}, {"mai"}, {"juni"},
			{"juli"}, {"august"}, {"september"}, {"oktober"}, {"november"}, {"dezember"},
		},
		rangeWord: " bis ",
	},
}

var supported = []language.Tag{language.English, language.Czech, language.German}
var matcher = language.NewMatcher(supported)

// Parser parses date text for one locale. The zero value is not usable;
// construct with New.
type Parser struct {
	tag  language.Tag
	data localeData
}

// New resolves hint (a BCP-47 code such as "en" or "cs-CZ") against the
// supported locales and returns a parser for the best match.
func New(hint string) Parser {
	tag := language.English
	if hint != "" {
		if parsed, err := language.Parse(hint); err == nil {
			if _, idx, conf := matcher.Match(parsed); conf != language.No {
				tag = supported[idx]
			}
		}
	}
	return Parser{tag: tag, data: locales[tag]}
}

// Locale returns the resolved locale code.
func (p Parser) Locale() string {
	return p.tag.String()
}

var (
	dayMonthYear  = regexp.MustCompile(`(\d{1,2})\.?\s+(\p{L}+)\s+(\d{4})`)
	monthDayYear  = regexp.MustCompile(`(\p{L}+)\s+(\d{1,2}),\s*(\d{4})`)
	numericDate   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	numericDotted = regexp.MustCompile(`(\d{1,2})\.\s+(\d{1,2})\.\s*(\d{4})`)
	monthYear     = regexp.MustCompile(`(\p{L}+)\s+(\d{4})`)
	dayMonth      = regexp.MustCompile(`^(\d{1,2})\.?\s+(\p{L}+)$`)
)

// ParseDate parses a single calendar date such as "Thursday, 1 February
// 2024", "February 1, 2024", "1. února 2024" or the numeric day-first form
// "01/02/2024".
func (p Parser) ParseDate(text string) (time.Time, error) {
	cleaned := strings.TrimSpace(text)

	if m := dayMonthYear.FindStringSubmatch(cleaned); m != nil {
		if month, ok := p.month(m[2]); ok {
			return makeDate(m[3], month, m[1], cleaned, p)
		}
	}
	if m := monthDayYear.FindStringSubmatch(cleaned); m != nil {
		if month, ok := p.month(m[1]); ok {
			return makeDate(m[3], month, m[2], cleaned, p)
		}
	}
	if m := numericDate.FindStringSubmatch(cleaned); m != nil {
		monthNum, err := strconv.Atoi(m[2])
		if err == nil && monthNum >= 1 && monthNum <= 12 {
			return makeDate(m[3], time.Month(monthNum), m[1], cleaned, p)
		}
	}
	if m := numericDotted.FindStringSubmatch(cleaned); m != nil {
		monthNum, err := strconv.Atoi(m[2])
		if err == nil && monthNum >= 1 && monthNum <= 12 {
			return makeDate(m[3], time.Month(monthNum), m[1], cleaned, p)
		}
	}

	return time.Time{}, &ParseError{Text: text, Locale: p.Locale()}
}

// ParseMonthYear parses a calendar page title such as "January 2024" into
// the first day of that month.
func (p Parser) ParseMonthYear(text string) (time.Time, error) {
	cleaned := strings.TrimSpace(text)

	m := monthYear.FindStringSubmatch(cleaned)
	if m == nil {
		return time.Time{}, &ParseError{Text: text, Locale: p.Locale()}
	}
	month, ok := p.month(m[1])
	if !ok {
		return time.Time{}, &ParseError{Text: text, Locale: p.Locale()}
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, &ParseError{Text: text, Locale: p.Locale()}
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), nil
}

// ParseRange parses either a single date or a "<date> to <date>" span,
// using the locale's range word. Single dates collapse to first == last.
func (p Parser) ParseRange(text string) (first, last time.Time, err error) {
	lowered := strings.ToLower(text)
	if idx := strings.Index(lowered, p.data.rangeWord); idx >= 0 {
		first, err = p.ParseDate(text[:idx])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		last, err = p.ParseDate(text[idx+len(p.data.rangeWord):])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if last.Before(first) {
			return time.Time{}, time.Time{}, &ParseError{Text: text, Locale: p.Locale()}
		}
		return first, last, nil
	}

	first, err = p.ParseDate(text)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return first, first, nil
}

// enDash separates the two ends of a weekly calendar title.
const enDash = "–"

// ParseWeekRange parses a weekly calendar title into its first and last
// day. The title shortens the first date as far as the week allows:
// "1–7 Jan 2024" within one month, "29 Jan – 4 Feb 2024" across months,
// "26 Dec 2022 – 1 Jan 2023" across years, "6.–12. 5. 2024" in numeric
// locales.
func (p Parser) ParseWeekRange(text string) (first, last time.Time, err error) {
	cleaned := strings.TrimSpace(text)
	fail := func() (time.Time, time.Time, error) {
		return time.Time{}, time.Time{}, &ParseError{Text: text, Locale: p.Locale()}
	}

	parts := strings.Split(cleaned, " "+enDash+" ")
	switch len(parts) {
	case 1:
		// only the day differs, e.g. "1–7 Jan 2024"
		halves := strings.SplitN(cleaned, enDash, 2)
		if len(halves) != 2 {
			return fail()
		}
		last, err = p.ParseDate(halves[1])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		day, ok := parseDay(halves[0])
		if !ok {
			return fail()
		}
		first = time.Date(last.Year(), last.Month(), day, 0, 0, 0, 0, time.UTC)
		if first.Month() != last.Month() {
			return fail()
		}
	case 2:
		last, err = p.ParseDate(parts[1])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		first, err = p.ParseDate(parts[0])
		if err != nil {
			// the first date borrows the year from the second,
			// e.g. "29 Jan – 4 Feb 2024"
			m := dayMonth.FindStringSubmatch(strings.TrimSpace(parts[0]))
			if m == nil {
				return fail()
			}
			month, ok := p.month(m[2])
			if !ok {
				return fail()
			}
			day, ok := parseDay(m[1])
			if !ok {
				return fail()
			}
			first = time.Date(last.Year(), month, day, 0, 0, 0, 0, time.UTC)
			if first.Month() != month {
				return fail()
			}
		}
	default:
		return fail()
	}

	if last.Before(first) {
		return fail()
	}
	return first, last, nil
}

func parseDay(token string) (int, bool) {
	token = strings.TrimSuffix(strings.TrimSpace(token), ".")
	day, err := strconv.Atoi(token)
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}

// month matches a scraped month token against the locale table. Both
// truncated tokens ("Mar") and inflected forms ("února") resolve as long
// as one is a prefix of the other.
func (p Parser) month(token string) (time.Month, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return 0, false
	}
	for i, forms := range p.data.months {
		for _, name := range forms {
			if strings.HasPrefix(name, token) || strings.HasPrefix(token, name) {
				return time.January + time.Month(i), true
			}
		}
	}
	return 0, false
}

func makeDate(yearStr string, month time.Month, dayStr, raw string, p Parser) (time.Time, error) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, &ParseError{Text: raw, Locale: p.Locale()}
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, &ParseError{Text: raw, Locale: p.Locale()}
	}
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Month() != month {
		// time.Date normalizes overflow, e.g. February 31 into March
		return time.Time{}, &ParseError{Text: raw, Locale: p.Locale()}
	}
	return date, nil
}
