// Package workday drives the vendor web application through an
// authenticated browser session. The DOM selectors in this file are the
// volatile part of the vendor contract; everything else in the tool is
// insulated from them.
package workday

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"worknight/internal/browser"
	"worknight/lib/dateparse"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("worknight/workday")

// Domain is the vendor application domain; sessions that land anywhere
// else (login portals, error pages) are sent back home.
const Domain = "myworkday.com"

// Calendar paging directions, named after the vendor's button ids.
const (
	CalendarNext = "next"
	CalendarPrev = "prev"
)

// maxCalendarSteps bounds month paging; the vendor keeps roughly a year
// of absence history reachable.
const maxCalendarSteps = 12

const (
	selSessionWarningModal = "div[data-automation-id='sessionWarningModal']"
	selSessionResetButton  = selSessionWarningModal + " button[data-automation-id='uic_resetButton']"
	selGlobalNavButton     = "button[title='Global Navigation']"
	selDateRangeTitle      = "h2[data-automation-id='dateRangeTitle']"
	selCalendarRange       = "div[data-automation-visiblerangestartdate]"
	selCalendarSettled     = "div[data-automation-calendarnavigationoverlayhidden='true']"
	selSelectWeekButton    = "button[title='Select Week']"
	selWeekPicker          = "div[data-automation-id='editPopup']"
	selPickerOKButton      = "button[data-automation-id='wd-CommandButton_uic_okButton']"
	selPickerError         = "li[data-automation-id='errorWidgetInlineMessageCanvas']"
)

// Client layers vendor-page navigation on top of a started session.
type Client struct {
	session *browser.Session
	parser  dateparse.Parser
}

func NewClient(session *browser.Session, parser dateparse.Parser) Client {
	return Client{session: session, parser: parser}
}

// EnsureOnVendorURL checks that the session is on the vendor domain and
// re-navigates home once if it is not (an expired SSO hop can strand the
// browser on an identity-provider page).
func (c Client) EnsureOnVendorURL(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:EnsureOnVendorURL")
	defer span.End()

	if c.onVendorURL() {
		return nil
	}
	slog.DebugContext(ctx, "not on vendor domain, returning home", "url", c.session.URL())

	if err := c.session.NavigateHome(ctx); err != nil {
		return err
	}
	if !c.onVendorURL() {
		return fmt.Errorf("failed to reach %s, stuck on %s", Domain, c.session.URL())
	}
	return nil
}

func (c Client) onVendorURL() bool {
	u, err := url.Parse(c.session.URL())
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), Domain)
}

// DismissSessionExpiration clicks away the session-expiration warning
// modal if one is showing. A missing modal is the normal case.
func (c Client) DismissSessionExpiration(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:DismissSessionExpiration")
	defer span.End()

	page := c.session.Page()
	count, err := page.Locator(selSessionWarningModal).Count()
	if err != nil {
		return fmt.Errorf("look for session warning modal: %w", err)
	}
	if count == 0 {
		return nil
	}

	slog.InfoContext(ctx, "dismissing session expiration modal")
	if err := page.Click(selSessionResetButton); err != nil {
		return fmt.Errorf("reset expiring session: %w", err)
	}
	return nil
}

// OpenModule opens the global-navigation menu and follows the entry with
// the given aria-label (e.g. "Absence").
func (c Client) OpenModule(ctx context.Context, label string) error {
	ctx, span := tracer.Start(ctx, "client:OpenModule")
	defer span.End()

	slog.DebugContext(ctx, "opening module", "label", label)

	page := c.session.Page()
	if err := page.Click(selGlobalNavButton); err != nil {
		return fmt.Errorf("open global navigation: %w", err)
	}
	if err := page.Click(fmt.Sprintf("a[aria-label='%s']", label)); err != nil {
		return fmt.Errorf("open module %s: %w", label, err)
	}
	return nil
}

// OpenTask follows a titled task link on the current view, such as
// "Correct My Absence".
func (c Client) OpenTask(ctx context.Context, title string) error {
	_, span := tracer.Start(ctx, "client:OpenTask")
	defer span.End()

	if err := c.session.Page().Click(fmt.Sprintf("a[title='%s']", title)); err != nil {
		return fmt.Errorf("open task %s: %w", title, err)
	}
	return nil
}

// CalendarMonth reads the calendar title ("January 2024") and returns the
// first day of the displayed month.
func (c Client) CalendarMonth(ctx context.Context) (time.Time, error) {
	_, span := tracer.Start(ctx, "client:CalendarMonth")
	defer span.End()

	title, err := c.session.Page().WaitForSelector(
		selDateRangeTitle,
		playwright.PageWaitForSelectorOptions{
			State: playwright.WaitForSelectorStateVisible,
		},
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("wait for calendar title: %w", err)
	}
	text, err := title.TextContent()
	if err != nil {
		return time.Time{}, fmt.Errorf("read calendar title: %w", err)
	}
	return c.parser.ParseMonthYear(text)
}

// PageCalendar clicks the next/prev button and waits until the calendar's
// visible range actually changes. The same buttons page both the monthly
// absence calendar and the weekly time calendar.
func (c Client) PageCalendar(ctx context.Context, direction string) error {
	ctx, span := tracer.Start(ctx, "client:PageCalendar")
	defer span.End()

	page := c.session.Page()
	rangeEl, err := page.WaitForSelector(selCalendarRange)
	if err != nil {
		return fmt.Errorf("wait for calendar: %w", err)
	}
	before, err := rangeEl.GetAttribute("data-automation-visiblerangestartdate")
	if err != nil {
		return fmt.Errorf("read calendar range: %w", err)
	}

	slog.DebugContext(ctx, "paging calendar", "direction", direction, "from", before)

	button := fmt.Sprintf("button[data-automation-id='%sMonthButton']", direction)
	if err := page.Click(button); err != nil {
		return fmt.Errorf("page calendar %s: %w", direction, err)
	}

	changed := fmt.Sprintf(
		"div[data-automation-visiblerangestartdate]:not([data-automation-visiblerangestartdate='%s'])",
		before,
	)
	if _, err := page.WaitForSelector(changed); err != nil {
		return fmt.Errorf("wait for calendar to change: %w", err)
	}
	return nil
}

// GotoMonth pages the calendar toward the requested month, bounded at
// maxCalendarSteps, then waits for the navigation overlay to settle.
func (c Client) GotoMonth(ctx context.Context, year int, month time.Month) error {
	ctx, span := tracer.Start(ctx, "client:GotoMonth")
	defer span.End()

	requested := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	err := stepToMonth(requested,
		func() (time.Time, error) { return c.CalendarMonth(ctx) },
		func(direction string) error { return c.PageCalendar(ctx, direction) },
	)
	if err != nil {
		return err
	}
	return c.waitForCalendarSettled(ctx)
}

// stepToMonth pages toward the requested month and checks the displayed
// month after every paging step, the last one included.
func stepToMonth(requested time.Time, current func() (time.Time, error), page func(string) error) error {
	for step := 0; ; step++ {
		displayed, err := current()
		if err != nil {
			return err
		}
		if displayed.Equal(requested) {
			return nil
		}
		if step == maxCalendarSteps {
			return fmt.Errorf("calendar did not reach %04d-%02d after %d steps",
				requested.Year(), requested.Month(), maxCalendarSteps)
		}

		direction := CalendarNext
		if displayed.After(requested) {
			direction = CalendarPrev
		}
		if err := page(direction); err != nil {
			return err
		}
	}
}

// WeekSpan is the date range covered by the weekly time calendar.
type WeekSpan struct {
	First time.Time
	Last  time.Time
}

// WeekRange reads the weekly calendar title ("29 Jan – 4 Feb 2024") and
// parses the span it covers.
func (c Client) WeekRange(ctx context.Context) (WeekSpan, error) {
	_, span := tracer.Start(ctx, "client:WeekRange")
	defer span.End()

	title, err := c.session.Page().WaitForSelector(
		selDateRangeTitle,
		playwright.PageWaitForSelectorOptions{
			State: playwright.WaitForSelectorStateVisible,
		},
	)
	if err != nil {
		return WeekSpan{}, fmt.Errorf("wait for week title: %w", err)
	}
	text, err := title.TextContent()
	if err != nil {
		return WeekSpan{}, fmt.Errorf("read week title: %w", err)
	}
	first, last, err := c.parser.ParseWeekRange(text)
	if err != nil {
		return WeekSpan{}, err
	}
	return WeekSpan{First: first, Last: last}, nil
}

// SelectWeek opens the week picker on the time calendar and types the
// requested date into its day, month and year sections. Each section
// echoes the typed value in a display node before the next one is
// entered.
func (c Client) SelectWeek(ctx context.Context, year int, month time.Month, day int) error {
	ctx, span := tracer.Start(ctx, "client:SelectWeek")
	defer span.End()

	slog.DebugContext(ctx, "selecting week", "year", year, "month", int(month), "day", day)

	page := c.session.Page()
	if err := page.Click(selSelectWeekButton); err != nil {
		return fmt.Errorf("open week picker: %w", err)
	}
	if _, err := page.WaitForSelector(selWeekPicker, playwright.PageWaitForSelectorOptions{
		State: playwright.WaitForSelectorStateVisible,
	}); err != nil {
		return fmt.Errorf("wait for week picker: %w", err)
	}

	sections := []struct {
		name  string
		value string
	}{
		{"Day", fmt.Sprintf("%02d", day)},
		{"Month", fmt.Sprintf("%02d", month)},
		{"Year", fmt.Sprintf("%04d", year)},
	}
	for _, section := range sections {
		input := fmt.Sprintf("%s input[data-automation-id='dateSection%s-input']",
			selWeekPicker, section.name)
		if err := page.Click(input); err != nil {
			return fmt.Errorf("focus %s section: %w", section.name, err)
		}
		if err := page.Fill(input, section.value); err != nil {
			return fmt.Errorf("enter %s section: %w", section.name, err)
		}
		display := fmt.Sprintf(
			"div[data-automation-id='dateSection%s-display']:has-text(\"%s\")",
			section.name, section.value,
		)
		if _, err := page.WaitForSelector(display); err != nil {
			return fmt.Errorf("confirm %s section: %w", section.name, err)
		}
	}

	if err := page.Click(selWeekPicker + " " + selPickerOKButton); err != nil {
		return fmt.Errorf("confirm week picker: %w", err)
	}
	return c.pickerError()
}

// pickerError surfaces the inline validation message the week picker
// shows for a rejected date. No message is the success case.
func (c Client) pickerError() error {
	messages := c.session.Page().Locator(selPickerError)
	count, err := messages.Count()
	if err != nil || count == 0 {
		return nil
	}
	text, err := messages.First().TextContent()
	if err != nil {
		text = "unreadable validation message"
	}
	return fmt.Errorf("week picker rejected the date: %s", strings.TrimSpace(text))
}

func (c Client) waitForCalendarSettled(ctx context.Context) error {
	_, span := tracer.Start(ctx, "client:waitForCalendarSettled")
	defer span.End()

	if _, err := c.session.Page().WaitForSelector(selCalendarSettled); err != nil {
		return fmt.Errorf("wait for calendar to settle: %w", err)
	}
	return nil
}

// Snapshot parses the rendered HTML of the current page into a document
// extractors can walk offline. Re-extraction after further navigation
// requires a fresh snapshot.
func (c Client) Snapshot(ctx context.Context) (*goquery.Document, error) {
	_, span := tracer.Start(ctx, "client:Snapshot")
	defer span.End()

	html, err := c.session.Content()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page snapshot: %w", err)
	}
	return doc, nil
}
