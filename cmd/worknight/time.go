package main

import (
	"context"
	"fmt"
	"os"
	"time"
	"worknight/internal/workday"
	"worknight/internal/workday/timetrack"
	"worknight/lib/retry"
	"worknight/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// maxMonthWeeks bounds the week-by-week walk over one month. A month
// spans at most six calendar weeks; one more read confirms we left it.
const maxMonthWeeks = 7

var timeCmd = &cobra.Command{
	Use:   "time",
	Short: "Operations of the time module.",
}

var timeListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists time-attendance entries from the weekly time calendar.",
}

var (
	timeDay   int
	timeMonth int
	timeYear  int
)

var timeListWeekCmd = &cobra.Command{
	Use:   "week",
	Short: "Lists the timesheet of one week.",
	RunE:  runTimeListWeek,
}

var timeListMonthCmd = &cobra.Command{
	Use:   "month",
	Short: "Lists the timesheet of one month.",
	RunE:  runTimeListMonth,
}

func init() {
	today := time.Now()
	timeListWeekCmd.Flags().IntVar(&timeDay, "day", today.Day(),
		"Day whose week to list (1-31).")
	for _, cmd := range []*cobra.Command{timeListWeekCmd, timeListMonthCmd} {
		cmd.Flags().IntVar(&timeMonth, "month", int(today.Month()),
			"Calendar month (1-12).")
		cmd.Flags().IntVar(&timeYear, "year", today.Year(),
			"Calendar year.")
	}

	timeListCmd.AddCommand(timeListWeekCmd)
	timeListCmd.AddCommand(timeListMonthCmd)
	timeCmd.AddCommand(timeListCmd)
	rootCmd.AddCommand(timeCmd)
}

func validateTimeFlags(needDay bool) error {
	if timeMonth < 1 || timeMonth > 12 {
		return fmt.Errorf("invalid month %d", timeMonth)
	}
	if needDay && (timeDay < 1 || timeDay > 31) {
		return fmt.Errorf("invalid day %d", timeDay)
	}
	return nil
}

func runTimeListWeek(cmd *cobra.Command, args []string) error {
	if err := validateTimeFlags(true); err != nil {
		return err
	}

	cfg, err := loadPipelineConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup(cmd.Context(), "worknight", telemetry.Config{
		OtlpHTTPEndpoint: cfg.otlpEndpoint,
	})
	if err != nil {
		return err
	}
	defer tel.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	var events timetrack.Events
	var summary timetrack.Summary
	err = runSession(ctx, cfg, func(client workday.Client) error {
		policy := retry.DefaultPolicy()
		if err := openModule(ctx, client, policy, "Time"); err != nil {
			return err
		}
		if err := retry.Do(ctx, policy, func() error {
			return client.SelectWeek(ctx, timeYear, time.Month(timeMonth), timeDay)
		}); err != nil {
			return fmt.Errorf("select week: %w", err)
		}

		span, err := readWeekSpan(ctx, client, policy)
		if err != nil {
			return err
		}
		events, summary, err = extractSpan(ctx, client, policy, span)
		return err
	})
	if err != nil {
		return err
	}

	renderTimesheet(events, summary)
	return nil
}

func runTimeListMonth(cmd *cobra.Command, args []string) error {
	if err := validateTimeFlags(false); err != nil {
		return err
	}

	cfg, err := loadPipelineConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup(cmd.Context(), "worknight", telemetry.Config{
		OtlpHTTPEndpoint: cfg.otlpEndpoint,
	})
	if err != nil {
		return err
	}
	defer tel.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	month := time.Month(timeMonth)
	monthStart := time.Date(timeYear, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var events timetrack.Events
	var summary timetrack.Summary
	err = runSession(ctx, cfg, func(client workday.Client) error {
		policy := retry.DefaultPolicy()
		if err := openModule(ctx, client, policy, "Time"); err != nil {
			return err
		}
		if err := retry.Do(ctx, policy, func() error {
			return client.SelectWeek(ctx, timeYear, month, 1)
		}); err != nil {
			return fmt.Errorf("select week: %w", err)
		}

		for week := 0; week < maxMonthWeeks; week++ {
			span, err := readWeekSpan(ctx, client, policy)
			if err != nil {
				return err
			}
			if !span.First.Before(monthEnd) {
				// the whole displayed week is past the month
				return nil
			}
			if !span.Last.Before(monthStart) {
				weekEvents, _, err := extractSpan(ctx, client, policy, span)
				if err != nil {
					return err
				}
				events.Daily = keepMonth(events.Daily, weekEvents.Daily, month, &summary)
				events.Own = keepMonth(events.Own, weekEvents.Own, month, &summary)
			}

			if err := retry.Do(ctx, policy, func() error {
				return client.PageCalendar(ctx, workday.CalendarNext)
			}); err != nil {
				return fmt.Errorf("page to next week: %w", err)
			}
		}
		return fmt.Errorf("calendar did not leave %04d-%02d after %d weeks",
			timeYear, month, maxMonthWeeks)
	})
	if err != nil {
		return err
	}

	renderTimesheet(events, summary)
	return nil
}

func readWeekSpan(ctx context.Context, client workday.Client, policy retry.Policy) (workday.WeekSpan, error) {
	span, err := retry.DoValue(ctx, policy, func() (workday.WeekSpan, error) {
		return client.WeekRange(ctx)
	})
	if err != nil {
		return workday.WeekSpan{}, fmt.Errorf("read week range: %w", err)
	}
	return span, nil
}

// extractSpan snapshots the current weekly view and extracts both event
// groups, dating them by the displayed week span.
func extractSpan(
	ctx context.Context,
	client workday.Client,
	policy retry.Policy,
	span workday.WeekSpan,
) (timetrack.Events, timetrack.Summary, error) {
	var summary timetrack.Summary
	events, err := retry.DoValue(ctx, policy, func() (timetrack.Events, error) {
		snapshot, err := client.Snapshot(ctx)
		if err != nil {
			return timetrack.Events{}, err
		}
		var evs timetrack.Events
		evs, summary = timetrack.Extract(ctx, snapshot, span.First, span.Last)
		return evs, nil
	})
	if err != nil {
		return timetrack.Events{}, timetrack.Summary{}, fmt.Errorf("extract timesheet: %w", err)
	}
	return events, summary, nil
}

// keepMonth appends the entries that fall inside month, carrying invalid
// entries through so they still show up in the summary.
func keepMonth(dst, src []timetrack.Entry, month time.Month, summary *timetrack.Summary) []timetrack.Entry {
	for _, entry := range src {
		if !entry.Invalid && !entry.Within(month) {
			continue
		}
		dst = append(dst, entry)
		summary.Total++
		if entry.Invalid {
			summary.Skipped++
		}
	}
	return dst
}

func renderTimesheet(events timetrack.Events, summary timetrack.Summary) {
	if len(events.Daily) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Date", "Detail", "Type"})
		for _, entry := range events.Daily {
			if entry.Invalid {
				continue
			}
			t.AppendRow(table.Row{
				entry.Start.Format(time.DateOnly),
				entry.Clock,
				entry.Title,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}

	if len(events.Own) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Start", "End", "Duration", "Type"})
		for _, entry := range events.Own {
			if entry.Invalid {
				continue
			}
			t.AppendRow(table.Row{
				entry.Start.Format("2006-01-02 15:04"),
				entry.End.Format("15:04"),
				entry.Duration,
				entry.Title,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}

	fmt.Printf("%d entries, %d skipped\n", summary.Total, summary.Skipped)
	for _, entry := range append(append([]timetrack.Entry{}, events.Daily...), events.Own...) {
		if entry.Invalid {
			fmt.Printf("  skipped: %s\n", entry.Raw)
		}
	}
}
