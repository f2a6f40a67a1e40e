package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
	"worknight/internal/workday"
	"worknight/internal/workday/absence"
	"worknight/lib/retry"
	"worknight/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var absenceCmd = &cobra.Command{
	Use:   "absence",
	Short: "Operations of the absence module.",
}

var (
	absenceYear  int
	absenceMonth int
)

var absenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists absence records scraped from the absence calendar.",
	RunE:  runAbsenceList,
}

func init() {
	absenceListCmd.Flags().IntVar(&absenceYear, "year", 0,
		"Calendar year to list; defaults to the view the portal opens on.")
	absenceListCmd.Flags().IntVar(&absenceMonth, "month", 0,
		"Calendar month to list (1-12); requires --year.")

	absenceCmd.AddCommand(absenceListCmd)
	rootCmd.AddCommand(absenceCmd)
}

func runAbsenceList(cmd *cobra.Command, args []string) error {
	if (absenceYear == 0) != (absenceMonth == 0) {
		return errors.New("--year and --month must be given together")
	}
	if absenceMonth < 0 || absenceMonth > 12 {
		return fmt.Errorf("invalid month %d", absenceMonth)
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

	var records []absence.Record
	var summary absence.Summary
	err = runSession(ctx, cfg, func(client workday.Client) error {
		policy := retry.DefaultPolicy()
		if err := openModule(ctx, client, policy, "Absence"); err != nil {
			return err
		}
		if err := retry.Do(ctx, policy, func() error {
			return client.OpenTask(ctx, "Correct My Absence")
		}); err != nil {
			return fmt.Errorf("open absence calendar: %w", err)
		}
		if absenceYear != 0 {
			if err := retry.Do(ctx, policy, func() error {
				return client.GotoMonth(ctx, absenceYear, time.Month(absenceMonth))
			}); err != nil {
				return fmt.Errorf("go to requested month: %w", err)
			}
		}

		var err error
		records, err = retry.DoValue(ctx, policy, func() ([]absence.Record, error) {
			snapshot, err := client.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			var recs []absence.Record
			recs, summary = absence.Extract(ctx, snapshot, cfg.parser)
			return recs, nil
		})
		if err != nil {
			return fmt.Errorf("extract absences: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	renderAbsences(records, summary)
	return nil
}

func renderAbsences(records []absence.Record, summary absence.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"First", "Last", "Days", "Type", "Status"})

	for _, record := range records {
		if record.Invalid {
			continue
		}
		t.AppendRow(table.Row{
			record.First.Format(time.DateOnly),
			record.Last.Format(time.DateOnly),
			record.Days(),
			record.Type,
			record.Status,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	fmt.Printf("%d records, %d skipped\n", summary.Total, summary.Skipped)
	for _, record := range records {
		if record.Invalid {
			fmt.Printf("  skipped: %s\n", record.Raw)
		}
	}
}
