// Package absence extracts absence records from the vendor's absence
// calendar. Events render as calendar nodes whose aria-label carries the
// whole record: "Approved | Annual Leave | Thursday, 1 February 2024 to
// Friday, 2 February 2024".
package absence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"worknight/lib/dateparse"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("worknight/absence")

const selCalendarEvent = "[data-automation-id='calendarevent']"

// Record is one absence entry. Invalid records preserve the raw scraped
// excerpt for the user to inspect; their other fields are zero.
type Record struct {
	First   time.Time
	Last    time.Time
	Type    string
	Status  string
	Raw     string
	Invalid bool
}

// Days returns the length of the absence span in calendar days.
func (r Record) Days() int {
	if r.Invalid {
		return 0
	}
	return int(r.Last.Sub(r.First).Hours()/24) + 1
}

// Summary aggregates one extraction pass.
type Summary struct {
	Total   int
	Skipped int
}

// Extract walks every calendar event on the snapshot and converts it into
// a Record. A row that cannot be parsed is isolated: it yields an Invalid
// record carrying the raw excerpt instead of aborting the extraction, so
// the total record count always equals the row count.
func Extract(ctx context.Context, doc *goquery.Document, parser dateparse.Parser) ([]Record, Summary) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()

	var records []Record
	skipped := 0

	doc.Find(selCalendarEvent).Each(func(_ int, sel *goquery.Selection) {
		label := strings.TrimSpace(sel.AttrOr("aria-label", ""))
		if label == "" {
			// decorative calendar nodes carry no label
			return
		}

		record, err := parseEvent(label, parser)
		if err != nil {
			slog.WarnContext(ctx, "skipping unparsable calendar event",
				"label", label,
				"err", err,
			)
			records = append(records, Record{Raw: label, Invalid: true})
			skipped++
			return
		}
		records = append(records, record)
	})

	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("skipped", skipped),
	)
	return records, Summary{Total: len(records), Skipped: skipped}
}

// parseEvent splits a "Status | Type | date[ to date]" label into a record.
func parseEvent(label string, parser dateparse.Parser) (Record, error) {
	parts := strings.Split(label, " | ")
	if len(parts) != 3 {
		return Record{}, fmt.Errorf("expected 3 segments, got %d", len(parts))
	}

	first, last, err := parser.ParseRange(parts[2])
	if err != nil {
		return Record{}, err
	}

	return Record{
		First:  first,
		Last:   last,
		Status: strings.TrimSpace(parts[0]),
		Type:   strings.TrimSpace(parts[1]),
		Raw:    label,
	}, nil
}
