package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"batchcal/internal/model"
)

// uidNamespace seeds stable per-batch UIDs so calendar clients update
// existing entries instead of duplicating them on every refresh.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("batchcal/batches"))

// ExportOptions controls Export.
type ExportOptions struct {
	Name string
	// Now stamps DTSTAMP. Zero means time.Now().
	Now time.Time
}

// BatchUID returns the ICS UID for a batch.
func BatchUID(b model.Batch) string {
	return uuid.NewSHA1(uidNamespace, []byte(b.Source+"/"+b.ID)).String() + "@batchcal"
}

// Export renders batches as a PUBLISH calendar. Batches without a start are omitted.
func Export(batches []model.Batch, opts ExportOptions) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//batchcal//course batches//EN")
	if opts.Name != "" {
		cal.SetName(opts.Name)
	}

	for _, b := range batches {
		if b.Start == nil {
			continue
		}
		ev := cal.AddEvent(BatchUID(b))
		ev.SetDtStampTime(now.UTC())
		ev.SetStartAt(b.Start.UTC())
		if b.End != nil {
			ev.SetEndAt(b.End.UTC())
		}
		ev.SetSummary(b.Title())
		if desc := describe(b); desc != "" {
			ev.SetDescription(desc)
		}
		if b.JoiningURL != "" {
			ev.SetURL(b.JoiningURL)
		}
	}
	return cal.Serialize()
}

func describe(b model.Batch) string {
	var lines []string
	if b.Course != nil && b.Course.Title != "" {
		line := "Course: " + b.Course.Title
		if b.Course.Level != "" {
			line += " (" + b.Course.Level + ")"
		}
		lines = append(lines, line)
	}
	if names := b.TutorNames(); len(names) > 0 {
		lines = append(lines, "Tutors: "+strings.Join(names, ", "))
	}
	return strings.Join(lines, "\n")
}
