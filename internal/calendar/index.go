package calendar

import (
	"fmt"
	"sort"
	"time"

	"batchcal/internal/model"
)

// DateKey is the canonical "YYYY-M-D" key (1-based month, no padding) of t's
// calendar date in loc. Time of day is ignored. A nil loc means time.Local.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return fmt.Sprintf("%d-%d-%d", y, int(m), d)
}

// IndexOptions configures IndexByDate.
type IndexOptions struct {
	// Location decides which calendar day a start instant belongs to.
	// Nil means time.Local.
	Location *time.Location
	// Palette picks EventSummary colors. Nil means DefaultPalette.
	Palette *Palette
}

// DateIndex maps date keys to the events starting on that day.
type DateIndex struct {
	loc     *time.Location
	buckets map[string][]model.EventSummary
	days    map[string]time.Time
	total   int

	// Skipped holds IDs of batches left out because their start is unknown.
	Skipped []string
}

// IndexByDate groups batches by the local calendar day of their start.
// Bucket order follows input order. Batches without a start are skipped
// and listed in Skipped; the caller decides how to report them.
func IndexByDate(batches []model.Batch, opts IndexOptions) *DateIndex {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	palette := opts.Palette
	if palette == nil {
		palette = DefaultPalette()
	}

	idx := &DateIndex{
		loc:     loc,
		buckets: make(map[string][]model.EventSummary),
		days:    make(map[string]time.Time),
	}

	for _, b := range batches {
		if b.Start == nil || b.Start.IsZero() {
			idx.Skipped = append(idx.Skipped, b.ID)
			continue
		}
		key := DateKey(*b.Start, loc)
		if _, ok := idx.days[key]; !ok {
			y, m, d := b.Start.In(loc).Date()
			idx.days[key] = time.Date(y, m, d, 0, 0, 0, 0, loc)
		}
		idx.buckets[key] = append(idx.buckets[key], Summarize(b, loc, palette))
		idx.total++
	}
	return idx
}

// Summarize projects a batch with a known start into an EventSummary.
func Summarize(b model.Batch, loc *time.Location, palette *Palette) model.EventSummary {
	if loc == nil {
		loc = time.Local
	}
	ev := model.EventSummary{
		ID:         b.ID,
		Title:      b.Title(),
		TutorNames: b.TutorNames(),
		Color:      palette.ColorFor(b),
	}
	if b.Start != nil {
		ev.Start = b.Start.In(loc)
	}
	if b.End != nil {
		end := b.End.In(loc)
		ev.End = &end
	}
	return ev
}

// Location returns the location used for keys.
func (idx *DateIndex) Location() *time.Location {
	return idx.loc
}

// EventsForDate returns the events on t's calendar day in the index location.
// The result is never nil.
func (idx *DateIndex) EventsForDate(t time.Time) []model.EventSummary {
	return idx.EventsForKey(DateKey(t, idx.loc))
}

// EventsForKey returns a copy of the bucket for key, or an empty slice.
func (idx *DateIndex) EventsForKey(key string) []model.EventSummary {
	bucket := idx.buckets[key]
	out := make([]model.EventSummary, len(bucket))
	copy(out, bucket)
	return out
}

// Keys lists the non-empty date keys in chronological order.
func (idx *DateIndex) Keys() []string {
	keys := make([]string, 0, len(idx.days))
	for k := range idx.days {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return idx.days[keys[i]].Before(idx.days[keys[j]])
	})
	return keys
}

// Len is the number of indexed events across all buckets.
func (idx *DateIndex) Len() int {
	return idx.total
}

// MonthsWithData returns the first day of every (year, month) in loc that
// has at least one batch start, oldest first.
func MonthsWithData(batches []model.Batch, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	seen := make(map[int]struct{})
	months := make([]int, 0)
	for _, b := range batches {
		if b.Start == nil || b.Start.IsZero() {
			continue
		}
		y, m, _ := b.Start.In(loc).Date()
		k := y*12 + int(m) - 1
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		months = append(months, k)
	}
	sort.Ints(months)

	out := make([]time.Time, 0, len(months))
	for _, k := range months {
		out = append(out, time.Date(k/12, time.Month(k%12+1), 1, 0, 0, 0, 0, loc))
	}
	return out
}
