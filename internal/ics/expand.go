package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "batchcal/internal/log"
	"batchcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Location is the zone batches are normalized into. Nil means time.Local.
	Location *time.Location

	// RangeStart / RangeEnd bound recurring instances (inclusive).
	// Non-recurring events are always kept.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps one RRULE. Zero means 500.
	MaxOccurrencesPerEvent int
}

// ToBatches turns parsed events into batches. Every recurring instance
// becomes its own batch with ID "<uid>@<start UTC>", so a batch still maps to
// exactly one calendar day. RECURRENCE-ID overrides replace their instance.
func ToBatches(events []ParsedEvent, cfg ExpandConfig) ([]model.Batch, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("ics: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		}
	}

	out := make([]model.Batch, 0, len(events))
	for _, ev := range events {
		if ev.IsOverride {
			continue
		}
		if ev.RawRRule == "" || ev.Start == nil {
			out = append(out, toBatch(ev, ev.UID, ev.Start, ev.End, cfg.Location))
			continue
		}
		out = append(out, expandRecurring(ev, overridesByUID[ev.UID], cfg)...)
	}
	return out, nil
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Batch {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(*ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	starts := set.Between(cfg.RangeStart.In(ev.Start.Location()), cfg.RangeEnd.In(ev.Start.Location()), true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("ics: recurrence truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent, "total", len(starts))
		starts = starts[:cfg.MaxOccurrencesPerEvent]
	}

	var dur time.Duration
	if ev.End != nil {
		dur = ev.End.Sub(*ev.Start)
	}

	out := make([]model.Batch, 0, len(starts))
	for _, s := range starts {
		start := s
		var end *time.Time
		if ev.End != nil {
			e := s.Add(dur)
			end = &e
		}
		id := ev.UID + "@" + s.UTC().Format("20060102T150405Z")

		if o, ok := findOverride(overrides, s); ok {
			out = append(out, toBatch(o, id, o.Start, o.End, cfg.Location))
			continue
		}
		out = append(out, toBatch(ev, id, &start, end, cfg.Location))
	}
	return out
}

func findOverride(overrides []ParsedEvent, instance time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(instance) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func toBatch(ev ParsedEvent, id string, start, end *time.Time, loc *time.Location) model.Batch {
	b := model.Batch{
		ID:         id,
		Name:       ev.Summary,
		JoiningURL: ev.URL,
		Source:     ev.Source.ID,
		Tutors:     []model.Tutor{},
	}
	if start != nil {
		s := start.In(loc)
		b.Start = &s
	}
	if end != nil {
		e := end.In(loc)
		b.End = &e
	}
	if ev.Description != "" {
		b.Course = &model.Course{Title: ev.Summary, Description: ev.Description}
	}
	if ev.Organizer != "" {
		b.Tutors = append(b.Tutors, model.Tutor{Name: ev.Organizer})
	}
	return b
}

// ParseFeed parses an ICS body and expands it into batches in one step.
func ParseFeed(src Source, body []byte, cfg ExpandConfig) ([]model.Batch, error) {
	events, err := ParseEvents(src, body, cfg.Location)
	if err != nil {
		return nil, err
	}
	return ToBatches(events, cfg)
}
