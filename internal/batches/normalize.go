// Package batches normalizes batch records from the platform API into
// model.Batch and fetches them over HTTP with a disk-backed cache.
package batches

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"batchcal/internal/model"
)

// ErrNoBatchList is returned when a payload holds neither an array nor a
// known wrapper key around one.
var ErrNoBatchList = errors.New("batches: payload contains no batch list")

// Issue is a non-fatal data-quality problem in a single record.
type Issue struct {
	Index int
	ID    string
	Field string
	Err   error
}

func (i Issue) Error() string {
	return fmt.Sprintf("batch[%d] id=%q %s: %v", i.Index, i.ID, i.Field, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }

// Issue.Field values. FieldRecord means the whole record could not be
// decoded and was dropped; the others keep the record with the field unset.
const (
	FieldRecord = "record"
	FieldStart  = "start_date"
	FieldEnd    = "end_date"
	FieldPrice  = "price"
)

// The API has shipped several spellings for the same fields over time;
// all of them are accepted here and nowhere else.
type rawBatch struct {
	ID    json.RawMessage `json:"id"`
	Name  string          `json:"name"`
	Title string          `json:"title"`

	// Timestamps stay raw so a non-string value is reported per field.
	StartDate      json.RawMessage `json:"start_date"`
	Start          json.RawMessage `json:"start"`
	StartDateCamel json.RawMessage `json:"startDate"`
	EndDate        json.RawMessage `json:"end_date"`
	End            json.RawMessage `json:"end"`
	EndDateCamel   json.RawMessage `json:"endDate"`

	Course *rawCourse `json:"course"`
	Tutors []rawTutor `json:"tutors"`

	JoiningURL      string `json:"joining_url"`
	JoiningURLCamel string `json:"joiningUrl"`
	JoinURL         string `json:"join_url"`

	Price json.RawMessage `json:"price"`
}

type rawCourse struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Level       string          `json:"level"`
	Duration    json.RawMessage `json:"duration"`
}

type rawTutor struct {
	ID                json.RawMessage `json:"id"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	ProfileImage      string          `json:"profile_image"`
	ProfileImageCamel string          `json:"profileImage"`
}

var wrapperKeys = []string{"data", "batches", "results"}

// Normalize decodes an API payload into canonical batches.
//
// The payload may be a bare JSON array or an object that wraps the array
// under "data", "batches" or "results" (up to two envelopes deep).
// Zone-less timestamps are interpreted in loc. Records with a missing or
// unparsable timestamp are kept with a nil Start/End. Everything except a
// missing end is reported as an Issue.
func Normalize(payload []byte, loc *time.Location) ([]model.Batch, []Issue, error) {
	if loc == nil {
		loc = time.Local
	}

	list, err := unwrap(payload, 2)
	if err != nil {
		return nil, nil, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(list, &elems); err != nil {
		return nil, nil, fmt.Errorf("batches: decode list: %w", err)
	}

	out := make([]model.Batch, 0, len(elems))
	var issues []Issue
	for i, elem := range elems {
		var r rawBatch
		if err := json.Unmarshal(elem, &r); err != nil {
			issues = append(issues, Issue{Index: i, ID: peekID(elem), Field: FieldRecord, Err: err})
			continue
		}
		b, recIssues := r.normalize(i, loc)
		issues = append(issues, recIssues...)
		out = append(out, b)
	}
	return out, issues, nil
}

// peekID pulls the id out of a record that failed to decode, for reporting.
func peekID(elem json.RawMessage) string {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(elem, &probe); err != nil {
		return ""
	}
	return scalarString(probe.ID)
}

func unwrap(payload []byte, depth int) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrNoBatchList
	}
	switch trimmed[0] {
	case '[':
		return trimmed, nil
	case '{':
		if depth == 0 {
			return nil, ErrNoBatchList
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("batches: decode envelope: %w", err)
		}
		for _, k := range wrapperKeys {
			if v, ok := obj[k]; ok {
				return unwrap(v, depth-1)
			}
		}
	}
	return nil, ErrNoBatchList
}

func (r rawBatch) normalize(i int, loc *time.Location) (model.Batch, []Issue) {
	var issues []Issue

	b := model.Batch{
		ID:     scalarString(r.ID),
		Name:   firstNonEmpty(r.Name, r.Title),
		Source: "api",
	}
	b.JoiningURL = firstNonEmpty(r.JoiningURL, r.JoiningURLCamel, r.JoinURL)

	start, err := parseOptional(loc, r.StartDate, r.Start, r.StartDateCamel)
	if err != nil {
		issues = append(issues, Issue{Index: i, ID: b.ID, Field: FieldStart, Err: err})
	}
	b.Start = start

	end, err := parseOptional(loc, r.EndDate, r.End, r.EndDateCamel)
	if err != nil && !errors.Is(err, errMissing) {
		issues = append(issues, Issue{Index: i, ID: b.ID, Field: FieldEnd, Err: err})
	}
	b.End = end

	if r.Course != nil {
		b.Course = &model.Course{
			ID:          scalarString(r.Course.ID),
			Title:       firstNonEmpty(r.Course.Title, r.Course.Name),
			Description: r.Course.Description,
			Image:       r.Course.Image,
			Level:       r.Course.Level,
			Duration:    scalarString(r.Course.Duration),
		}
	}

	b.Tutors = make([]model.Tutor, 0, len(r.Tutors))
	for _, t := range r.Tutors {
		b.Tutors = append(b.Tutors, model.Tutor{
			ID:           scalarString(t.ID),
			Name:         t.Name,
			Email:        t.Email,
			ProfileImage: firstNonEmpty(t.ProfileImage, t.ProfileImageCamel),
		})
	}

	price, err := parsePrice(r.Price)
	if err != nil {
		issues = append(issues, Issue{Index: i, ID: b.ID, Field: FieldPrice, Err: err})
	}
	b.Price = price

	return b, issues
}

var errMissing = errors.New("missing timestamp")

// parseOptional returns the first candidate that parses. If none does, the
// error of the first non-empty candidate is returned, or errMissing.
func parseOptional(loc *time.Location, candidates ...json.RawMessage) (*time.Time, error) {
	var firstErr error
	for _, c := range candidates {
		c = bytes.TrimSpace(c)
		if len(c) == 0 || bytes.Equal(c, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(c, &s); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("timestamp is not a string: %s", c)
			}
			continue
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		t, err := ParseTimestamp(s, loc)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return &t, nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, errMissing
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05Z0700",
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 variants. Values without a zone offset are
// read as wall time in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errMissing
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parsePrice(raw json.RawMessage) (*float64, error) {
	s := scalarString(raw)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return &f, nil
}

// scalarString renders a JSON string or number as a plain string.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
