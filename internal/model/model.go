package model

import "time"

// Course is the course a batch belongs to, as returned by the platform API.
type Course struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Level       string `json:"level,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// Tutor is a person assigned to teach a batch.
type Tutor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// Batch is a scheduled offering of a course. It is an immutable snapshot
// normalized at the API boundary; optional fields are explicit pointers.
type Batch struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Start / End are nil when the source value was missing or unparsable.
	Start *time.Time `json:"start_date"`
	End   *time.Time `json:"end_date"`

	Course     *Course  `json:"course,omitempty"`
	Tutors     []Tutor  `json:"tutors"`
	JoiningURL string   `json:"joining_url,omitempty"`
	Price      *float64 `json:"price,omitempty"`

	// Source identifies where the batch came from ("api" or an ICS source ID).
	Source string `json:"source,omitempty"`
}

// Title is the display title: batch name, falling back to the course title.
func (b Batch) Title() string {
	if b.Name != "" {
		return b.Name
	}
	if b.Course != nil {
		return b.Course.Title
	}
	return ""
}

// TutorNames lists tutor names in their original order, skipping blanks.
func (b Batch) TutorNames() []string {
	names := make([]string, 0, len(b.Tutors))
	for _, t := range b.Tutors {
		if t.Name == "" {
			continue
		}
		names = append(names, t.Name)
	}
	return names
}

// EventSummary is the rendering projection of a single Batch.
type EventSummary struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end,omitempty"`
	TutorNames []string   `json:"tutor_names"`
	Color      string     `json:"color"`
}

// CalendarDay is one cell of a 42-cell month grid.
type CalendarDay struct {
	Day int `json:"day"`
	// Month is zero-based (0 = January).
	Month          int            `json:"month"`
	Year           int            `json:"year"`
	IsCurrentMonth bool           `json:"is_current_month"`
	Date           time.Time      `json:"date"`
	Key            string         `json:"key"`
	IsToday        bool           `json:"is_today"`
	Events         []EventSummary `json:"events"`
}

// SlideWindowState is a snapshot of a slide window controller.
type SlideWindowState struct {
	CurrentIndex  int     `json:"current_index"`
	SlidesPerView int     `json:"slides_per_view"`
	TotalSlides   int     `json:"total_slides"`
	OffsetPercent float64 `json:"offset_percent"`
}
