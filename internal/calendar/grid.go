// Package calendar builds fixed-size month grids and groups batches into
// per-day event buckets.
package calendar

import (
	"strings"
	"time"

	"batchcal/internal/model"
)

// GridCells is the number of cells in every month grid: 6 weeks of 7 days,
// so the grid height never changes between months.
const GridCells = 42

// WeekStart selects the weekday shown in the first grid column.
type WeekStart int

const (
	WeekStartSunday WeekStart = iota
	WeekStartMonday
)

// ParseWeekStart maps "monday" to WeekStartMonday; anything else is Sunday.
func ParseWeekStart(s string) WeekStart {
	if strings.EqualFold(strings.TrimSpace(s), "monday") {
		return WeekStartMonday
	}
	return WeekStartSunday
}

func (w WeekStart) String() string {
	if w == WeekStartMonday {
		return "monday"
	}
	return "sunday"
}

// Builder produces month grids in a fixed location.
// The zero value builds Sunday-first grids in time.Local.
type Builder struct {
	Location  *time.Location
	WeekStart WeekStart
}

// MonthView is one month of a multi-month view.
type MonthView struct {
	Year int `json:"year"`
	// Month is zero-based.
	Month int                 `json:"month"`
	Name  string              `json:"name"`
	Days  []model.CalendarDay `json:"days"`
}

// BuildMonthGrid returns the Sunday-first grid for a zero-based month index in loc.
func BuildMonthGrid(year, monthIndex int, loc *time.Location) []model.CalendarDay {
	return Builder{Location: loc}.MonthGrid(year, monthIndex)
}

// BuildYearGrid returns the twelve Sunday-first grids of year in loc.
func BuildYearGrid(year int, loc *time.Location) [12][]model.CalendarDay {
	return Builder{Location: loc}.YearGrid(year)
}

func (b Builder) location() *time.Location {
	if b.Location == nil {
		return time.Local
	}
	return b.Location
}

// MonthGrid builds the 42-cell grid for the given zero-based month. Out of
// range months roll over: -1 is December of year-1 and 12 is January of year+1.
func (b Builder) MonthGrid(year, monthIndex int) []model.CalendarDay {
	loc := b.location()

	// time.Date normalizes month overflow in both directions.
	first := time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, loc)
	lead := (int(first.Weekday()) - int(b.WeekStart) + 7) % 7

	fy, fm, _ := first.Date()
	cells := make([]model.CalendarDay, 0, GridCells)
	for i := 0; i < GridCells; i++ {
		d := time.Date(fy, fm, 1-lead+i, 0, 0, 0, 0, loc)
		y, m, day := d.Date()
		cells = append(cells, model.CalendarDay{
			Day:            day,
			Month:          int(m) - 1,
			Year:           y,
			IsCurrentMonth: y == fy && m == fm,
			Date:           d,
			Key:            DateKey(d, loc),
			Events:         []model.EventSummary{},
		})
	}
	return cells
}

// YearGrid builds the grids for months 0..11.
func (b Builder) YearGrid(year int) [12][]model.CalendarDay {
	var out [12][]model.CalendarDay
	for m := 0; m < 12; m++ {
		out[m] = b.MonthGrid(year, m)
	}
	return out
}

// Months builds count consecutive month grids starting at from's month.
func (b Builder) Months(from time.Time, count int) []MonthView {
	if count <= 0 {
		return []MonthView{}
	}
	loc := b.location()
	from = from.In(loc)

	views := make([]MonthView, 0, count)
	for i := 0; i < count; i++ {
		first := time.Date(from.Year(), from.Month()+time.Month(i), 1, 0, 0, 0, 0, loc)
		views = append(views, MonthView{
			Year:  first.Year(),
			Month: int(first.Month()) - 1,
			Name:  first.Month().String(),
			Days:  b.MonthGrid(first.Year(), int(first.Month())-1),
		})
	}
	return views
}

// Populate fills each cell's events from idx and returns grid.
// A nil index leaves every cell with an empty list.
func Populate(grid []model.CalendarDay, idx *DateIndex) []model.CalendarDay {
	for i := range grid {
		if idx == nil {
			grid[i].Events = []model.EventSummary{}
			continue
		}
		grid[i].Events = idx.EventsForKey(grid[i].Key)
	}
	return grid
}

// MarkToday sets IsToday on the cell whose local date matches now.
func MarkToday(grid []model.CalendarDay, now time.Time) []model.CalendarDay {
	for i := range grid {
		grid[i].IsToday = grid[i].Key == DateKey(now, grid[i].Date.Location())
	}
	return grid
}

// DaysInMonth returns the number of days in a zero-based month, with rollover.
func DaysInMonth(year, monthIndex int) int {
	return time.Date(year, time.Month(monthIndex+2), 0, 0, 0, 0, 0, time.UTC).Day()
}
