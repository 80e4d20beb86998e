package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchcal/internal/model"
)

func TestBuildMonthGridOctober2024(t *testing.T) {
	grid := BuildMonthGrid(2024, 9, time.UTC)
	require.Len(t, grid, GridCells)

	// Oct 1 2024 is a Tuesday: two September cells lead.
	assert.Equal(t, 29, grid[0].Day)
	assert.Equal(t, 8, grid[0].Month)
	assert.Equal(t, 30, grid[1].Day)
	assert.False(t, grid[0].IsCurrentMonth)
	assert.False(t, grid[1].IsCurrentMonth)

	assert.Equal(t, 1, grid[2].Day)
	assert.True(t, grid[2].IsCurrentMonth)
	assert.Equal(t, 31, grid[32].Day)
	assert.True(t, grid[32].IsCurrentMonth)

	trailing := grid[33:]
	require.Len(t, trailing, 9)
	for i, c := range trailing {
		assert.Equal(t, i+1, c.Day)
		assert.Equal(t, 10, c.Month)
		assert.False(t, c.IsCurrentMonth)
	}
}

func TestBuildMonthGridInvariants(t *testing.T) {
	for year := 1999; year <= 2031; year++ {
		for month := 0; month < 12; month++ {
			grid := BuildMonthGrid(year, month, time.UTC)
			require.Len(t, grid, GridCells, "year=%d month=%d", year, month)

			var current []int
			for _, c := range grid {
				if c.IsCurrentMonth {
					current = append(current, c.Day)
				}
				assert.NotNil(t, c.Events)
			}
			n := DaysInMonth(year, month)
			require.Len(t, current, n, "year=%d month=%d", year, month)
			for i, d := range current {
				assert.Equal(t, i+1, d)
			}

			// Leading cells end on the day before the 1st.
			lead := int(time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC).Weekday())
			if lead > 0 {
				prev := grid[lead-1].Date.AddDate(0, 0, 1)
				assert.Equal(t, 1, prev.Day())
			}
		}
	}
}

func TestBuildMonthGridRollsOver(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     int
		wantYear  int
		wantMonth int
	}{
		{"minus one is previous december", 2024, -1, 2023, 11},
		{"twelve is next january", 2024, 12, 2025, 0},
		{"in range", 2024, 5, 2024, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := BuildMonthGrid(tt.year, tt.month, time.UTC)
			for _, c := range grid {
				if c.IsCurrentMonth {
					assert.Equal(t, tt.wantYear, c.Year)
					assert.Equal(t, tt.wantMonth, c.Month)
				}
			}
		})
	}
}

func TestMondayWeekStart(t *testing.T) {
	b := Builder{Location: time.UTC, WeekStart: WeekStartMonday}
	grid := b.MonthGrid(2024, 9)
	require.Len(t, grid, GridCells)
	// Monday-first: only Sep 30 leads.
	assert.Equal(t, 30, grid[0].Day)
	assert.Equal(t, 1, grid[1].Day)
	assert.Equal(t, time.Monday, grid[0].Date.Weekday())
}

func TestBuildYearGrid(t *testing.T) {
	year := BuildYearGrid(2025, time.UTC)
	for m, grid := range year {
		require.Len(t, grid, GridCells)
		for _, c := range grid {
			if c.IsCurrentMonth {
				assert.Equal(t, m, c.Month)
			}
		}
	}
}

func TestMonthsView(t *testing.T) {
	b := Builder{Location: time.UTC}
	views := b.Months(time.Date(2024, 11, 15, 10, 0, 0, 0, time.UTC), 3)
	require.Len(t, views, 3)
	assert.Equal(t, 2024, views[0].Year)
	assert.Equal(t, 10, views[0].Month)
	assert.Equal(t, 2025, views[2].Year)
	assert.Equal(t, 0, views[2].Month)
	assert.Equal(t, "January", views[2].Name)

	assert.Empty(t, b.Months(time.Now(), 0))
}

func TestPopulateAndMarkToday(t *testing.T) {
	start := time.Date(2024, 10, 27, 11, 30, 0, 0, time.UTC)
	idx := IndexByDate([]model.Batch{{ID: "1", Name: "Go 101", Start: &start}}, IndexOptions{Location: time.UTC})

	grid := Populate(BuildMonthGrid(2024, 9, time.UTC), idx)
	grid = MarkToday(grid, time.Date(2024, 10, 27, 20, 0, 0, 0, time.UTC))

	var hits, today int
	for _, c := range grid {
		if len(c.Events) > 0 {
			hits++
			assert.Equal(t, "2024-10-27", c.Key)
			assert.Equal(t, "Go 101", c.Events[0].Title)
		}
		if c.IsToday {
			today++
			assert.Equal(t, 27, c.Day)
		}
	}
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, today)

	empty := Populate(BuildMonthGrid(2024, 9, time.UTC), nil)
	for _, c := range empty {
		assert.NotNil(t, c.Events)
		assert.Empty(t, c.Events)
	}
}

func TestParseWeekStart(t *testing.T) {
	assert.Equal(t, WeekStartMonday, ParseWeekStart(" Monday "))
	assert.Equal(t, WeekStartSunday, ParseWeekStart("sunday"))
	assert.Equal(t, WeekStartSunday, ParseWeekStart("friday"))
	assert.Equal(t, "monday", WeekStartMonday.String())
}
