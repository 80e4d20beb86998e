package web

import (
	"net/http"
	"strings"
	"time"

	"batchcal/internal/calendar"
	"batchcal/internal/model"
	"batchcal/internal/slider"
)

const maxMonthsPerView = 24

type batchesResponse struct {
	Batches     []model.Batch `json:"batches"`
	RefreshedAt time.Time     `json:"refreshed_at"`
	Issues      int           `json:"issues"`
}

type monthResponse struct {
	Year      int                 `json:"year"`
	Month     int                 `json:"month"`
	Name      string              `json:"name"`
	WeekStart string              `json:"week_start"`
	Timezone  string              `json:"timezone"`
	Days      []model.CalendarDay `json:"days"`
}

type yearResponse struct {
	Year     int                  `json:"year"`
	Timezone string               `json:"timezone"`
	Months   []calendar.MonthView `json:"months"`
}

type dayResponse struct {
	Date   string               `json:"date"`
	Key    string               `json:"key"`
	Events []model.EventSummary `json:"events"`
}

type activeMonthsResponse struct {
	Months []string `json:"months"` // YYYY-MM
}

type sliderResponse struct {
	model.SlideWindowState
	Visible []int `json:"visible"`
}

func (s *Server) handleBatches(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, batchesResponse{
		Batches:     snap.Batches,
		RefreshedAt: snap.RefreshedAt,
		Issues:      snap.Issues,
	})
}

// monthGrid builds a populated grid for a zero-based month.
func (s *Server) monthGrid(year, month int) []model.CalendarDay {
	idx, _ := s.index()
	grid := s.builder.MonthGrid(year, month)
	calendar.Populate(grid, idx)
	return calendar.MarkToday(grid, s.now())
}

// GET /api/calendar/month?year=2024&month=9 (month is zero-based; defaults to now)
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.loc)
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month())-1)

	// Normalize so the response echoes the month actually shown.
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, s.loc)

	writeJSON(w, http.StatusOK, monthResponse{
		Year:      first.Year(),
		Month:     int(first.Month()) - 1,
		Name:      first.Month().String(),
		WeekStart: s.builder.WeekStart.String(),
		Timezone:  s.loc.String(),
		Days:      s.monthGrid(year, month),
	})
}

// GET /api/calendar/year?year=2024
func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	year := parseIntDefault(r.URL.Query().Get("year"), s.now().In(s.loc).Year())
	idx, _ := s.index()

	grids := s.builder.YearGrid(year)
	months := make([]calendar.MonthView, 0, 12)
	for m, grid := range grids {
		calendar.Populate(grid, idx)
		calendar.MarkToday(grid, s.now())
		months = append(months, calendar.MonthView{
			Year:  year,
			Month: m,
			Name:  time.Month(m + 1).String(),
			Days:  grid,
		})
	}
	writeJSON(w, http.StatusOK, yearResponse{Year: year, Timezone: s.loc.String(), Months: months})
}

// GET /api/calendar/months?from=2024-10&count=3
// With from=data the view starts at the earliest month that has batches.
func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := parseIntDefault(q.Get("count"), 3)
	if count < 1 {
		count = 1
	}
	if count > maxMonthsPerView {
		count = maxMonthsPerView
	}

	idx, snap := s.index()

	from := s.now().In(s.loc)
	switch v := q.Get("from"); v {
	case "":
	case "data":
		if months := calendar.MonthsWithData(snap.Batches, s.loc); len(months) > 0 {
			from = months[0]
		}
	default:
		t, err := time.ParseInLocation("2006-01", v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM or \"data\"")
			return
		}
		from = t
	}

	views := s.builder.Months(from, count)
	for i := range views {
		calendar.Populate(views[i].Days, idx)
		calendar.MarkToday(views[i].Days, s.now())
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /api/calendar/day?date=2024-10-27
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("date")
	d, err := time.ParseInLocation("2006-01-02", v, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	idx, _ := s.index()
	writeJSON(w, http.StatusOK, dayResponse{
		Date:   d.Format("2006-01-02"),
		Key:    calendar.DateKey(d, s.loc),
		Events: idx.EventsForDate(d),
	})
}

func (s *Server) handleActiveMonths(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	months := calendar.MonthsWithData(snap.Batches, s.loc)
	out := make([]string, 0, len(months))
	for _, m := range months {
		out = append(out, m.Format("2006-01"))
	}
	writeJSON(w, http.StatusOK, activeMonthsResponse{Months: out})
}

// GET /api/slider?total=5&width=1280&index=2&action=next
//
// Stateless: the caller sends its current index and gets the next state back.
// action is one of next, prev, goto (with to=N) or empty for a resize/clamp.
func (s *Server) handleSlider(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	total := parseIntDefault(q.Get("total"), -1)
	if total < 0 {
		writeError(w, http.StatusBadRequest, "total is required")
		return
	}
	width := parseIntDefault(q.Get("width"), s.cfg.Breakpoints.Medium)

	c := slider.NewForWidth(total, width, s.cfg.Breakpoints)
	c.GoTo(parseIntDefault(q.Get("index"), 0))

	switch strings.ToLower(q.Get("action")) {
	case "next":
		c.Next()
	case "prev":
		c.Prev()
	case "goto":
		c.GoTo(parseIntDefault(q.Get("to"), c.Index()))
	case "":
	default:
		writeError(w, http.StatusBadRequest, "action must be next, prev or goto")
		return
	}

	writeJSON(w, http.StatusOK, sliderResponse{SlideWindowState: c.State(), Visible: c.Visible()})
}
