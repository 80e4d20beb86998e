package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"batchcal/internal/calendar"
	"batchcal/internal/ics"
	appLog "batchcal/internal/log"
	"batchcal/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"hhmm": func(t time.Time) string { return t.Format("15:04") },
}).ParseFS(templateFS, "templates/*.tmpl"))

type monthPage struct {
	Title    string
	Weekdays []string
	Weeks    [][]model.CalendarDay
	PrevLink string
	NextLink string
}

func weekdayNames(ws calendar.WeekStart) []string {
	names := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		names = append(names, time.Weekday((i + int(ws)) % 7).String()[:3])
	}
	return names
}

func monthLink(first time.Time) string {
	return "/calendar?year=" + strconv.Itoa(first.Year()) + "&month=" + strconv.Itoa(int(first.Month())-1)
}

// GET /calendar?year=2024&month=9 renders the month grid as HTML. The root
// element carries data-ready="true" so headless capture knows when to shoot.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.loc)
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month())-1)
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, s.loc)

	grid := s.monthGrid(year, month)
	weeks := make([][]model.CalendarDay, 0, calendar.GridCells/7)
	for i := 0; i < len(grid); i += 7 {
		weeks = append(weeks, grid[i:i+7])
	}

	page := monthPage{
		Title:    first.Format("January 2006"),
		Weekdays: weekdayNames(s.builder.WeekStart),
		Weeks:    weeks,
		PrevLink: monthLink(first.AddDate(0, -1, 0)),
		NextLink: monthLink(first.AddDate(0, 1, 0)),
	}

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "month.html.tmpl", page); err != nil {
		appLog.Error("render calendar page failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// GET /calendar.ics exports the current snapshot for calendar apps.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	body := ics.Export(snap.Batches, ics.ExportOptions{Name: "Course batches", Now: s.now()})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="batches.ics"`)
	_, _ = w.Write([]byte(body))
}

// handlePreview serves the last captured PNG; 404 until a capture has run.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.PreviewPath)
}
