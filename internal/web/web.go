package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"batchcal/internal/calendar"
	"batchcal/internal/config"
	appLog "batchcal/internal/log"
	"batchcal/internal/metrics"
	"batchcal/internal/schedule"
)

// Refresher triggers an out-of-band batch refresh.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Options wires a Server.
type Options struct {
	Config    *config.Config
	Store     *schedule.Store
	Metrics   *metrics.Metrics
	Refresher Refresher // optional; enables POST /api/refresh
	Now       func() time.Time
}

// Server serves calendar data derived from the current batch snapshot.
type Server struct {
	cfg       *config.Config
	store     *schedule.Store
	metrics   *metrics.Metrics
	refresher Refresher
	now       func() time.Time
	loc       *time.Location
	builder   calendar.Builder
	palette   *calendar.Palette
	mux       *http.ServeMux

	// The date index is rebuilt only when the snapshot changes.
	indexMu    sync.Mutex
	indexCache *indexCache
}

type indexCache struct {
	generation uint64
	idx        *calendar.DateIndex
}

func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	store := opts.Store
	if store == nil {
		store = schedule.NewStore()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location()

	s := &Server{
		cfg:       cfg,
		store:     store,
		metrics:   m,
		refresher: opts.Refresher,
		now:       now,
		loc:       loc,
		builder:   calendar.Builder{Location: loc, WeekStart: calendar.ParseWeekStart(cfg.WeekStart)},
		palette:   calendar.NewPalette(cfg.LevelColors, cfg.Highlight),
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.HandleFunc("/api/batches", s.handleBatches)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/calendar/month", s.handleMonth)
	s.mux.HandleFunc("/api/calendar/year", s.handleYear)
	s.mux.HandleFunc("/api/calendar/months", s.handleMonths)
	s.mux.HandleFunc("/api/calendar/day", s.handleDay)
	s.mux.HandleFunc("/api/calendar/active-months", s.handleActiveMonths)
	s.mux.HandleFunc("/api/slider", s.handleSlider)

	s.mux.HandleFunc("/calendar", s.handleCalendarPage)
	s.mux.HandleFunc("/calendar.ics", s.handleICS)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects every path except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="batchcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	if err := s.refresher.Refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"batches":      len(snap.Batches),
		"refreshed_at": snap.RefreshedAt,
	})
}

// index returns the date index for the current snapshot.
func (s *Server) index() (*calendar.DateIndex, schedule.Snapshot) {
	snap := s.store.Snapshot()

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if c := s.indexCache; c != nil && c.generation == snap.Generation {
		return c.idx, snap
	}

	idx := calendar.IndexByDate(snap.Batches, calendar.IndexOptions{Location: s.loc, Palette: s.palette})
	if len(idx.Skipped) > 0 {
		appLog.Warn("batches without a usable start were left off the calendar", "count", len(idx.Skipped), "ids", idx.Skipped)
	}
	s.indexCache = &indexCache{generation: snap.Generation, idx: idx}
	return idx, snap
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
