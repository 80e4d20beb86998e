package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"batchcal/internal/batches"
	"batchcal/internal/calendar"
	"batchcal/internal/capture"
	"batchcal/internal/config"
	"batchcal/internal/httpcache"
	"batchcal/internal/ics"
	appLog "batchcal/internal/log"
	"batchcal/internal/metrics"
	"batchcal/internal/schedule"
	"batchcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	once       bool
	capture    bool
	debug      bool
}

func main() {
	flags := parseFlags()

	if err := config.LoadDotEnv(flags.envPath); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envPath)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.Log.Level = "debug"
	}
	appLog.Configure(conf.Log.Level, conf.Log.Format)
	defer appLog.Sync()

	appLog.Info("batchcal starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"api", conf.APIBaseURL != "",
		"ics_count", len(conf.ICS),
		"once", flags.once,
		"capture", flags.capture,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	m := metrics.New()
	refresher := newRefresher(conf, m)

	switch {
	case flags.once:
		err = runOnce(ctx, conf, refresher)
	case flags.capture:
		err = runCapture(ctx, conf, refresher, m)
	default:
		err = serve(ctx, conf, refresher, m)
	}
	if err != nil {
		appLog.Error("batchcal exited with error", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Info("batchcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath(), "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Optional dotenv file with BATCHCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh once, print the current month grid as JSON and exit")
	flag.BoolVar(&cfg.capture, "capture", false, "Refresh once, write a PNG of the calendar page and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()
	return cfg
}

// defaultConfigPath prefers ./config.yaml when present.
func defaultConfigPath() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return "/etc/batchcal/config.yaml"
}

func newRefresher(conf *config.Config, m *metrics.Metrics) *schedule.Refresher {
	loc := conf.Location()

	opts := schedule.Options{
		Fetcher:  httpcache.New(filepath.Join(conf.CacheDir, "ics"), nil),
		Metrics:  m,
		Location: loc,
		Horizon:  time.Duration(conf.ICSHorizonDays) * 24 * time.Hour,
	}
	if conf.APIBaseURL != "" {
		opts.API = batches.NewClient(batches.ClientConfig{
			BaseURL:  conf.APIBaseURL,
			Token:    conf.APIToken,
			CacheDir: filepath.Join(conf.CacheDir, "api"),
			Location: loc,
		})
	}
	for i, src := range conf.ICS {
		id := src.ID
		if id == "" {
			id = src.Name
		}
		if id == "" {
			id = "ics" + strconv.Itoa(i+1)
		}
		opts.Feeds = append(opts.Feeds, ics.Source{ID: id, URL: src.URL})
	}
	if opts.API == nil && len(opts.Feeds) == 0 {
		appLog.Warn("no batch sources configured; the calendar will stay empty")
	}
	return schedule.NewRefresher(opts)
}

// runOnce refreshes and prints the populated grid for the current month.
func runOnce(ctx context.Context, conf *config.Config, r *schedule.Refresher) error {
	if err := r.Refresh(ctx); err != nil {
		return err
	}
	loc := conf.Location()
	now := time.Now().In(loc)

	b := calendar.Builder{Location: loc, WeekStart: calendar.ParseWeekStart(conf.WeekStart)}
	grid := b.MonthGrid(now.Year(), int(now.Month())-1)

	snap := r.Store().Snapshot()
	idx := calendar.IndexByDate(snap.Batches, calendar.IndexOptions{
		Location: loc,
		Palette:  calendar.NewPalette(conf.LevelColors, conf.Highlight),
	})
	calendar.Populate(grid, idx)
	calendar.MarkToday(grid, now)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(calendar.MonthView{
		Year:  now.Year(),
		Month: int(now.Month()) - 1,
		Name:  now.Month().String(),
		Days:  grid,
	})
}

// runCapture serves the calendar just long enough to screenshot it.
func runCapture(ctx context.Context, conf *config.Config, r *schedule.Refresher, m *metrics.Metrics) error {
	if err := r.Refresh(ctx); err != nil {
		appLog.Warn("refresh failed; capturing the cached snapshot", "err", err)
	}

	srvCtx, stop := context.WithCancel(ctx)
	srv := web.NewServer(web.Options{Config: conf, Store: r.Store(), Metrics: m, Refresher: r})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(srvCtx) }()

	if err := waitHealthy(ctx, "http://"+conf.Listen+"/health"); err != nil {
		stop()
		return errors.Join(err, <-errCh)
	}

	now := time.Now().In(conf.Location())
	pageURL, err := capture.PageURL("http://"+conf.Listen, now.Year(), int(now.Month())-1)
	if err == nil {
		opts := capture.Options{URL: pageURL, OutputPath: conf.PreviewPath}
		if conf.BasicAuth != nil {
			opts.Username = conf.BasicAuth.Username
			opts.Password = conf.BasicAuth.Password
		}
		err = capture.CalendarPNG(ctx, opts)
	}

	stop()
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return errors.Join(err, serveErr)
	}
	return err
}

func waitHealthy(ctx context.Context, url string) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(5 * time.Second)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return errors.New("server did not become healthy")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func serve(ctx context.Context, conf *config.Config, r *schedule.Refresher, m *metrics.Metrics) error {
	if err := r.Start(ctx, conf.RefreshCron); err != nil {
		return err
	}
	defer r.Stop()

	srv := web.NewServer(web.Options{Config: conf, Store: r.Store(), Metrics: m, Refresher: r})
	err := srv.ListenAndServe(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
