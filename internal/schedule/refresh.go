package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"batchcal/internal/batches"
	"batchcal/internal/httpcache"
	"batchcal/internal/ics"
	appLog "batchcal/internal/log"
	"batchcal/internal/metrics"
	"batchcal/internal/model"
)

const (
	apiSourceID    = "api"
	refreshTimeout = 2 * time.Minute
)

// BatchSource is the platform API; *batches.Client implements it.
type BatchSource interface {
	Batches(ctx context.Context) ([]model.Batch, []batches.Issue, error)
}

// Options configures a Refresher.
type Options struct {
	API     BatchSource // nil disables the API source
	Feeds   []ics.Source
	Fetcher *httpcache.Fetcher // used for Feeds
	Store   *Store
	Metrics *metrics.Metrics

	Location *time.Location
	// Horizon bounds recurring ICS events after now. Zero means 180 days.
	Horizon time.Duration
	Now     func() time.Time
}

// Refresher pulls all sources into the Store. A source that fails keeps its
// batches from the previous successful run.
type Refresher struct {
	opts Options

	mu   sync.Mutex
	last map[string][]model.Batch

	cron *cron.Cron
}

func NewRefresher(opts Options) *Refresher {
	if opts.Store == nil {
		opts.Store = NewStore()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Horizon <= 0 {
		opts.Horizon = 180 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fetcher == nil {
		opts.Fetcher = httpcache.New("", nil)
	}
	return &Refresher{
		opts: opts,
		last: make(map[string][]model.Batch),
	}
}

func (r *Refresher) Store() *Store {
	return r.opts.Store
}

// Refresh runs one pass over all sources. It returns an error only when
// every configured source failed; the previous snapshot is kept in that case.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	defer func() {
		r.opts.Metrics.RefreshSeconds.Observe(time.Since(started).Seconds())
	}()

	var (
		errs     []error
		sources  int
		issueCnt int
	)

	if r.opts.API != nil {
		sources++
		list, issues, err := r.opts.API.Batches(ctx)
		if err != nil {
			appLog.Error("refresh: api source failed", err)
			errs = append(errs, fmt.Errorf("api: %w", err))
		} else {
			r.last[apiSourceID] = list
			issueCnt += len(issues)
			for _, is := range issues {
				r.opts.Metrics.DataIssues.WithLabelValues(is.Field).Inc()
			}
		}
	}

	now := r.opts.Now()
	expand := ics.ExpandConfig{
		Location:   r.opts.Location,
		RangeStart: now.AddDate(0, -1, 0),
		RangeEnd:   now.Add(r.opts.Horizon),
	}
	for _, src := range r.opts.Feeds {
		sources++
		list, err := r.fetchFeed(ctx, src, expand)
		if err != nil {
			appLog.Error("refresh: ics source failed", err, "id", src.ID)
			errs = append(errs, fmt.Errorf("ics %s: %w", src.ID, err))
			continue
		}
		r.last[src.ID] = list
	}

	if sources > 0 && len(errs) == sources {
		r.opts.Metrics.Refreshes.WithLabelValues("failed").Inc()
		return errors.Join(errs...)
	}

	merged := r.merge()
	r.opts.Store.Set(merged, issueCnt, now)

	result := "ok"
	if len(errs) > 0 {
		result = "partial"
	}
	r.opts.Metrics.Refreshes.WithLabelValues(result).Inc()
	r.opts.Metrics.LastRefresh.Set(float64(now.Unix()))

	appLog.Info("refresh completed",
		"batches", len(merged),
		"sources", sources,
		"failed_sources", len(errs),
		"issues", issueCnt,
	)
	return nil
}

func (r *Refresher) fetchFeed(ctx context.Context, src ics.Source, cfg ics.ExpandConfig) ([]model.Batch, error) {
	res, err := r.opts.Fetcher.Get(ctx, src.URL, nil)
	if err != nil {
		return nil, err
	}
	return ics.ParseFeed(src, res.Body, cfg)
}

// merge orders API batches first, then feeds in configured order.
func (r *Refresher) merge() []model.Batch {
	order := make([]string, 0, len(r.opts.Feeds)+1)
	if r.opts.API != nil {
		order = append(order, apiSourceID)
	}
	for _, f := range r.opts.Feeds {
		order = append(order, f.ID)
	}

	out := make([]model.Batch, 0)
	for _, id := range order {
		list := r.last[id]
		r.opts.Metrics.Batches.WithLabelValues(id).Set(float64(len(list)))
		out = append(out, list...)
	}
	return out
}

// Start runs an initial refresh and then schedules spec (5-field cron) in
// the configured location. Overlapping runs are skipped.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	if err := r.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}

	c := cron.New(
		cron.WithLocation(r.opts.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		if err := r.Refresh(jobCtx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule: invalid refresh spec %q: %w", spec, err)
	}

	r.cron = c
	c.Start()
	appLog.Info("refresh scheduler started", "spec", spec, "timezone", r.opts.Location.String())
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
