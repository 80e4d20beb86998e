package schedule

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchcal/internal/batches"
	"batchcal/internal/httpcache"
	"batchcal/internal/ics"
	"batchcal/internal/metrics"
	"batchcal/internal/model"
)

type fakeAPI struct {
	list   []model.Batch
	issues []batches.Issue
	err    error
	calls  atomic.Int32
}

func (f *fakeAPI) Batches(ctx context.Context) ([]model.Batch, []batches.Issue, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.list, f.issues, nil
}

const tutorFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:feed-1
DTSTAMP:20240901T000000Z
SUMMARY:Office hours
DTSTART:20241005T090000Z
DTEND:20241005T100000Z
END:VEVENT
END:VCALENDAR
`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.ReplaceAll(tutorFeed, "\n", "\r\n")))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fixedNow() time.Time {
	return time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
}

func TestRefreshMergesSources(t *testing.T) {
	start := time.Date(2024, 10, 27, 11, 30, 0, 0, time.UTC)
	api := &fakeAPI{
		list:   []model.Batch{{ID: "1", Name: "Go", Start: &start, Source: "api"}, {ID: "2", Source: "api"}},
		issues: []batches.Issue{{Index: 1, ID: "2", Field: "start_date", Err: errors.New("missing")}},
	}
	srv := feedServer(t)
	m := metrics.New()

	r := NewRefresher(Options{
		API:      api,
		Feeds:    []ics.Source{{ID: "tutors", URL: srv.URL + "/tutors.ics"}},
		Fetcher:  httpcache.New(t.TempDir(), nil),
		Metrics:  m,
		Location: time.UTC,
		Now:      fixedNow,
	})
	require.NoError(t, r.Refresh(context.Background()))

	snap := r.Store().Snapshot()
	require.Len(t, snap.Batches, 3)
	assert.Equal(t, "1", snap.Batches[0].ID)
	assert.Equal(t, "feed-1", snap.Batches[2].ID)
	assert.Equal(t, "tutors", snap.Batches[2].Source)
	assert.Equal(t, 1, snap.Issues)
	assert.Equal(t, fixedNow(), snap.RefreshedAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DataIssues.WithLabelValues("start_date")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Batches.WithLabelValues("api")))
}

func TestRefreshKeepsLastGoodSource(t *testing.T) {
	start := time.Date(2024, 10, 27, 11, 30, 0, 0, time.UTC)
	api := &fakeAPI{list: []model.Batch{{ID: "1", Start: &start}}}
	srv := feedServer(t)
	m := metrics.New()

	r := NewRefresher(Options{
		API:      api,
		Feeds:    []ics.Source{{ID: "tutors", URL: srv.URL}},
		Fetcher:  httpcache.New(t.TempDir(), nil),
		Metrics:  m,
		Location: time.UTC,
		Now:      fixedNow,
	})
	require.NoError(t, r.Refresh(context.Background()))

	api.err = errors.New("api down")
	require.NoError(t, r.Refresh(context.Background()))

	snap := r.Store().Snapshot()
	assert.Len(t, snap.Batches, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("partial")))
}

func TestRefreshAllFailedKeepsSnapshot(t *testing.T) {
	api := &fakeAPI{err: errors.New("api down")}
	store := NewStore()
	prev := []model.Batch{{ID: "old"}}
	store.Set(prev, 0, fixedNow())
	m := metrics.New()

	r := NewRefresher(Options{API: api, Store: store, Metrics: m, Location: time.UTC})
	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
	assert.Equal(t, prev, store.Snapshot().Batches)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("failed")))
}

func TestStartAndStop(t *testing.T) {
	api := &fakeAPI{}
	r := NewRefresher(Options{API: api, Location: time.UTC})

	require.NoError(t, r.Start(context.Background(), "*/5 * * * *"))
	assert.Equal(t, int32(1), api.calls.Load())
	r.Stop()

	bad := NewRefresher(Options{API: &fakeAPI{}, Location: time.UTC})
	assert.Error(t, bad.Start(context.Background(), "not a cron"))
}

func TestStoreDefaults(t *testing.T) {
	s := NewStore()
	assert.NotNil(t, s.Snapshot().Batches)
	s.Set(nil, 0, time.Time{})
	assert.NotNil(t, s.Snapshot().Batches)
}

func TestStoreGenerationAdvances(t *testing.T) {
	s := NewStore()
	assert.Equal(t, uint64(0), s.Snapshot().Generation)

	at := fixedNow()
	s.Set([]model.Batch{{ID: "a"}}, 0, at)
	first := s.Snapshot().Generation
	s.Set([]model.Batch{{ID: "b"}}, 0, at)
	assert.Greater(t, s.Snapshot().Generation, first)
}
