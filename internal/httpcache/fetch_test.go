package httpcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRevalidatesWithETag(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := New(t.TempDir(), nil)
	h := http.Header{"X-Test": []string{"yes"}}

	res, err := f.Get(context.Background(), srv.URL+"/feed", h)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, "payload", string(res.Body))

	res, err = f.Get(context.Background(), srv.URL+"/feed", h)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "payload", string(res.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetFallsBackOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("good"))
	}))
	defer srv.Close()

	f := New(t.TempDir(), nil)
	_, err := f.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "good", string(res.Body))
}

func TestGetFallsBackOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("cached"))
	}))
	dir := t.TempDir()
	f := New(dir, nil)
	u := srv.URL + "/x"
	_, err := f.Get(context.Background(), u, nil)
	require.NoError(t, err)
	srv.Close()

	res, err := f.Get(context.Background(), u, nil)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "cached", string(res.Body))
}

func TestGetErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/304":
			w.WriteHeader(http.StatusNotModified)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f := New(t.TempDir(), nil)

	_, err := f.Get(context.Background(), srv.URL+"/304", nil)
	assert.ErrorIs(t, err, ErrNotModifiedWithoutCache)

	_, err = f.Get(context.Background(), srv.URL+"/500", nil)
	assert.Error(t, err)

	_, err = f.Get(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://api.example.com/...(redacted)", Redact("https://api.example.com/v1/batches?token=x"))
	assert.Equal(t, "(redacted)", Redact("not a url"))
}
