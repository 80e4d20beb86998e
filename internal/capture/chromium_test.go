package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	got, err := PageURL("http://127.0.0.1:8080/ignored?x=1", 2024, 9)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/calendar?month=9&year=2024", got)

	_, err = PageURL("127.0.0.1:8080", 2024, 9)
	assert.Error(t, err)
}

func TestOptionsNormalize(t *testing.T) {
	o := Options{URL: "http://x/calendar", OutputPath: "out.png"}
	require.NoError(t, o.normalize())
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, DefaultTimeout, o.Timeout)

	o = Options{Width: 640, Height: 480, Timeout: time.Second, URL: "u", OutputPath: "p"}
	require.NoError(t, o.normalize())
	assert.Equal(t, 640, o.Width)
	assert.Equal(t, time.Second, o.Timeout)
}

func TestCalendarPNGValidates(t *testing.T) {
	assert.ErrorIs(t, CalendarPNG(context.Background(), Options{OutputPath: "p"}), ErrNoURL)
	assert.ErrorIs(t, CalendarPNG(context.Background(), Options{URL: "u"}), ErrNoOutput)
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preview.png")
	require.NoError(t, writeAtomic(path, []byte("png")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestBasicAuthHeaders(t *testing.T) {
	assert.Nil(t, Options{}.headers())
	assert.Nil(t, Options{Username: "admin"}.headers())

	h := Options{Username: "admin", Password: "pw"}.headers()
	require.NotNil(t, h)
	assert.Equal(t, "Basic YWRtaW46cHc=", h["Authorization"])
}
