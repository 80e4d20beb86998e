package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.RefreshCron, again.RefreshCron)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
timezone: UTC
week_start: Monday
api_base_url: https://api.example.com/v1
breakpoints:
  small: 500
  medium: 300
ics:
  - url: https://cal.example.com/tutors.ics
    id: tutors
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, "*/15 * * * *", cfg.RefreshCron)
	assert.Equal(t, 640, cfg.Breakpoints.Small, "inverted breakpoints reset to defaults")
	assert.Equal(t, "green", cfg.LevelColors["beginner"])
	assert.Equal(t, "UTC", cfg.Location().String())
	require.Len(t, cfg.ICS, 1)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad cron", "refresh: \"every minute\"\n"},
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"bad api url", "api_base_url: not-a-url\n"},
		{"bad ics url", "ics:\n  - id: x\n"},
		{"bad log format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestApplyEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(EnvAPIToken+"=from-dotenv\n"), 0o600))

	t.Setenv(EnvAPIToken, "")
	require.NoError(t, os.Unsetenv(EnvAPIToken))
	t.Setenv(EnvAPIBaseURL, "https://override.example.com")

	require.NoError(t, LoadDotEnv(envPath, filepath.Join(dir, "missing.env")))

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "from-dotenv", cfg.APIToken)
	assert.Equal(t, "https://override.example.com", cfg.APIBaseURL)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Highlight = []string{"bootcamp"}
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "pw"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"bootcamp"}, loaded.Highlight)
	require.NotNil(t, loaded.BasicAuth)
	assert.Equal(t, "admin", loaded.BasicAuth.Username)
}
