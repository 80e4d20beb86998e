package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"batchcal/internal/slider"
)

var ErrEmptyPath = errors.New("config path is empty")

// Environment variables that override file values. Secrets usually live here
// (or in a .env file) rather than in the YAML.
const (
	EnvAPIToken   = "BATCHCAL_API_TOKEN"
	EnvAPIBaseURL = "BATCHCAL_API_BASE_URL"
	EnvListen     = "BATCHCAL_LISTEN"
)

// ICSConfig describes an ICS feed whose events are imported as batches.
type ICSConfig struct {
	URL  string `yaml:"url" json:"url" validate:"required,url"`
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=console json"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the IANA zone that decides which calendar day a batch start falls on.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start" validate:"oneof=sunday monday"`

	// RefreshCron is a standard 5-field cron spec for batch refresh.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"required"`

	// APIBaseURL is the platform API root; batches are read from {APIBaseURL}/batches.
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url" validate:"omitempty,url"`
	APIToken   string `yaml:"api_token,omitempty" json:"-"`

	// ICS feeds imported alongside API batches.
	ICS []ICSConfig `yaml:"ics" json:"ics" validate:"dive"`
	// ICSHorizonDays bounds recurring ICS events expanded into batches.
	ICSHorizonDays int `yaml:"ics_horizon_days" json:"ics_horizon_days" validate:"gte=1,lte=3650"`

	// LevelColors maps course level to a color tag.
	LevelColors map[string]string `yaml:"level_colors" json:"level_colors"`
	// Highlight keywords color matching batch titles red.
	Highlight []string `yaml:"highlight" json:"highlight"`

	// Breakpoints for slides-per-view.
	Breakpoints slider.Breakpoints `yaml:"breakpoints" json:"breakpoints"`

	CacheDir    string `yaml:"cache_dir" json:"cache_dir"`
	PreviewPath string `yaml:"preview_path" json:"preview_path"`

	Log LogConfig `yaml:"log" json:"log"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "Local",
		WeekStart:      "sunday",
		RefreshCron:    "*/15 * * * *",
		ICS:            []ICSConfig{},
		ICSHorizonDays: 180,
		LevelColors: map[string]string{
			"beginner":     "green",
			"intermediate": "blue",
			"advanced":     "purple",
		},
		Highlight:   []string{},
		Breakpoints: slider.DefaultBreakpoints,
		CacheDir:    "./var/cache",
		PreviewPath: "./var/preview.png",
		Log:         LogConfig{Level: "info", Format: "console"},
	}
}

// Normalize fills missing/zero values with defaults so partially-filled
// configs behave like complete ones.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart != "monday" {
		// Unknown values fall back to sunday to avoid surprising layouts.
		c.WeekStart = "sunday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.ICSHorizonDays <= 0 {
		c.ICSHorizonDays = def.ICSHorizonDays
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.LevelColors == nil {
		c.LevelColors = def.LevelColors
	}
	if c.Highlight == nil {
		c.Highlight = []string{}
	}
	if c.Breakpoints.Small <= 0 || c.Breakpoints.Medium <= c.Breakpoints.Small {
		c.Breakpoints = def.Breakpoints
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.PreviewPath == "" {
		c.PreviewPath = def.PreviewPath
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

var validate = validator.New()

// Validate checks field constraints, the cron spec and the timezone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ApplyEnv overrides fields from the process environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the environment
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there with 0600
// permissions and returned. Otherwise the YAML is read, normalized and
// validated. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".batchcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
