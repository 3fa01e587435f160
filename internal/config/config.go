package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. A sibling "<name>.local.yaml" may override any field.

// PortalConfig describes where the academic portal lives and how its login
// form is addressed.
type PortalConfig struct {
	// BaseURL is the scheme+host of the portal, e.g. "https://scolarite.supmeca.fr".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// LoginPath is appended to BaseURL to reach the login form.
	LoginPath string `yaml:"login_path" json:"login_path"`

	UsernameSelector string `yaml:"username_selector" json:"username_selector"`
	PasswordSelector string `yaml:"password_selector" json:"password_selector"`

	// AcceptLanguage is sent with every page request; the portal only shows
	// room numbers in its French locale.
	AcceptLanguage string `yaml:"accept_language" json:"accept_language"`
}

// LoginURL returns the absolute login page address.
func (p PortalConfig) LoginURL() string {
	return strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(p.LoginPath, "/")
}

// BrowserConfig controls the headless Chromium instance.
type BrowserConfig struct {
	// ExecPath overrides Chromium discovery when non-empty.
	ExecPath string `yaml:"exec_path" json:"exec_path"`
	// Headless is nil when unset and then defaults to true.
	Headless *bool `yaml:"headless" json:"headless"`
	Width    int   `yaml:"width" json:"width"`
	Height   int   `yaml:"height" json:"height"`
}

func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// TimeoutsConfig holds every fixed bound and settle delay of the scraping
// pipeline.
type TimeoutsConfig struct {
	NavigationSeconds int `yaml:"navigation_seconds" json:"navigation_seconds"`
	MenuWaitSeconds   int `yaml:"menu_wait_seconds" json:"menu_wait_seconds"`
	InterceptSeconds  int `yaml:"intercept_seconds" json:"intercept_seconds"`
	// Settle delays are pointers so that an explicit 0 survives Normalize
	// while an absent value gets the default.
	SettleMillis      *int `yaml:"settle_ms" json:"settle_ms"`
	MonthSettleMillis *int `yaml:"month_settle_ms" json:"month_settle_ms"`
}

func (t TimeoutsConfig) Navigation() time.Duration {
	return time.Duration(t.NavigationSeconds) * time.Second
}

func (t TimeoutsConfig) MenuWait() time.Duration {
	return time.Duration(t.MenuWaitSeconds) * time.Second
}

func (t TimeoutsConfig) Intercept() time.Duration {
	return time.Duration(t.InterceptSeconds) * time.Second
}

func (t TimeoutsConfig) Settle() time.Duration {
	return millis(t.SettleMillis)
}

func (t TimeoutsConfig) MonthSettle() time.Duration {
	return millis(t.MonthSettleMillis)
}

func millis(ms *int) time.Duration {
	if ms == nil {
		return 0
	}
	return time.Duration(*ms) * time.Millisecond
}

// SessionConfig controls browser session lifetime.
type SessionConfig struct {
	IdleMinutes int `yaml:"idle_minutes" json:"idle_minutes"`
	// Sweep is a cron spec (robfig/cron syntax) for the idle sweep.
	Sweep string `yaml:"sweep" json:"sweep"`
}

func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleMinutes) * time.Minute
}

// CacheConfig selects the schedule cache backend.
type CacheConfig struct {
	// Driver is one of "sqlite", "postgres", "memory" or "none".
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the sqlite file path or the postgres connection string.
	DSN         string  `yaml:"dsn" json:"dsn"`
	MaxAgeHours float64 `yaml:"max_age_hours" json:"max_age_hours"`
	// MemoryTTLHours bounds how long the memory driver keeps a record.
	MemoryTTLHours int `yaml:"memory_ttl_hours" json:"memory_ttl_hours"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone portal timestamps without offset are read in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Portal   PortalConfig   `yaml:"portal" json:"portal"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Timeouts TimeoutsConfig `yaml:"timeouts" json:"timeouts"`
	Session  SessionConfig  `yaml:"session" json:"session"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /api/health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:3001",
		Timezone: "Europe/Paris",
		LogLevel: "INFO",
		Portal: PortalConfig{
			BaseURL:          "https://scolarite.supmeca.fr",
			LoginPath:        "/faces/Login.xhtml",
			UsernameSelector: "#username",
			PasswordSelector: "#password",
			AcceptLanguage:   "fr-FR,fr;q=0.9",
		},
		Browser: BrowserConfig{
			Headless: ptr(true),
			Width:    1920,
			Height:   1080,
		},
		Timeouts: TimeoutsConfig{
			NavigationSeconds: 30,
			MenuWaitSeconds:   15,
			InterceptSeconds:  15,
			SettleMillis:      ptr(5000),
			MonthSettleMillis: ptr(3000),
		},
		Session: SessionConfig{
			IdleMinutes: 30,
			Sweep:       "@every 5m",
		},
		Cache: CacheConfig{
			Driver:         "sqlite",
			DSN:            "/var/lib/aurionplan/cache.db",
			MaxAgeHours:    2,
			MemoryTTLHours: 24,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = def.Portal.BaseURL
	}
	if c.Portal.LoginPath == "" {
		c.Portal.LoginPath = def.Portal.LoginPath
	}
	if c.Portal.UsernameSelector == "" {
		c.Portal.UsernameSelector = def.Portal.UsernameSelector
	}
	if c.Portal.PasswordSelector == "" {
		c.Portal.PasswordSelector = def.Portal.PasswordSelector
	}
	if c.Portal.AcceptLanguage == "" {
		c.Portal.AcceptLanguage = def.Portal.AcceptLanguage
	}

	if c.Browser.Headless == nil {
		c.Browser.Headless = ptr(*def.Browser.Headless)
	}
	if c.Browser.Width <= 0 {
		c.Browser.Width = def.Browser.Width
	}
	if c.Browser.Height <= 0 {
		c.Browser.Height = def.Browser.Height
	}

	if c.Timeouts.NavigationSeconds <= 0 {
		c.Timeouts.NavigationSeconds = def.Timeouts.NavigationSeconds
	}
	if c.Timeouts.MenuWaitSeconds <= 0 {
		c.Timeouts.MenuWaitSeconds = def.Timeouts.MenuWaitSeconds
	}
	if c.Timeouts.InterceptSeconds <= 0 {
		c.Timeouts.InterceptSeconds = def.Timeouts.InterceptSeconds
	}
	if c.Timeouts.SettleMillis == nil || *c.Timeouts.SettleMillis < 0 {
		c.Timeouts.SettleMillis = def.Timeouts.SettleMillis
	}
	if c.Timeouts.MonthSettleMillis == nil || *c.Timeouts.MonthSettleMillis < 0 {
		c.Timeouts.MonthSettleMillis = def.Timeouts.MonthSettleMillis
	}

	if c.Session.IdleMinutes <= 0 {
		c.Session.IdleMinutes = def.Session.IdleMinutes
	}
	if c.Session.Sweep == "" {
		c.Session.Sweep = def.Session.Sweep
	}

	switch c.Cache.Driver {
	case "sqlite", "postgres", "memory", "none":
		// ok
	case "":
		c.Cache.Driver = def.Cache.Driver
	default:
		// Unknown driver; caching is a soft dependency, so disable it
		// rather than refuse to start.
		c.Cache.Driver = "none"
	}
	if c.Cache.Driver == "sqlite" && c.Cache.DSN == "" {
		c.Cache.DSN = def.Cache.DSN
	}
	if c.Cache.MaxAgeHours <= 0 {
		c.Cache.MaxAgeHours = def.Cache.MaxAgeHours
	}
	if c.Cache.MemoryTTLHours <= 0 {
		c.Cache.MemoryTTLHours = def.Cache.MemoryTTLHours
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// LocalPath returns the override file path for a config path:
// "/etc/aurionplan/config.yaml" -> "/etc/aurionplan/config.local.yaml".
func LocalPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// LoadWithOverrides loads path like Load and then merges the sibling
// ".local" file on top of it. Non-zero fields of the local file win, and so
// does any pointer field it sets, even to false or 0.
func LoadWithOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}

	localPath := LocalPath(path)
	data, err := os.ReadFile(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", localPath, err)
	}
	if err := mergo.Merge(cfg, override, mergo.WithOverride, mergo.WithTransformers(setPointers{})); err != nil {
		return nil, fmt.Errorf("config: merge %s: %w", localPath, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// setPointers makes a set pointer field in the override replace the base
// value, including explicit false and 0.
type setPointers struct{}

var (
	boolPtrType = reflect.TypeOf((*bool)(nil))
	intPtrType  = reflect.TypeOf((*int)(nil))
)

func (setPointers) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != boolPtrType && typ != intPtrType {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if !src.IsNil() && dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}

func ptr[T any](v T) *T { return &v }

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
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

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".aurionplan-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("config: load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
