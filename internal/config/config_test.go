package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 0.0.0.0:9000\ncache:\n  driver: redis\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Listen)
	require.Equal(t, "none", cfg.Cache.Driver)
	require.Equal(t, 2.0, cfg.Cache.MaxAgeHours)
	require.Equal(t, 30, cfg.Timeouts.NavigationSeconds)
	require.Equal(t, "@every 5m", cfg.Session.Sweep)
	require.Equal(t, "https://scolarite.supmeca.fr/faces/Login.xhtml", cfg.Portal.LoginURL())
	require.Equal(t, 5*time.Second, cfg.Timeouts.Settle())
	require.Equal(t, 3*time.Second, cfg.Timeouts.MonthSettle())
	require.True(t, cfg.Browser.IsHeadless())
}

func TestLoadKeepsExplicitZeroes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "browser:\n  headless: false\ntimeouts:\n  settle_ms: 0\n  month_settle_ms: -5\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Browser.IsHeadless())
	require.Zero(t, cfg.Timeouts.Settle())
	require.Equal(t, 3*time.Second, cfg.Timeouts.MonthSettle())
}

func TestLoadWithOverridesAppliesFalseAndZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	local := "browser:\n  headless: false\ntimeouts:\n  settle_ms: 0\n"
	require.NoError(t, os.WriteFile(LocalPath(path), []byte(local), 0o600))

	cfg, err := LoadWithOverrides(path)
	require.NoError(t, err)
	require.False(t, cfg.Browser.IsHeadless())
	require.Zero(t, cfg.Timeouts.Settle())
	require.Equal(t, 3*time.Second, cfg.Timeouts.MonthSettle())
	require.Equal(t, 1920, cfg.Browser.Width)
}

func TestLoadWithOverridesMergesLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	local := "cache:\n  driver: postgres\n  dsn: postgres://planning@db/planning\nbasic_auth:\n  username: ops\n  password: secret\n"
	require.NoError(t, os.WriteFile(LocalPath(path), []byte(local), 0o600))

	cfg, err := LoadWithOverrides(path)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Cache.Driver)
	require.Equal(t, "postgres://planning@db/planning", cfg.Cache.DSN)
	require.Equal(t, 2.0, cfg.Cache.MaxAgeHours)
	require.Equal(t, "127.0.0.1:3001", cfg.Listen)
	require.NotNil(t, cfg.BasicAuth)
	require.Equal(t, "ops", cfg.BasicAuth.Username)
	require.True(t, cfg.Browser.IsHeadless())
	require.Equal(t, 5*time.Second, cfg.Timeouts.Settle())
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "/etc/aurionplan/config.local.yaml", LocalPath("/etc/aurionplan/config.yaml"))
}
