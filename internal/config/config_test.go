package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	store, err := Load(WithPath(filepath.Join(dir, "config.toml")))
	require.NoError(t, err)
	defer store.Close()

	cfg := store.Config()
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5*time.Second, cfg.Plugins.Timeout())
}

func TestLayersOverrideInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[logging]
level = "debug"
format = "json"

[data]
group_buckets = 8
`)
	writeFile(t, filepath.Join(dir, ".env"), "MANIVAULT_LOGGING_FORMAT=console\nMANIVAULT_DATA_GROUP_BUCKETS=6\n")
	t.Setenv("MANIVAULT_DATA_GROUP_BUCKETS", "4")
	t.Setenv("MANIVAULT_PLUGINS_PATHS", "/a, /b")
	t.Setenv("MANIVAULT_LOGGING_DEVELOPMENT", "true")

	store, err := Load(WithPath(path))
	require.NoError(t, err)
	defer store.Close()

	cfg := store.Config()
	assert.Equal(t, "debug", cfg.Logging.Level, "file over defaults")
	assert.Equal(t, "console", cfg.Logging.Format, "dotenv over file")
	assert.Equal(t, 4, cfg.Data.GroupBuckets, "environment over dotenv")
	assert.Equal(t, []string{"/a", "/b"}, cfg.Plugins.Paths)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "cascade", cfg.Data.RemovalPolicy)
}

func TestInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		path string
	}{
		{name: "level", file: "[logging]\nlevel = \"loud\"\n", path: "logging.level"},
		{name: "policy", env: map[string]string{"MANIVAULT_DATA_REMOVAL_POLICY": "orphan"}, path: "data.removal_policy"},
		{name: "env type", env: map[string]string{"MANIVAULT_DATA_GROUP_BUCKETS": "many"}, path: "data.group_buckets"},
		{name: "key", file: "[data]\nsession_key = \"abcd\"\n", path: "data.session_key"},
		{name: "timeout", file: "[plugins]\nscript_timeout = \"soon\"\n", path: "plugins.script_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			if tt.file != "" {
				writeFile(t, path, tt.file)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(WithPath(path))
			require.ErrorIs(t, err, ErrValidationFailed)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.path, verr.Path)
		})
	}
}

func TestMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[logging\n")

	_, err := Load(WithPath(path))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, path, perr.Path)
}

func TestSessionKey(t *testing.T) {
	d := DataConfig{SessionKey: "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"}
	key, err := d.Key()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	key, err = DataConfig{}.Key()
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestReloadNotifiesObservers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[logging]\nlevel = \"info\"\n")

	store, err := Load(WithPath(path), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer store.Close()

	var calls int
	var oldLevel, newLevel string
	cancel := store.OnChange(func(old, new *Config) {
		calls++
		oldLevel, newLevel = old.Logging.Level, new.Logging.Level
	})

	require.NoError(t, store.Reload())
	assert.Zero(t, calls, "unchanged reload is silent")

	writeFile(t, path, "[logging]\nlevel = \"warn\"\n")
	require.NoError(t, store.Reload())
	assert.Equal(t, 1, calls)
	assert.Equal(t, "info", oldLevel)
	assert.Equal(t, "warn", newLevel)

	writeFile(t, path, "[logging]\nlevel = \"nope\"\n")
	require.Error(t, store.Reload())
	assert.Equal(t, "warn", store.Config().Logging.Level, "failed reload keeps values")

	cancel()
	writeFile(t, path, "[logging]\nlevel = \"error\"\n")
	require.NoError(t, store.Reload())
	assert.Equal(t, 1, calls)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[server]\nfeed_buffer = 16\n")

	store, err := Load(WithPath(path), WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer store.Close()

	var seen atomic.Int64
	store.OnChange(func(_, new *Config) {
		seen.Store(int64(new.Server.FeedBuffer))
	})
	require.NoError(t, store.Watch())

	writeFile(t, path, "[server]\nfeed_buffer = 32\n")
	require.Eventually(t, func() bool { return seen.Load() == 32 }, 5*time.Second, 20*time.Millisecond)
}

func TestClosedStore(t *testing.T) {
	store, err := Load(WithPath(filepath.Join(t.TempDir(), "config.toml")))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Watch(), ErrStoreClosed)
	assert.NotNil(t, store.Config())
}
