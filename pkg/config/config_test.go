package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harrisonrobin/touchgrass/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFile)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.75, cfg.DailyGoal)
	assert.Equal(t, 1000.0, cfg.YearlyGoal)
	assert.Equal(t, "file", cfg.Storage)
	assert.Equal(t, RemoteDrive, cfg.Remote)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data"), cfg.ResolvedDataDir())
	assert.Equal(t, stats.DefaultGoals(), cfg.Goals())
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", configFile)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.DailyGoal = 3
	cfg.Storage = "sqlite"
	require.NoError(t, Save(cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.DailyGoal)
	assert.Equal(t, "sqlite", got.Storage)
	assert.Equal(t, 1000.0, got.YearlyGoal)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFile)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, configFile)
	require.NoError(t, os.WriteFile(filepath.Join(dir, envFile),
		[]byte("TOUCHGRASS_DAILY_GOAL=4\nTOUCHGRASS_REMOTE=none\n"), 0600))
	t.Setenv("TOUCHGRASS_REMOTE", "folder")
	t.Setenv("TOUCHGRASS_REMOTE_DIR", "/mnt/share")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.DailyGoal)
	// process environment wins over .env
	assert.Equal(t, RemoteFolder, cfg.Remote)
	assert.Equal(t, "/mnt/share", cfg.RemoteDir)
}

func TestEnvOverrideInvalidNumber(t *testing.T) {
	t.Setenv("TOUCHGRASS_YEARLY_GOAL", "lots")
	_, err := Load(filepath.Join(t.TempDir(), configFile))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOUCHGRASS_YEARLY_GOAL")
}

func TestSetGet(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Set("daily_goal", "1.5"))
	v, err := cfg.Get("daily_goal")
	require.NoError(t, err)
	assert.Equal(t, "1.5", v)

	assert.Error(t, cfg.Set("daily_goal", "x"))
	assert.Error(t, cfg.Set("colour", "blue"))
	_, err = cfg.Get("colour")
	assert.Error(t, err)

	for _, key := range Keys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero daily goal", func(c *Config) { c.DailyGoal = 0 }, "daily goal"},
		{"negative yearly goal", func(c *Config) { c.YearlyGoal = -1 }, "yearly goal"},
		{"bad storage", func(c *Config) { c.Storage = "postgres" }, "storage backend"},
		{"bad remote", func(c *Config) { c.Remote = "s3" }, "invalid remote"},
		{"folder without dir", func(c *Config) { c.Remote = RemoteFolder }, "remote_dir"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Default()
	cfg.DailyGoal = -1
	cfg.Storage = "nope"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily goal")
	assert.Contains(t, err.Error(), "storage backend")
}

func TestLoadFileIgnoresEnv(t *testing.T) {
	t.Setenv("TOUCHGRASS_DAILY_GOAL", "9")
	path := filepath.Join(t.TempDir(), configFile)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2.75, cfg.DailyGoal)

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9.0, cfg.DailyGoal)
}
