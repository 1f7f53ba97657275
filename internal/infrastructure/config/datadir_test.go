package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDataDir(t *testing.T) {
	t.Run("default under home", func(t *testing.T) {
		ResetDataDir()
		t.Setenv(EnvDataDir, "")

		homeDir, err := os.UserHomeDir()
		assert.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, DefaultDataDirName), GetDataDir())
	})

	t.Run("env override is cached", func(t *testing.T) {
		ResetDataDir()
		t.Setenv(EnvDataDir, "/srv/coursebot")
		assert.Equal(t, "/srv/coursebot", GetDataDir())

		os.Setenv(EnvDataDir, "/elsewhere")
		assert.Equal(t, "/srv/coursebot", GetDataDir(), "首次解析后应返回缓存值")
	})

	t.Run("reset re-reads env", func(t *testing.T) {
		ResetDataDir()
		t.Setenv(EnvDataDir, "/data/b")
		assert.Equal(t, "/data/b", GetDataDir())
	})
	ResetDataDir()
}

func TestNewConfig_PathsFollowDataDir(t *testing.T) {
	dir := t.TempDir()
	ResetDataDir()
	t.Setenv(EnvDataDir, dir)
	defer ResetDataDir()

	cfg := NewConfig()
	assert.Equal(t, filepath.Join(dir, "coursebot.db"), cfg.Database.Path)
	assert.Equal(t, filepath.Join(dir, ".usage_key"), cfg.Usage.KeyFile)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), DefaultConfigPath())
}
