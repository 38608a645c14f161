package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.6, cfg.Animation.Attack)
	assert.Equal(t, 0.15, cfg.Animation.Release)
	assert.Equal(t, 1024, cfg.Audio.WindowSize)
	assert.Equal(t, 1400.0, cfg.Audio.CutoffHz)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
animation:
  attack: 0.5
  blink_duration: 250ms
rig:
  model_path: /models/interviewer.vrm
  humanoid: false
`)

	s, err := Load(path)
	require.NoError(t, err)
	cfg := s.Config()

	assert.Equal(t, path, s.File())
	assert.Equal(t, 0.5, cfg.Animation.Attack)
	assert.Equal(t, 250*time.Millisecond, cfg.Animation.BlinkDuration)
	assert.Equal(t, 0.15, cfg.Animation.Release)
	assert.Equal(t, "/models/interviewer.vrm", cfg.Rig.ModelPath)
	assert.False(t, cfg.Rig.Humanoid)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "log:\n  level: debug\n")
	t.Setenv("AVATAR_BACKEND_BASE_URL", "http://interview.local")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://interview.local", s.Config().Backend.BaseURL)
	assert.Equal(t, "debug", s.Config().Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "animation:\n  attack: 1.5\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "animation.attack")
}

func TestValidateGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audio.GateClose = 0.5
	assert.Error(t, cfg.Validate())
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Preview.Addr = "0.0.0.0:9000"
	cfg.Animation.BlinkJitter = 2 * time.Second
	require.NoError(t, Save(cfg, path))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", s.Config().Preview.Addr)
	assert.Equal(t, 2*time.Second, s.Config().Animation.BlinkJitter)
}

func TestWatchWithoutFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	s, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, s.File())
	assert.ErrorIs(t, s.Watch(nil, nil), ErrNoConfigFile)
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "animation:\n  mouth_gain: 1.8\n")

	s, err := Load(path)
	require.NoError(t, err)

	reloaded := make(chan Config, 4)
	require.NoError(t, s.Watch(func(c Config) { reloaded <- c }, nil))

	writeFile(t, path, "animation:\n  mouth_gain: 2.2\n")

	// An editor may surface a truncated write first; wait for the final one.
	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case c := <-reloaded:
			done = c.Animation.MouthGain == 2.2
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
	assert.Equal(t, 2.2, s.Config().Animation.MouthGain)
}
