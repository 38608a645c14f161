// Package config provides configuration management for the avatar driver
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ErrNoConfigFile is returned by Watch when defaults are in use and there is
// no file to watch.
var ErrNoConfigFile = errors.New("no config file in use")

// Config holds all application configuration
type Config struct {
	Animation AnimationConfig `mapstructure:"animation"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Rig       RigConfig       `mapstructure:"rig"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Log       LogConfig       `mapstructure:"log"`
}

// AnimationConfig tunes the procedural animation layer
type AnimationConfig struct {
	Attack            float64       `mapstructure:"attack"`
	Release           float64       `mapstructure:"release"`
	SpeakingThreshold float64       `mapstructure:"speaking_threshold"`
	MouthGain         float64       `mapstructure:"mouth_gain"`
	BlinkInterval     time.Duration `mapstructure:"blink_interval"` // shortest gap between blinks
	BlinkJitter       time.Duration `mapstructure:"blink_jitter"`   // uniform extra gap
	BlinkDuration     time.Duration `mapstructure:"blink_duration"`
	PoseBase          float64       `mapstructure:"pose_base"`
	PoseGain          float64       `mapstructure:"pose_gain"`
	PoseMaxExtra      float64       `mapstructure:"pose_max_extra"`
	RelaxArms         bool          `mapstructure:"relax_arms"`
	FrameRate         int           `mapstructure:"frame_rate"`
}

// AudioConfig configures clip decoding and analysis
type AudioConfig struct {
	WindowSize    int           `mapstructure:"window_size"`
	CutoffHz      float64       `mapstructure:"cutoff_hz"`
	Q             float64       `mapstructure:"q"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	GateOpen      float64       `mapstructure:"gate_open"`  // loudness that starts speech
	GateClose     float64       `mapstructure:"gate_close"` // loudness below which speech may end
	GateHangover  time.Duration `mapstructure:"gate_hangover"`
	MaxClipBytes  int64         `mapstructure:"max_clip_bytes"`
	InitialSource string        `mapstructure:"initial_source"`
}

// RigConfig configures the rig asset
type RigConfig struct {
	ModelPath string `mapstructure:"model_path"`
	Humanoid  bool   `mapstructure:"humanoid"` // read VRM humanoid extensions
	Fallback  bool   `mapstructure:"fallback"` // sway the root when no humanoid is found
}

// PreviewConfig configures the browser preview server
type PreviewConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Addr         string `mapstructure:"addr"`
	FrameEvery   int    `mapstructure:"frame_every"`   // broadcast every Nth frame
	AllowOrigins string `mapstructure:"allow_origins"` // CORS allow list; empty means the preview's own origin
}

// BackendConfig locates the interview backend that serves speech clips
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// LogConfig configures logging
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Animation: AnimationConfig{
			Attack:            0.6,
			Release:           0.15,
			SpeakingThreshold: 0.02,
			MouthGain:         1.8,
			BlinkInterval:     2500 * time.Millisecond,
			BlinkJitter:       3000 * time.Millisecond,
			BlinkDuration:     200 * time.Millisecond,
			PoseBase:          0.4,
			PoseGain:          1.2,
			PoseMaxExtra:      0.8,
			RelaxArms:         true,
			FrameRate:         60,
		},
		Audio: AudioConfig{
			WindowSize:   1024,
			CutoffHz:     1400,
			Q:            0.7071,
			FetchTimeout: 15 * time.Second,
			GateOpen:     0.05,
			GateClose:    0.02,
			GateHangover: 300 * time.Millisecond,
			MaxClipBytes: 64 << 20,
		},
		Rig: RigConfig{
			ModelPath: "assets/avatar.vrm",
			Humanoid:  true,
			Fallback:  true,
		},
		Preview: PreviewConfig{
			Enabled:    true,
			Addr:       "127.0.0.1:8686",
			FrameEvery: 2,
		},
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8000",
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Validate rejects values the animation layer cannot work with
func (c *Config) Validate() error {
	a := c.Animation
	if a.Attack <= 0 || a.Attack > 1 {
		return fmt.Errorf("animation.attack must be in (0,1], got %v", a.Attack)
	}
	if a.Release <= 0 || a.Release > 1 {
		return fmt.Errorf("animation.release must be in (0,1], got %v", a.Release)
	}
	if a.BlinkDuration <= 0 {
		return fmt.Errorf("animation.blink_duration must be positive, got %v", a.BlinkDuration)
	}
	if a.BlinkInterval < 0 || a.BlinkJitter < 0 {
		return fmt.Errorf("animation blink interval and jitter must not be negative")
	}
	if a.FrameRate <= 0 {
		return fmt.Errorf("animation.frame_rate must be positive, got %d", a.FrameRate)
	}
	if c.Audio.WindowSize <= 0 {
		return fmt.Errorf("audio.window_size must be positive, got %d", c.Audio.WindowSize)
	}
	if c.Audio.CutoffHz <= 0 {
		return fmt.Errorf("audio.cutoff_hz must be positive, got %v", c.Audio.CutoffHz)
	}
	if c.Audio.GateClose > c.Audio.GateOpen {
		return fmt.Errorf("audio.gate_close (%v) above gate_open (%v)", c.Audio.GateClose, c.Audio.GateOpen)
	}
	return nil
}

// Store owns a viper instance and the last successfully decoded Config
type Store struct {
	v *viper.Viper

	mu  sync.RWMutex
	cfg *Config
}

// Load reads configuration from path, or from config.yaml in the working
// directory and ~/.interviewavatar when path is empty. A missing file is not
// an error; defaults and AVATAR_* environment variables still apply.
func Load(path string) (*Store, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("AVATAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	s := &Store{v: v}
	cfg, err := s.decode()
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return s, nil
}

func (s *Store) decode() (*Config, error) {
	cfg := DefaultConfig()
	if err := s.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Config returns a copy of the current configuration
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// File returns the config file in use, or "" when running on defaults
func (s *Store) File() string {
	return s.v.ConfigFileUsed()
}

// Watch reloads the file whenever it changes on disk and hands each valid
// result to fn. Invalid edits are passed to onErr and the previous
// configuration stays current.
func (s *Store) Watch(fn func(Config), onErr func(error)) error {
	if s.v.ConfigFileUsed() == "" {
		return ErrNoConfigFile
	}

	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := s.decode()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		s.mu.Lock()
		s.cfg = cfg
		s.mu.Unlock()
		if fn != nil {
			fn(*cfg)
		}
	})
	s.v.WatchConfig()
	return nil
}

// Save writes cfg as YAML to path
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	v := viper.New()
	setDefaults(v, cfg)
	v.SetConfigType("yaml")
	return v.WriteConfigAs(path)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".interviewavatar"), nil
}

// setDefaults registers every key so environment overrides reach nested
// fields during Unmarshal.
func setDefaults(v *viper.Viper, c *Config) {
	a := c.Animation
	v.SetDefault("animation.attack", a.Attack)
	v.SetDefault("animation.release", a.Release)
	v.SetDefault("animation.speaking_threshold", a.SpeakingThreshold)
	v.SetDefault("animation.mouth_gain", a.MouthGain)
	v.SetDefault("animation.blink_interval", a.BlinkInterval)
	v.SetDefault("animation.blink_jitter", a.BlinkJitter)
	v.SetDefault("animation.blink_duration", a.BlinkDuration)
	v.SetDefault("animation.pose_base", a.PoseBase)
	v.SetDefault("animation.pose_gain", a.PoseGain)
	v.SetDefault("animation.pose_max_extra", a.PoseMaxExtra)
	v.SetDefault("animation.relax_arms", a.RelaxArms)
	v.SetDefault("animation.frame_rate", a.FrameRate)

	au := c.Audio
	v.SetDefault("audio.window_size", au.WindowSize)
	v.SetDefault("audio.cutoff_hz", au.CutoffHz)
	v.SetDefault("audio.q", au.Q)
	v.SetDefault("audio.fetch_timeout", au.FetchTimeout)
	v.SetDefault("audio.gate_open", au.GateOpen)
	v.SetDefault("audio.gate_close", au.GateClose)
	v.SetDefault("audio.gate_hangover", au.GateHangover)
	v.SetDefault("audio.max_clip_bytes", au.MaxClipBytes)
	v.SetDefault("audio.initial_source", au.InitialSource)

	v.SetDefault("rig.model_path", c.Rig.ModelPath)
	v.SetDefault("rig.humanoid", c.Rig.Humanoid)
	v.SetDefault("rig.fallback", c.Rig.Fallback)

	v.SetDefault("preview.enabled", c.Preview.Enabled)
	v.SetDefault("preview.addr", c.Preview.Addr)
	v.SetDefault("preview.frame_every", c.Preview.FrameEvery)
	v.SetDefault("preview.allow_origins", c.Preview.AllowOrigins)

	v.SetDefault("backend.base_url", c.Backend.BaseURL)

	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.dir", c.Log.Dir)
	v.SetDefault("log.console", c.Log.Console)
}
