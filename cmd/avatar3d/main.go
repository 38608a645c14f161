// Command avatar3d runs the interview avatar: it loads the rig, animates it
// from speech loudness at the configured frame rate and serves a browser
// preview. With -tap it instead prints frames from a running instance.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/normanking/interviewavatar/internal/asset"
	"github.com/normanking/interviewavatar/internal/audio"
	"github.com/normanking/interviewavatar/internal/avatar3d"
	"github.com/normanking/interviewavatar/internal/bus"
	"github.com/normanking/interviewavatar/internal/config"
	"github.com/normanking/interviewavatar/internal/frame"
	"github.com/normanking/interviewavatar/internal/logging"
	"github.com/normanking/interviewavatar/internal/preview"
)

type flags struct {
	configPath string
	model      string
	audioURL   string
	addr       string
	staticDir  string
	logLevel   string
	tap        string
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "config file (default: ./config.yaml or ~/.interviewavatar/config.yaml)")
	flag.StringVar(&f.model, "model", "", "avatar model path, overrides rig.model_path")
	flag.StringVar(&f.audioURL, "audio", "", "clip to play on startup, overrides audio.initial_source")
	flag.StringVar(&f.addr, "addr", "", "preview listen address, overrides preview.addr")
	flag.StringVar(&f.staticDir, "static", "", "directory served at / by the preview server")
	flag.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	flag.StringVar(&f.tap, "tap", "", "print frames from a running preview at this address and exit")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()

	if f.tap != "" {
		if err := runTap(f.tap, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "tap: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "avatar3d: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	store, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	cfg := store.Config()
	if f.model != "" {
		cfg.Rig.ModelPath = f.model
	}
	if f.audioURL != "" {
		cfg.Audio.InitialSource = f.audioURL
	}
	if f.addr != "" {
		cfg.Preview.Addr = f.addr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	logger, err := logging.New(&logging.Config{
		LogDir:  cfg.Log.Dir,
		Level:   logging.LogLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eventBus := bus.NewEventBus()
	clock := frame.SystemClock{}
	ticker := frame.NewTicker(time.Second/time.Duration(cfg.Animation.FrameRate), clock, logger.Component("frame"))

	gate := audio.NewSpeechGate(gateConfig(cfg.Audio), eventBus, logger.Component("vad"))
	fetcher := audio.NewFetcher(cfg.Backend.BaseURL, cfg.Audio.FetchTimeout)
	fetcher.MaxBytes = cfg.Audio.MaxClipBytes
	audioMgr := audio.NewManager(audioOptions(cfg), fetcher, ticker, clock, gate, eventBus, logger.Component("audio"))

	var (
		host avatar3d.Host
		srv  *preview.Server
	)
	if cfg.Preview.Enabled {
		srv = preview.NewServer(preview.Options{
			Addr:         cfg.Preview.Addr,
			FrameEvery:   cfg.Preview.FrameEvery,
			StaticDir:    f.staticDir,
			AllowOrigins: cfg.Preview.AllowOrigins,
			Sessions:     audioMgr,
			EventBus:     eventBus,
			Logger:       logger,
		})
		host = srv
	}

	driver := avatar3d.NewDriver(avatar3d.Options{
		Scheduler: ticker,
		Clock:     clock,
		Level:     audioMgr.Loudness(),
		Host:      host,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		Tuning:    avatar3d.TuningFromConfig(cfg.Animation),
		EventBus:  eventBus,
		Logger:    logger.Component("avatar"),
	})

	loaderOpts := asset.Options{Humanoid: cfg.Rig.Humanoid, Fallback: cfg.Rig.Fallback}
	if srv != nil {
		loaderOpts.OnStatus = srv.SetRigStatus
	}
	if h, _, err := asset.NewLoader(loaderOpts, eventBus, logger).Load(ctx, cfg.Rig.ModelPath); err == nil {
		driver.Bind(h)
	} else {
		logger.Warn("main", "Continuing without a rig", map[string]interface{}{"path": cfg.Rig.ModelPath})
	}

	driver.Start()
	go ticker.Run(ctx)

	if srv != nil {
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("preview", "Preview server stopped", err, nil)
			}
		}()
	}

	err = store.Watch(func(c config.Config) {
		driver.SetTuning(avatar3d.TuningFromConfig(c.Animation))
		gate.UpdateConfig(gateConfig(c.Audio))
		audioMgr.SetOptions(audioOptions(&c))
		logger.SetLevel(logging.LogLevel(c.Log.Level))
		logger.Info("config", "Configuration reloaded", map[string]interface{}{"file": store.File()})
		eventBus.Publish(bus.Event{Type: bus.EventTypeConfigReloaded, Data: map[string]any{"file": store.File()}})
	}, func(err error) {
		logger.Warn("config", "Ignoring invalid configuration", map[string]interface{}{"error": err.Error()})
	})
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		logger.Error("config", "Config watch failed", err, nil)
	}

	if src := cfg.Audio.InitialSource; src != "" {
		go func() {
			if _, err := audioMgr.StartSession(ctx, src); err != nil {
				logger.Warn("audio", "Initial clip not played", map[string]interface{}{"source": src})
			}
		}()
	}

	logger.Info("main", "Avatar running", map[string]interface{}{
		"model":   cfg.Rig.ModelPath,
		"fps":     cfg.Animation.FrameRate,
		"preview": cfg.Preview.Enabled,
	})

	<-ctx.Done()
	logger.Info("main", "Shutting down", nil)

	driver.Stop()
	audioMgr.Stop()
	ticker.Stop()
	if srv != nil {
		if err := srv.Shutdown(); err != nil {
			logger.Warn("preview", "Preview shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func gateConfig(c config.AudioConfig) audio.GateConfig {
	return audio.GateConfig{Open: c.GateOpen, Close: c.GateClose, Hangover: c.GateHangover}
}

func audioOptions(c *config.Config) audio.Options {
	return audio.Options{
		WindowSize: c.Audio.WindowSize,
		Cutoff:     c.Audio.CutoffHz,
		Q:          c.Audio.Q,
		Attack:     c.Animation.Attack,
		Release:    c.Animation.Release,
	}
}
