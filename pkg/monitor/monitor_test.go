package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/teslashibe/go-eyestate/internal/config"
	"github.com/teslashibe/go-eyestate/internal/log"
	"github.com/teslashibe/go-eyestate/pkg/annotate"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig invalid: %v", err)
	}
	if cfg.Detection.ScaleFactor != 1.3 || cfg.Detection.MinNeighbors != 5 {
		t.Errorf("detection defaults = %v/%d", cfg.Detection.ScaleFactor, cfg.Detection.MinNeighbors)
	}
	if cfg.Normalization != eyestate.Passthrough {
		t.Errorf("normalization = %q, want passthrough", cfg.Normalization)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no model", func(c *Config) { c.Model = "" }},
		{"no cascade", func(c *Config) { c.Cascade = "" }},
		{"unknown detector", func(c *Config) { c.Detector = "yolo" }},
		{"pigo without pupil cascade", func(c *Config) { c.Detector = DetectorPigo; c.PupilCascade = "" }},
		{"bad normalization", func(c *Config) { c.Normalization = "zscore" }},
		{"bad camera", func(c *Config) { c.Camera.Width = 1 }},
		{"bad detection", func(c *Config) { c.Detection.ScaleFactor = 1 }},
		{"zero threads", func(c *Config) { c.Threads = 0 }},
		{"threshold above 1", func(c *Config) { c.Status.Threshold = 2 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *eyestate.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want ConfigError", err)
			}
			if eyestate.ExitCode(err) != eyestate.ExitConfig {
				t.Errorf("exit code = %d, want %d", eyestate.ExitCode(err), eyestate.ExitConfig)
			}
		})
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv(config.EnvModel, "s3://models/eye_state.tflite")
	t.Setenv(config.EnvCamera, "rtsp://cam/stream")
	t.Setenv(config.EnvWeb, ":9000")
	t.Setenv(config.EnvAWSRegion, "eu-west-1")
	t.Setenv(config.EnvEndpoint, "http://127.0.0.1:9000")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()

	if cfg.Model != "s3://models/eye_state.tflite" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Camera.URI != "rtsp://cam/stream" {
		t.Errorf("Camera.URI = %q", cfg.Camera.URI)
	}
	if cfg.WebAddr != ":9000" {
		t.Errorf("WebAddr = %q", cfg.WebAddr)
	}
	if cfg.S3.Region != "eu-west-1" || cfg.S3.Endpoint != "http://127.0.0.1:9000" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
}

func TestLoadEnvConfig_ThreadsAndHeadless(t *testing.T) {
	t.Setenv(config.EnvThreads, "4")
	t.Setenv(config.EnvHeadless, "true")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()
	if cfg.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Threads)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want true from env")
	}

	t.Setenv(config.EnvThreads, "many")
	cfg = DefaultConfig()
	cfg.Threads = 2
	cfg.LoadEnvConfig()
	if cfg.Threads != 2 {
		t.Errorf("Threads = %d, explicit value should win", cfg.Threads)
	}
}

func TestLoadEnvConfig_FlagsWin(t *testing.T) {
	t.Setenv(config.EnvModel, "env.tflite")

	cfg := DefaultConfig()
	cfg.Model = "flag.tflite"
	cfg.LoadEnvConfig()

	if cfg.Model != "flag.tflite" {
		t.Errorf("Model = %q, explicit value should win over env", cfg.Model)
	}
}

func TestNew_AssignsSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(app.Config().SessionID) != 36 {
		t.Errorf("SessionID = %q, want a uuid", app.Config().SessionID)
	}

	cfg.SessionID = "fixed"
	app, _ = New(cfg)
	if app.Config().SessionID != "fixed" {
		t.Errorf("SessionID = %q, want fixed", app.Config().SessionID)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector = "none"
	if _, err := New(cfg); eyestate.ExitCode(err) != eyestate.ExitConfig {
		t.Errorf("New error = %v, want config error", err)
	}
}

func TestInit_ModelFailureBeforeCamera(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.Model = "/nonexistent/eye_state.tflite"
	cfg.Camera.URI = "/nonexistent/clip.mp4"

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Shutdown()

	err = app.Init(context.Background())
	if !errors.Is(err, eyestate.ErrModelLoad) {
		t.Fatalf("Init error = %v, want ErrModelLoad", err)
	}
	var stageErr *eyestate.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "classifier" {
		t.Errorf("stage = %v, want classifier", err)
	}
	if app.source != nil || app.detector != nil {
		t.Error("detector and camera must not be acquired after a model failure")
	}
	if eyestate.ExitCode(err) != eyestate.ExitModel {
		t.Errorf("exit code = %d, want %d", eyestate.ExitCode(err), eyestate.ExitModel)
	}

	// Shutdown after partial Init is safe and idempotent.
	app.Shutdown()
	app.Shutdown()
}

func TestRun_BeforeInit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.Run(context.Background()); err == nil {
		t.Error("Run before Init should fail")
	}
}

func TestNew_AppliesEnvLogLevel(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "debug")

	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if app.Config().LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug from env", app.Config().LogLevel)
	}
}

func TestShutdown_StopsHeadlessPresenter(t *testing.T) {
	headless := annotate.NewHeadless(nil, 1)
	app := &App{
		headless:  headless,
		presenter: headless,
		logger:    log.Component("monitor"),
	}

	app.Shutdown()
	if !headless.PollQuit() {
		t.Error("headless presenter should report quit after Shutdown")
	}
}
