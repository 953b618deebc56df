// Package monitor wires the camera, detector, classifier and presenter into
// the live eye-state loop and owns their lifecycle.
package monitor

import (
	"fmt"
	"os"

	"github.com/teslashibe/go-eyestate/internal/config"
	"github.com/teslashibe/go-eyestate/pkg/artifact"
	"github.com/teslashibe/go-eyestate/pkg/camera"
	"github.com/teslashibe/go-eyestate/pkg/detection"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"github.com/teslashibe/go-eyestate/pkg/status"
)

// Detector backends.
const (
	DetectorHaar = "haar"
	DetectorPigo = "pigo"
)

// Default artifact locations.
const (
	DefaultModel        = "models/eye_state.tflite"
	DefaultCascade      = "models/haarcascade_eye.xml"
	DefaultFaceCascade  = "models/facefinder"
	DefaultPupilCascade = "models/puploc"
	DefaultWindowTitle  = "Eye State Detection"
)

// Config holds all configuration for the monitor.
// Flag parsing is done in cmd/eyestate/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging; DebugFrames adds per-frame lines.
	Debug       bool
	DebugFrames bool
	LogLevel    string

	// Artifact references: local paths, http(s) URLs or s3:// URIs.
	Model        string
	Cascade      string
	FaceCascade  string
	PupilCascade string
	CacheDir     string
	S3           artifact.S3Config

	// Pipeline stages.
	Camera        camera.Config
	Detection     detection.Config
	Detector      string // "haar" or "pigo"
	Normalization eyestate.Normalization
	Threads       int

	// Output.
	Headless    bool   // No window; frames go to the web camera feed
	WindowTitle string
	WebAddr     string // Status server listen address; empty disables it
	FrameEvery  int    // Headless: forward every nth frame to the camera feed

	Status    status.Config
	SessionID string
}

// DefaultConfig returns the desktop defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		Model:         DefaultModel,
		Cascade:       DefaultCascade,
		FaceCascade:   DefaultFaceCascade,
		PupilCascade:  DefaultPupilCascade,
		CacheDir:      config.CacheDir(),
		Camera:        camera.DefaultConfig(),
		Detection:     detection.DefaultConfig(),
		Detector:      DetectorHaar,
		Normalization: eyestate.DefaultNormalization,
		Threads:       1,
		WindowTitle:   DefaultWindowTitle,
		FrameEvery:    1,
		Status:        status.DefaultConfig(),
	}
}

// LoadEnvConfig applies environment overrides to fields still at their
// defaults. Call this after flag parsing so explicit flags win.
func (c *Config) LoadEnvConfig() {
	if c.Model == DefaultModel {
		c.Model = config.String(config.EnvModel, c.Model)
	}
	if c.Cascade == DefaultCascade {
		c.Cascade = config.String(config.EnvCascade, c.Cascade)
	}
	if c.Camera.URI == "" && c.Camera.Device == 0 {
		c.Camera.Device, c.Camera.URI = config.Camera(c.Camera.Device)
	}
	if c.WebAddr == "" {
		c.WebAddr = config.String(config.EnvWeb, "")
	}
	if c.Threads == 1 {
		c.Threads = config.Int(config.EnvThreads, c.Threads)
	}
	if !c.Headless {
		c.Headless = config.Bool(config.EnvHeadless, false)
	}
	if c.LogLevel == "" || c.LogLevel == "info" {
		c.LogLevel = config.String(config.EnvLogLevel, "info")
	}

	if c.S3.Region == "" {
		c.S3.Region = config.String(config.EnvAWSRegion, "")
	}
	if c.S3.Endpoint == "" {
		c.S3.Endpoint = config.String(config.EnvEndpoint, "")
	}
	if c.S3.AccessKey == "" {
		c.S3.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		c.S3.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
}

// Validate checks the configuration. Errors are *eyestate.ConfigError.
func (c *Config) Validate() error {
	if c.Model == "" {
		return &eyestate.ConfigError{Field: "Model", Message: "model path is required"}
	}
	switch c.Detector {
	case DetectorHaar:
		if c.Cascade == "" {
			return &eyestate.ConfigError{Field: "Cascade", Message: "cascade path is required"}
		}
	case DetectorPigo:
		if c.FaceCascade == "" || c.PupilCascade == "" {
			return &eyestate.ConfigError{Field: "FaceCascade", Message: "pigo needs face and pupil cascades"}
		}
	default:
		return &eyestate.ConfigError{
			Field:   "Detector",
			Message: fmt.Sprintf("unknown detector %q (want %s or %s)", c.Detector, DetectorHaar, DetectorPigo),
		}
	}
	if _, err := eyestate.ParseNormalization(string(c.Normalization)); err != nil {
		return err
	}
	if errs := c.Camera.Validate(); len(errs) > 0 {
		return &eyestate.ConfigError{Field: "Camera", Message: errs[0]}
	}
	if errs := c.Detection.Validate(); len(errs) > 0 {
		return &eyestate.ConfigError{Field: "Detection", Message: errs[0]}
	}
	if c.Threads < 1 {
		return &eyestate.ConfigError{Field: "Threads", Message: "threads must be >= 1"}
	}
	if c.Status.Threshold < 0 || c.Status.Threshold > 1 {
		return &eyestate.ConfigError{Field: "Status", Message: "status threshold must be within [0, 1]"}
	}
	return nil
}
