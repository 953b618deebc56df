// Package camera provides the frame sources for the eye-state loop:
// a local OpenCV capture device or file, and an ffmpeg-decoded stream.
package camera

import "fmt"

// Backend names.
const (
	BackendOpenCV = "opencv"
	BackendFFmpeg = "ffmpeg"
)

// Config holds frame source settings.
type Config struct {
	// Device is the capture device index (used when URI is empty).
	Device int `json:"device"`

	// URI is a video file or stream URL. Overrides Device when set.
	URI string `json:"uri"`

	// Backend selects the decoder: "opencv" or "ffmpeg".
	// The ffmpeg backend requires URI.
	Backend string `json:"backend"`

	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS

	// Mirror flips frames horizontally so the preview behaves like a mirror.
	Mirror bool `json:"mirror"`
}

// Limits for requested capture sizes.
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns VGA capture from the first device.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Backend:   BackendOpenCV,
		Width:     640,
		Height:    480,
		Framerate: 30,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must be >= 0")
	}

	switch c.Backend {
	case "", BackendOpenCV:
	case BackendFFmpeg:
		if c.URI == "" {
			errors = append(errors, "ffmpeg backend requires a uri")
		}
	default:
		errors = append(errors, fmt.Sprintf("backend must be %s or %s", BackendOpenCV, BackendFFmpeg))
	}

	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between %d and %d", MinWidth, MaxWidth))
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between %d and %d", MinHeight, MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}

	return errors
}

// Describe returns a short human-readable name for the source.
func (c *Config) Describe() string {
	if c.URI != "" {
		return c.URI
	}
	return fmt.Sprintf("device %d", c.Device)
}
