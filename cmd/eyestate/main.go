// eyestate - real-time eye open/closed monitor
// Detects eyes in webcam frames, classifies each with a TFLite model and
// shows the annotated stream until q is pressed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/teslashibe/go-eyestate/internal/log"
	"github.com/teslashibe/go-eyestate/pkg/camera"
	"github.com/teslashibe/go-eyestate/pkg/detection"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"github.com/teslashibe/go-eyestate/pkg/monitor"
)

func init() {
	// HighGUI windows must be driven from the main OS thread.
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

func run() int {
	app, err := monitor.New(parseFlags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		return eyestate.ExitCode(err)
	}
	log.Init(app.Config().LogLevel)
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Initialization failed: %v\n", err)
		switch {
		case eyestate.ExitCode(err) == eyestate.ExitDevice:
			fmt.Fprintln(os.Stderr, "   Could not open webcam. Check the device index or -source path.")
		case eyestate.ExitCode(err) == eyestate.ExitModel:
			fmt.Fprintln(os.Stderr, "   Check -model and -cascade, or run eyestate-fetch first.")
		}
		return eyestate.ExitCode(err)
	}

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Runtime error: %v\n", err)
		return eyestate.ExitCode(err)
	}

	stats := app.Stats()
	fmt.Printf("📊 %d frames, %d predictions, %d skipped regions (%s)\n",
		stats.Frames, stats.Predictions, stats.Skipped, stats.Reason)
	return eyestate.ExitOK
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() monitor.Config {
	cfg := monitor.DefaultConfig()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Log every frame (implies -debug)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	model := flag.String("model", cfg.Model, "TFLite model: path, http(s) URL or s3://bucket/key")
	cascade := flag.String("cascade", cfg.Cascade, "Haar eye cascade: path, URL or s3 URI")
	faceCascade := flag.String("face-cascade", cfg.FaceCascade, "pigo face cascade (with -detector pigo)")
	pupilCascade := flag.String("pupil-cascade", cfg.PupilCascade, "pigo pupil cascade (with -detector pigo)")
	cacheDir := flag.String("cache", cfg.CacheDir, "Directory for downloaded artifacts")

	device := flag.Int("camera", cfg.Camera.Device, "Camera device index")
	source := flag.String("source", "", "Video file or stream URL instead of a camera")
	backend := flag.String("backend", cfg.Camera.Backend, "Frame decoder: opencv or ffmpeg")
	preset := flag.String("preset", camera.PresetDefault, "Capture preset: default, qvga, 720p, lowfps")
	mirror := flag.Bool("mirror", false, "Flip frames horizontally")

	detector := flag.String("detector", cfg.Detector, "Eye detector: haar or pigo")
	mobile := flag.Bool("mobile", false, "Use the small-frame detector tuning (scale 1.1, 3 neighbours, equalized)")
	norm := flag.String("normalize", string(cfg.Normalization), "Input normalization: passthrough, unit, symmetric")
	threads := flag.Int("threads", cfg.Threads, "Interpreter threads")

	headless := flag.Bool("headless", false, "Run without a window")
	web := flag.String("web", "", "Status server address, e.g. :8090")
	every := flag.Int("frame-every", cfg.FrameEvery, "Headless: send every nth frame to /ws/camera")
	threshold := flag.Float64("status-threshold", float64(cfg.Status.Threshold), "Smoothed session status threshold")

	flag.Parse()

	cfg.Debug = *debug || *debugFrames
	cfg.DebugFrames = *debugFrames
	cfg.LogLevel = *logLevel
	if cfg.Debug && *logLevel == "info" {
		cfg.LogLevel = "debug"
	}

	cfg.Model, cfg.Cascade = *model, *cascade
	cfg.FaceCascade, cfg.PupilCascade = *faceCascade, *pupilCascade
	cfg.CacheDir = *cacheDir

	if p := camera.GetPreset(*preset); p != nil {
		cfg.Camera = *p
	} else {
		fmt.Fprintf(os.Stderr, "⚠️  Unknown preset %q, using default\n", *preset)
	}
	cfg.Camera.Device, cfg.Camera.URI = *device, *source
	cfg.Camera.Backend, cfg.Camera.Mirror = *backend, *mirror

	if *mobile {
		cfg.Detection = detection.MobileConfig()
	}
	cfg.Detector = *detector
	cfg.Normalization = eyestate.Normalization(*norm)
	cfg.Threads = *threads

	cfg.Headless, cfg.WebAddr, cfg.FrameEvery = *headless, *web, *every
	cfg.Status.Threshold = float32(*threshold)
	return cfg
}
