package monitor

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/teslashibe/go-eyestate/internal/log"
	"github.com/teslashibe/go-eyestate/pkg/annotate"
	"github.com/teslashibe/go-eyestate/pkg/artifact"
	"github.com/teslashibe/go-eyestate/pkg/camera"
	"github.com/teslashibe/go-eyestate/pkg/classifier"
	"github.com/teslashibe/go-eyestate/pkg/debug"
	"github.com/teslashibe/go-eyestate/pkg/detection"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"github.com/teslashibe/go-eyestate/pkg/pipeline"
	"github.com/teslashibe/go-eyestate/pkg/preprocess"
	"github.com/teslashibe/go-eyestate/pkg/status"
	"github.com/teslashibe/go-eyestate/pkg/web"
	"gocv.io/x/gocv"
)

type frameSource interface {
	Read() (gocv.Mat, error)
	Close() error
}

type regionDetector interface {
	Detect(frame gocv.Mat) ([]image.Rectangle, error)
	Close() error
}

type presenter interface {
	Present(frame gocv.Mat) error
	PollQuit() bool
}

// App is the eye-state monitor orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	fetcher *artifact.Fetcher

	// Pipeline stages
	classifier   *classifier.TFLite
	detector     regionDetector
	preprocessor *preprocess.Mat
	source       frameSource
	presenter    presenter
	window       *annotate.Window
	headless     *annotate.Headless
	loop         *pipeline.Loop[gocv.Mat]

	// Reporting
	tracker   *status.Tracker
	webServer *web.Server

	statsMu sync.Mutex
	stats   pipeline.Stats

	shutdownOnce sync.Once
}

// New creates a monitor with the given configuration.
func New(cfg Config) (*App, error) {
	cfg.LoadEnvConfig()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Normalization, _ = eyestate.ParseNormalization(string(cfg.Normalization))

	debug.Enabled = cfg.Debug
	debug.Frames = cfg.DebugFrames

	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	return &App{
		config: cfg,
		logger: log.Component("monitor").With("session", cfg.SessionID),
		fetcher: artifact.NewFetcher(artifact.Config{
			CacheDir:   cfg.CacheDir,
			MaxRetries: 5,
			S3:         cfg.S3,
		}),
	}, nil
}

// Config returns the effective configuration after env overrides.
func (a *App) Config() Config {
	return a.config
}

// Init acquires every resource in order: classifier, detector, camera,
// presenter. A failed step leaves earlier resources for Shutdown to release.
func (a *App) Init(ctx context.Context) error {
	fmt.Println("👁️  Eye State Monitor")
	fmt.Println("====================")
	if debug.Enabled {
		fmt.Println("🐛 Debug mode enabled")
	}

	fmt.Print("🧠 Loading classifier... ")
	if err := a.initClassifier(ctx); err != nil {
		fmt.Println("❌")
		return eyestate.WrapStage("classifier", err)
	}
	fmt.Printf("✅ (%s)\n", a.classifier.Info())

	fmt.Printf("🔍 Loading %s detector... ", a.config.Detector)
	if err := a.initDetector(ctx); err != nil {
		fmt.Println("❌")
		return eyestate.WrapStage("detector", err)
	}
	fmt.Println("✅")

	a.preprocessor = preprocess.NewMat(a.config.Normalization)

	fmt.Printf("📹 Opening %s... ", a.config.Camera.Describe())
	if err := a.initSource(ctx); err != nil {
		fmt.Println("❌")
		return eyestate.WrapStage("camera", err)
	}
	fmt.Println("✅")

	a.tracker = status.NewTracker(a.config.Status)
	if a.config.WebAddr != "" {
		a.webServer = web.NewServer(a.config.WebAddr, a.config.SessionID, a.tracker)
	}
	a.initPresenter()

	loop, err := pipeline.New(pipeline.Stages[gocv.Mat]{
		Source:       a.source,
		Detector:     a.detector,
		Preprocessor: a.preprocessor,
		Classifier:   a.classifier,
		Annotator:    annotate.Mat{},
		Presenter:    a.presenter,
	},
		pipeline.WithLogger[gocv.Mat](a.logger),
		pipeline.WithObserver[gocv.Mat](a.observe),
	)
	if err != nil {
		return err
	}
	a.loop = loop
	return nil
}

func (a *App) initClassifier(ctx context.Context) error {
	path, err := a.fetcher.Resolve(ctx, a.config.Model)
	if err != nil {
		return err
	}
	a.classifier, err = classifier.Load(classifier.Config{
		ModelPath: path,
		Threads:   a.config.Threads,
	})
	return err
}

func (a *App) initDetector(ctx context.Context) error {
	cfg := a.config.Detection
	switch a.config.Detector {
	case DetectorPigo:
		paths, err := a.fetcher.ResolveAll(ctx, a.config.FaceCascade, a.config.PupilCascade)
		if err != nil {
			return err
		}
		cfg.FaceCascadePath, cfg.PupilCascadePath = paths[0], paths[1]
		d, err := detection.NewPigo(cfg)
		if err != nil {
			return err
		}
		a.detector = d
	default:
		path, err := a.fetcher.Resolve(ctx, a.config.Cascade)
		if err != nil {
			return err
		}
		cfg.CascadePath = path
		d, err := detection.NewHaar(cfg)
		if err != nil {
			return err
		}
		a.detector = d
	}
	return nil
}

func (a *App) initSource(ctx context.Context) error {
	var err error
	if a.config.Camera.Backend == camera.BackendFFmpeg {
		a.source, err = camera.OpenFFmpeg(ctx, a.config.Camera)
	} else {
		a.source, err = camera.Open(a.config.Camera)
	}
	if err != nil {
		a.source = nil
	}
	return err
}

func (a *App) initPresenter() {
	if !a.config.Headless {
		a.window = annotate.NewWindow(a.config.WindowTitle)
		a.presenter = a.window
		return
	}
	var sink annotate.FrameSink
	if a.webServer != nil {
		sink = a.webServer.SendCameraFrame
	}
	a.headless = annotate.NewHeadless(sink, a.config.FrameEvery)
	a.presenter = a.headless
}

// observe folds a frame into the session status and publishes both.
func (a *App) observe(res pipeline.FrameResult) {
	st := a.tracker.Observe(res)
	debug.FrameLog("👁️  frame %d: %d eye(s) %s smoothed=%.2f\n", res.Index, len(res.Predictions), st.State, st.Smoothed)
	if a.webServer != nil {
		a.webServer.PublishFrame(res, st)
	}
}

// Run starts the status server and runs the loop until quit, end of stream
// or ctx cancellation.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return fmt.Errorf("monitor: Run called before Init")
	}
	if a.webServer != nil {
		a.webServer.StartAsync()
	}

	if a.config.Headless {
		fmt.Println("\n👁️  Running headless (Ctrl+C to exit)")
	} else {
		fmt.Println("\n👁️  Watching... press q in the window to quit")
	}

	stats, err := a.loop.Run(ctx)
	a.statsMu.Lock()
	a.stats = stats
	a.statsMu.Unlock()

	a.logger.Info("loop finished",
		"reason", stats.Reason,
		"frames", stats.Frames,
		"predictions", stats.Predictions,
		"skipped", stats.Skipped,
	)
	return err
}

// Stats returns the final loop statistics once Run has returned.
func (a *App) Stats() pipeline.Stats {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	return a.stats
}

// Shutdown releases every acquired resource exactly once, in reverse order
// of acquisition. Safe after a partial Init.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		fmt.Println("\n👋 Goodbye!")

		if a.webServer != nil {
			if err := a.webServer.Shutdown(); err != nil {
				a.logger.Warn("status server shutdown", "error", err)
			}
		}
		if a.headless != nil {
			a.headless.Stop()
			a.logger.Info("headless presenter stopped", "frames", a.headless.Frames())
		}
		if a.window != nil {
			a.window.Close()
		}
		if a.source != nil {
			if err := a.source.Close(); err != nil {
				a.logger.Warn("close camera", "error", err)
			}
		}
		if a.preprocessor != nil {
			a.preprocessor.Close()
		}
		if a.detector != nil {
			a.detector.Close()
		}
		if a.classifier != nil {
			a.classifier.Close()
		}
	})
}
