// Package web serves the live eye-state status: a small JSON API and
// websocket feeds for per-frame predictions and annotated camera frames.
package web

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-eyestate/internal/log"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"github.com/teslashibe/go-eyestate/pkg/hub"
	"github.com/teslashibe/go-eyestate/pkg/pipeline"
	"github.com/teslashibe/go-eyestate/pkg/status"
)

// StatusSource supplies the smoothed session state.
type StatusSource interface {
	Current() status.Status
	Summary() status.Summary
}

// Counters are running totals of what the loop has published.
type Counters struct {
	Frames      int `json:"frames"`
	Predictions int `json:"predictions"`
	Skipped     int `json:"skipped"`
	Open        int `json:"open"`
	Closed      int `json:"closed"`
}

// FrameEvent is the JSON pushed on /ws/predictions for every frame.
type FrameEvent struct {
	Session     string                `json:"session"`
	Frame       int                   `json:"frame"`
	Predictions []eyestate.Prediction `json:"predictions"`
	Skipped     int                   `json:"skipped"`
	ElapsedMS   float64               `json:"elapsed_ms"`
	Status      status.Status         `json:"status"`
}

// Server is the status server.
type Server struct {
	app     *fiber.App
	addr    string
	session string
	source  StatusSource
	started time.Time
	logger  *slog.Logger

	countersMu sync.RWMutex
	counters   Counters

	predictionHub *hub.Hub
	cameraHub     *hub.Hub
}

// NewServer builds the server; nothing listens until Start.
func NewServer(addr, session string, source StatusSource) *Server {
	s := &Server{
		addr:          addr,
		session:       session,
		source:        source,
		started:       time.Now(),
		logger:        log.Component("web"),
		predictionHub: hub.New("predictions"),
		cameraHub:     hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "eyestate",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/predictions", websocket.New(s.handleHubWS(s.predictionHub)))
	app.Get("/ws/camera", websocket.New(s.handleHubWS(s.cameraHub)))

	s.app = app
	return s
}

// Start runs the hubs and blocks serving HTTP.
func (s *Server) Start() error {
	fmt.Printf("🌐 Status server: http://localhost%s/api/status\n", s.addr)

	go s.predictionHub.Run()
	go s.cameraHub.Run()

	return s.app.Listen(s.addr)
}

// StartAsync runs Start in a goroutine and logs its error.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Warn("status server stopped", "error", err)
		}
	}()
}

// PublishFrame records a frame result and pushes it to prediction clients.
func (s *Server) PublishFrame(res pipeline.FrameResult, st status.Status) {
	s.countersMu.Lock()
	s.counters.Frames++
	s.counters.Predictions += len(res.Predictions)
	s.counters.Skipped += res.Skipped
	for _, p := range res.Predictions {
		if p.Label == eyestate.Open {
			s.counters.Open++
		} else {
			s.counters.Closed++
		}
	}
	s.countersMu.Unlock()

	preds := res.Predictions
	if preds == nil {
		preds = []eyestate.Prediction{}
	}
	err := s.predictionHub.BroadcastJSON(FrameEvent{
		Session:     s.session,
		Frame:       res.Index,
		Predictions: preds,
		Skipped:     res.Skipped,
		ElapsedMS:   float64(res.Elapsed.Microseconds()) / 1000,
		Status:      st,
	})
	if err != nil {
		s.logger.Warn("encode frame event", "frame", res.Index, "error", err)
	}
}

// SendCameraFrame pushes an annotated JPEG to camera clients.
func (s *Server) SendCameraFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

// Counters returns a snapshot of the running totals.
func (s *Server) Counters() Counters {
	s.countersMu.RLock()
	defer s.countersMu.RUnlock()
	return s.counters
}

// Shutdown stops the hubs and the HTTP listener.
func (s *Server) Shutdown() error {
	s.predictionHub.Stop()
	s.cameraHub.Stop()
	return s.app.Shutdown()
}
