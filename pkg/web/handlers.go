package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-eyestate/pkg/hub"
)

// handleHealth reports liveness and the session id.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"session":        s.session,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

// handleStatus returns the smoothed session status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.source == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "status tracking disabled",
		})
	}
	return c.JSON(s.source.Current())
}

// handleStats returns frame counters, the session summary and client counts.
func (s *Server) handleStats(c *fiber.Ctx) error {
	resp := fiber.Map{
		"session":  s.session,
		"counters": s.Counters(),
		"clients": fiber.Map{
			"predictions": s.predictionHub.ClientCount(),
			"camera":      s.cameraHub.ClientCount(),
		},
		"hubs": fiber.Map{
			"predictions": hubStats(s.predictionHub),
			"camera":      hubStats(s.cameraHub),
		},
	}
	if s.source != nil {
		resp["summary"] = s.source.Summary()
	}
	return c.JSON(resp)
}

// HubStats describes one websocket feed.
type HubStats struct {
	Running bool  `json:"running"`
	Clients int   `json:"clients"`
	Dropped int64 `json:"dropped"` // Broadcasts discarded on a full queue
}

func hubStats(h *hub.Hub) HubStats {
	return HubStats{
		Running: h.IsRunning(),
		Clients: h.ClientCount(),
		Dropped: h.Dropped(),
	}
}

// handleHubWS attaches a websocket connection to h until it disconnects.
func (s *Server) handleHubWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			return
		}
		client.Run()
	}
}
