// Package web exposes the task service over HTTP: sequence submission,
// result polling, the emergency stop and live worker logs.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/openquad/go-dogctl/internal/log"
	"github.com/openquad/go-dogctl/pkg/executor"
	"github.com/openquad/go-dogctl/pkg/hub"
	"github.com/openquad/go-dogctl/pkg/task"
)

// TaskService is what the handlers need from the task layer.
type TaskService interface {
	Submit(p executor.Payload) (string, error)
	Task(id string) (task.Task, bool)
	EmergencyStop() error
	Logs(since uint64) ([]task.Line, uint64)
}

// Server is the HTTP front of the control service.
type Server struct {
	app    *fiber.App
	tasks  TaskService
	logHub *hub.Hub
	logger *slog.Logger
}

// NewServer wires routes over the given task service. The caller remains
// responsible for feeding worker log lines into the server via LogLine.
func NewServer(tasks TaskService) *Server {
	s := &Server{
		tasks:  tasks,
		logHub: hub.New("logs"),
		logger: log.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "dogctl",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)
	app.Post("/execute", s.handleExecute)
	app.Get("/result", s.handleResult)
	app.Post("/emergency_stop", s.handleEmergencyStop)
	app.Get("/logs", s.handleLogs)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"ok":    false,
			"error": "not found",
		})
	})

	s.app = app
	return s
}

// Listen starts the hub and serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	go s.logHub.Run()
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// LogLine pushes one captured worker log line to websocket subscribers.
// Wire it as the task service's log sink.
func (s *Server) LogLine(l task.Line) {
	if err := s.logHub.BroadcastJSON(l); err != nil {
		s.logger.Warn("log broadcast failed", "err", err)
	}
}

// Shutdown stops the server and disconnects log subscribers.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.logHub.Stop()
	return err
}
