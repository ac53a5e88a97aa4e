package web

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/openquad/go-dogctl/pkg/executor"
	"github.com/openquad/go-dogctl/pkg/hub"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleExecute(c *fiber.Ctx) error {
	var payload executor.Payload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":    false,
			"error": "invalid json payload: " + err.Error(),
		})
	}
	if len(payload.Actions) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":    false,
			"error": "actions list is empty",
		})
	}

	id, err := s.tasks.Submit(payload)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"ok":    false,
			"error": err.Error(),
		})
	}
	s.logger.Info("task accepted", "task", id, "actions", len(payload.Actions))
	return c.JSON(fiber.Map{"ok": true, "task_id": id})
}

func (s *Server) handleResult(c *fiber.Ctx) error {
	id := c.Query("task_id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":    false,
			"error": "task_id query parameter is required",
		})
	}
	t, ok := s.tasks.Task(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"ok":    false,
			"error": "unknown task_id " + id,
		})
	}
	return c.JSON(fiber.Map{"ok": true, "task": t})
}

// handleEmergencyStop always answers 200: the caller's robot is halting
// even when some cleanup step complained.
func (s *Server) handleEmergencyStop(c *fiber.Ctx) error {
	if err := s.tasks.EmergencyStop(); err != nil {
		s.logger.Error("emergency stop incomplete", "err", err)
		return c.JSON(fiber.Map{"ok": true, "warning": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	since, err := strconv.ParseUint(c.Query("since", "0"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":    false,
			"error": "since must be a non-negative integer",
		})
	}
	lines, next := s.tasks.Logs(since)
	return c.JSON(fiber.Map{
		"ok":    true,
		"logs":  lines,
		"count": len(lines),
		"since": since,
		"next":  next,
	})
}

func (s *Server) handleLogsWS(conn *websocket.Conn) {
	hub.NewClient(s.logHub, conn).Run()
}
