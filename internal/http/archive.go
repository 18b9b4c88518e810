package http

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/cloud"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/service"
)

const defaultArchiveWindow = time.Hour

// AlertStore lists and acknowledges persisted alerts.
type AlertStore interface {
	GetAlerts(ctx context.Context, household string, severity *string) ([]cloud.Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID string) error
}

// StatementArchive serves billing statements from object storage.
type StatementArchive interface {
	PresignURL(ctx context.Context, key string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReadingArchive reads mirrored readings back.
type ReadingArchive interface {
	GetRecentReadings(ctx context.Context, household string, window time.Duration) ([]domain.LiveReading, error)
}

// LiveCache is the read side of the ingestor's cache.
type LiveCache interface {
	LatestReading(ctx context.Context, household string) (domain.LiveReading, bool, error)
	RecentMessages(ctx context.Context, household string, limit int) ([]domain.Message, error)
}

func registerArchive(app *fiber.App, h *handlers) {
	alerts := app.Group("/alerts")
	alerts.Get("/", h.listAlerts)
	alerts.Post("/:id/ack", h.ackAlert)

	statements := app.Group("/billing/statements")
	statements.Get("/archive", h.archivedStatements)
	statements.Get("/:id/url", h.statementURL)
	statements.Get("/:id/document", h.statementDocument)

	app.Get("/history/archive", h.archivedReadings)

	live := app.Group("/live")
	live.Get("/reading", h.liveReading)
	live.Get("/messages", h.liveMessages)
}

func disabled(c *fiber.Ctx, feature string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": feature + " disabled"})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func (h *handlers) listAlerts(c *fiber.Ctx) error {
	if h.Alerts == nil {
		return disabled(c, "alerts")
	}
	var severity *string
	if raw := c.Query("severity"); raw != "" {
		sev := strings.ToUpper(raw)
		switch sev {
		case service.SeverityInfo, service.SeverityWarning, service.SeverityCritical:
		default:
			return badRequest(c, fmt.Sprintf("invalid severity %q", raw))
		}
		severity = &sev
	}
	alerts, err := h.Alerts.GetAlerts(c.UserContext(), h.Household, severity)
	if err != nil {
		return internalError(c, err)
	}
	if alerts == nil {
		alerts = []cloud.Alert{}
	}
	return c.JSON(alerts)
}

func (h *handlers) ackAlert(c *fiber.Ctx) error {
	if h.Alerts == nil {
		return disabled(c, "alerts")
	}
	if err := h.Alerts.AcknowledgeAlert(c.UserContext(), c.Params("id")); err != nil {
		return internalError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) archivedStatements(c *fiber.Ctx) error {
	if h.Statements == nil {
		return disabled(c, "statement archive")
	}
	keys, err := h.Statements.List(c.UserContext(), fmt.Sprintf("statements/%s/", h.Household))
	if err != nil {
		return internalError(c, err)
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(fiber.Map{"keys": keys})
}

// statementKey resolves a statement id to its archive key.
func (h *handlers) statementKey(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	for _, st := range h.Services.Statements.Statements() {
		if st.ID.String() == id {
			return service.StatementKey(h.Household, st), true
		}
	}
	return "", false
}

func (h *handlers) statementURL(c *fiber.Ctx) error {
	if h.Statements == nil {
		return disabled(c, "statement archive")
	}
	key, ok := h.statementKey(c)
	if !ok {
		return notFound(c, "statement not found")
	}
	url, err := h.Statements.PresignURL(c.UserContext(), key)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"key": key, "url": url})
}

func (h *handlers) statementDocument(c *fiber.Ctx) error {
	if h.Statements == nil {
		return disabled(c, "statement archive")
	}
	key, ok := h.statementKey(c)
	if !ok {
		return notFound(c, "statement not found")
	}
	data, err := h.Statements.Download(c.UserContext(), key)
	if err != nil {
		return internalError(c, err)
	}
	c.Type("json")
	return c.Send(data)
}

func (h *handlers) archivedReadings(c *fiber.Ctx) error {
	if h.Archive == nil {
		return disabled(c, "reading archive")
	}
	window := defaultArchiveWindow
	if raw := c.Query("minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest(c, "minutes must be a positive integer")
		}
		window = time.Duration(n) * time.Minute
	}
	readings, err := h.Archive.GetRecentReadings(c.UserContext(), h.Household, window)
	if err != nil {
		return internalError(c, err)
	}
	if readings == nil {
		readings = []domain.LiveReading{}
	}
	return c.JSON(readings)
}

func (h *handlers) liveReading(c *fiber.Ctx) error {
	if h.Live == nil {
		return disabled(c, "live cache")
	}
	r, ok, err := h.Live.LatestReading(c.UserContext(), h.Household)
	if err != nil {
		return internalError(c, err)
	}
	if !ok {
		return notFound(c, "no cached reading")
	}
	return c.JSON(r)
}

func (h *handlers) liveMessages(c *fiber.Ctx) error {
	if h.Live == nil {
		return disabled(c, "live cache")
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = n
	}
	msgs, err := h.Live.RecentMessages(c.UserContext(), h.Household, limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(msgs)
}
