package http

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/service"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
)

const defaultHistoryLimit = 100

// History reads persisted telemetry.
type History interface {
	RecentReadings(ctx context.Context, household string, limit int) ([]domain.ReadingRecord, error)
	RecentAnomalies(ctx context.Context, household string, limit int) ([]domain.AnomalyRecord, error)
	RecentMessages(ctx context.Context, household string, limit int) ([]domain.MessageRecord, error)
}

// Deps are the collaborators behind the routes. History, Alerts,
// Statements, Archive and Live may be nil; their routes then answer 503.
type Deps struct {
	Engine     *simulation.Engine
	Services   *service.Services
	History    History
	Alerts     AlertStore
	Statements StatementArchive
	Archive    ReadingArchive
	Live       LiveCache
	Household  string
}

func Register(app *fiber.App, d Deps) {
	h := &handlers{Deps: d}

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/snapshot", func(c *fiber.Ctx) error { return c.JSON(h.Engine.Snapshot()) })
	app.Get("/reading", func(c *fiber.Ctx) error { return c.JSON(h.Engine.Reading()) })
	app.Get("/anomalies", func(c *fiber.Ctx) error { return c.JSON(h.Engine.Anomalies()) })
	app.Get("/messages", func(c *fiber.Ctx) error { return c.JSON(h.Engine.Messages()) })

	devices := app.Group("/devices")
	devices.Get("/", func(c *fiber.Ctx) error { return c.JSON(h.Engine.Devices()) })
	devices.Post("/", h.addDevice)
	devices.Get("/:id", h.getDevice)
	devices.Delete("/:id", h.removeDevice)
	devices.Post("/:id/toggle", h.toggleDevice)
	devices.Post("/:id/schedule", h.scheduleDevice)
	devices.Put("/:id/priority", h.updatePriority)
	devices.Get("/:id/suggestion", h.suggestion)
	devices.Get("/:id/maintenance", h.maintenance)

	grid := app.Group("/grid")
	grid.Get("/", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": h.Engine.GridStatus()}) })
	grid.Post("/commands", h.utilityCommand)
	grid.Post("/load-shedding", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"devices_off": h.Engine.TriggerLoadShedding()})
	})
	grid.Delete("/load-shedding", func(c *fiber.Ctx) error {
		h.Engine.EndLoadShedding()
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/detection", h.detection)
	app.Post("/detection/label", h.labelDetection)

	billing := app.Group("/billing")
	billing.Get("/", h.billing)
	billing.Post("/pay", func(c *fiber.Ctx) error { return c.JSON(h.Engine.ResetMonthlyBill()) })
	billing.Post("/reset", func(c *fiber.Ctx) error { return c.JSON(h.Engine.ResetMonthlyUsage()) })
	billing.Post("/recharge", h.recharge)
	billing.Put("/mode", h.billingMode)
	billing.Put("/settings", h.billingSettings)
	billing.Get("/statements", func(c *fiber.Ctx) error { return c.JSON(h.Services.Statements.Statements()) })

	app.Put("/simulation/speed", h.speed)

	analytics := app.Group("/analytics")
	analytics.Get("/usage", h.usage)
	analytics.Get("/power", func(c *fiber.Ctx) error { return c.JSON(h.Services.Analytics.PowerStats()) })
	analytics.Get("/rooms", func(c *fiber.Ctx) error { return c.JSON(h.Services.Analytics.RoomUsage()) })

	registerArchive(app, h)

	history := app.Group("/history")
	history.Get("/readings", func(c *fiber.Ctx) error {
		return h.history(c, func(ctx context.Context, limit int) (any, error) {
			return h.History.RecentReadings(ctx, h.Household, limit)
		})
	})
	history.Get("/anomalies", func(c *fiber.Ctx) error {
		return h.history(c, func(ctx context.Context, limit int) (any, error) {
			return h.History.RecentAnomalies(ctx, h.Household, limit)
		})
	})
	history.Get("/messages", func(c *fiber.Ctx) error {
		return h.history(c, func(ctx context.Context, limit int) (any, error) {
			return h.History.RecentMessages(ctx, h.Household, limit)
		})
	})
}

type handlers struct {
	Deps
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

func outcome(c *fiber.Ctx, out simulation.Outcome) error {
	if out == simulation.OutcomeNotFound {
		return notFound(c, "device not found")
	}
	return c.JSON(fiber.Map{"outcome": out.String()})
}

func (h *handlers) addDevice(c *fiber.Ctx) error {
	var d domain.Device
	if err := c.BodyParser(&d); err != nil {
		return badRequest(c, "invalid device body")
	}
	if d.ID == "" || d.Name == "" {
		return badRequest(c, "id and name are required")
	}
	if d.Priority != "" {
		if _, err := domain.ParsePriority(string(d.Priority)); err != nil {
			return badRequest(c, err.Error())
		}
	}
	if err := h.Engine.AddDevice(d); err != nil {
		return badRequest(c, err.Error())
	}
	created, _ := h.Engine.Device(d.ID)
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handlers) getDevice(c *fiber.Ctx) error {
	d, ok := h.Engine.Device(c.Params("id"))
	if !ok {
		return notFound(c, "device not found")
	}
	return c.JSON(d)
}

func (h *handlers) removeDevice(c *fiber.Ctx) error {
	if h.Engine.RemoveDevice(c.Params("id")) == simulation.OutcomeNotFound {
		return notFound(c, "device not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) toggleDevice(c *fiber.Ctx) error {
	var body struct {
		On *bool `json:"on"`
	}
	if err := c.BodyParser(&body); err != nil || body.On == nil {
		return badRequest(c, `body must be {"on": true|false}`)
	}
	out, err := h.Engine.ToggleDevice(c.UserContext(), c.Params("id"), *body.On)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return outcome(c, out)
}

func (h *handlers) scheduleDevice(c *fiber.Ctx) error {
	var body struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := c.BodyParser(&body); err != nil || body.Start == "" || body.End == "" {
		return badRequest(c, "start and end are required")
	}
	out, err := h.Engine.ScheduleDevice(c.UserContext(), c.Params("id"), body.Start, body.End)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return outcome(c, out)
}

func (h *handlers) updatePriority(c *fiber.Ctx) error {
	var body struct {
		Priority string `json:"priority"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := domain.ParsePriority(body.Priority)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return outcome(c, h.Engine.UpdateDevicePriority(c.Params("id"), p))
}

func (h *handlers) suggestion(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := h.Engine.Device(id); !ok {
		return notFound(c, "device not found")
	}
	return c.JSON(fiber.Map{"device_id": id, "suggestion": h.Engine.OptimizationSuggestion(id)})
}

func (h *handlers) maintenance(c *fiber.Ctx) error {
	p, err := h.Services.Maintenance.PredictMaintenanceNeeds(c.UserContext(), c.Params("id"))
	if errors.Is(err, service.ErrDeviceNotFound) {
		return notFound(c, "device not found")
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(p)
}

func (h *handlers) utilityCommand(c *fiber.Ctx) error {
	var body struct {
		Command     string `json:"command"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if !h.Engine.HandleUtilityCommand(body.Command, body.Description) {
		return badRequest(c, "command is required")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": h.Engine.GridStatus()})
}

func (h *handlers) detection(c *fiber.Ctx) error {
	d := h.Engine.Detected()
	if d == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(d)
}

func (h *handlers) labelDetection(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Room string `json:"room"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" {
		return badRequest(c, "name is required")
	}
	d, ok := h.Engine.LabelDetectedAppliance(body.Name, body.Type, body.Room)
	if !ok {
		return notFound(c, "no pending detection")
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

func (h *handlers) billing(c *fiber.Ctx) error {
	b := h.Engine.Billing()
	resp := fiber.Map{
		"billing":       b,
		"bill_estimate": h.Engine.CurrentBillEstimate(),
		"budget_used":   b.BudgetUsedFraction(),
	}
	if !b.IsPrepaidMode {
		resp["due_date"] = simulation.PostpaidDueDate(b.CycleStart).Format("02 Jan 2006")
	}
	return c.JSON(resp)
}

func (h *handlers) recharge(c *fiber.Ctx) error {
	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := h.Engine.AddPrepaidBalance(body.Amount); err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(h.Engine.Billing())
}

func (h *handlers) billingMode(c *fiber.Ctx) error {
	var body struct {
		Prepaid *bool `json:"prepaid"`
	}
	if err := c.BodyParser(&body); err != nil || body.Prepaid == nil {
		return badRequest(c, `body must be {"prepaid": true|false}`)
	}
	h.Engine.SetBillingMode(*body.Prepaid)
	return c.JSON(h.Engine.Billing())
}

func (h *handlers) billingSettings(c *fiber.Ctx) error {
	var body struct {
		Rate   *float64 `json:"electricity_rate"`
		Budget *float64 `json:"monthly_budget"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if body.Rate != nil {
		if err := h.Engine.SetElectricityRate(*body.Rate); err != nil {
			return badRequest(c, err.Error())
		}
	}
	if body.Budget != nil {
		if err := h.Engine.SetMonthlyBudget(*body.Budget); err != nil {
			return badRequest(c, err.Error())
		}
	}
	return c.JSON(h.Engine.Billing())
}

func (h *handlers) speed(c *fiber.Ctx) error {
	var body struct {
		Speed *float64 `json:"speed"`
	}
	if err := c.BodyParser(&body); err != nil || body.Speed == nil {
		return badRequest(c, `body must be {"speed": number}`)
	}
	return c.JSON(fiber.Map{"speed": h.Engine.SetSimulationSpeed(*body.Speed)})
}

func (h *handlers) usage(c *fiber.Ctx) error {
	p, err := service.ParsePeriod(c.Query("period"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(h.Services.Analytics.UsageSummary(p))
}

func (h *handlers) history(c *fiber.Ctx, fetch func(ctx context.Context, limit int) (any, error)) error {
	if h.History == nil {
		return disabled(c, "history")
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = n
	}
	items, err := fetch(c.UserContext(), limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(items)
}
