package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/weather-records/internal/weather"
)

var validate = validator.New()

// Service is the subset of weather.Service the handlers need.
type Service interface {
	Create(ctx context.Context, rec weather.Record) (weather.Record, error)
	Search(ctx context.Context, f weather.SearchFilter) ([]weather.Record, error)
	GetByLocation(ctx context.Context, location string) (weather.Record, error)
	Delete(ctx context.Context, location string) error
	GetForecast(ctx context.Context, startDate, location string) ([]weather.Record, error)
	SetDelay(ms int64)
	Faults() weather.FaultSnapshot
}

type handlers struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes wires the weather handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service Service, logger *zap.Logger) {
	h := &handlers{service: service, logger: logger}

	w := app.Group("/weather")

	// Static paths first so they are not captured by /:location.
	w.Get("/seven-days/:date/:location", h.forecast)
	w.Put("/updateDelay", h.updateDelay)

	w.Get("/", h.search)
	w.Post("/", h.create)
	w.Get("/:location", h.getByLocation)
	w.Delete("/:location", h.remove)

	// Outside /weather so every location stays reachable by name.
	app.Get("/faults", h.faults)
}

// searchQuery holds the optional query parameters of GET /weather.
type searchQuery struct {
	Date      string `query:"date"`
	Location  string `query:"location"`
	Condition string `query:"condition"`
}

func (q searchQuery) toFilter() (weather.SearchFilter, error) {
	f := weather.SearchFilter{Location: q.Location, Condition: q.Condition}
	if q.Date != "" {
		d, err := weather.ParseDate(q.Date)
		if err != nil {
			return f, err
		}
		f.Date = &d
	}
	return f, nil
}

func (h *handlers) search(c *fiber.Ctx) error {
	var q searchQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	filter, err := q.toFilter()
	if err != nil {
		h.logger.Warn("invalid date format received", zap.String("date", q.Date))
		return fiber.NewError(fiber.StatusBadRequest, "Invalid date format")
	}

	recs, err := h.service.Search(c.UserContext(), filter)
	if err != nil {
		return h.fail(c, err, "Failed to fetch weather data")
	}
	return c.JSON(recs)
}

// createRequest is the body of POST /weather. Temperatures are pointers so
// that zero is distinguishable from missing.
type createRequest struct {
	Date      string   `json:"date" validate:"required"`
	Location  string   `json:"location" validate:"required"`
	TempMin   *float64 `json:"tempMin" validate:"required"`
	TempMax   *float64 `json:"tempMax" validate:"required"`
	Condition string   `json:"condition" validate:"required"`
}

func (h *handlers) create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	date, err := weather.ParseDate(req.Date)
	if err != nil {
		h.logger.Warn("invalid date format received", zap.String("date", req.Date))
		return fiber.NewError(fiber.StatusBadRequest, "Invalid date format")
	}

	rec, err := h.service.Create(c.UserContext(), weather.Record{
		Location:  req.Location,
		Date:      date,
		TempMin:   *req.TempMin,
		TempMax:   *req.TempMax,
		Condition: req.Condition,
	})
	if err != nil {
		return h.fail(c, err, "Failed to create weather condition")
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *handlers) getByLocation(c *fiber.Ctx) error {
	location, err := pathParam(c, "location")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	rec, err := h.service.GetByLocation(c.UserContext(), location)
	if err != nil {
		return h.fail(c, err, "Failed to fetch weather for location")
	}
	return c.JSON(rec)
}

func (h *handlers) remove(c *fiber.Ctx) error {
	location, err := pathParam(c, "location")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), location); err != nil {
		return h.fail(c, err, "Failed to delete weather data")
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Weather for %s deleted successfully", location),
	})
}

func (h *handlers) forecast(c *fiber.Ctx) error {
	date, err := pathParam(c, "date")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	location, err := pathParam(c, "location")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	recs, err := h.service.GetForecast(c.UserContext(), date, location)
	if err != nil {
		return h.fail(c, err, "Failed to fetch forecast")
	}
	return c.JSON(recs)
}

// delayRequest is the body of PUT /weather/updateDelay.
type delayRequest struct {
	Delay *float64 `json:"delay" validate:"required"`
}

func (h *handlers) updateDelay(c *fiber.Ctx) error {
	var req delayRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if math.IsNaN(*req.Delay) || math.IsInf(*req.Delay, 0) {
		return fiber.NewError(fiber.StatusBadRequest, "delay must be a finite number")
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if *req.Delay >= math.MaxInt64 || *req.Delay < math.MinInt64 {
		return fiber.NewError(fiber.StatusBadRequest, "delay out of range")
	}

	ms := int64(*req.Delay)
	h.service.SetDelay(ms)
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("delay updated to %d", ms),
	})
}

func (h *handlers) faults(c *fiber.Ctx) error {
	return c.JSON(h.service.Faults())
}

// fail maps a service error to an HTTP error. Store failures and anything
// unexpected become a 500 with the fixed message; the cause is only logged.
func (h *handlers) fail(c *fiber.Ctx, err error, message string) error {
	var verr *weather.ValidationError
	switch {
	case errors.As(err, &verr):
		return fiber.NewError(fiber.StatusBadRequest, verr.Msg)
	case errors.Is(err, weather.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "weather record not found")
	case errors.Is(err, weather.ErrSimulatedFailure):
		h.logger.Warn("request failed by fault injection",
			zap.String("fault", "simulated"),
			zap.String("requestId", requestID(c)),
			zap.String("path", c.Path()))
		return fiber.NewError(fiber.StatusInternalServerError, "Simulated failure")
	}

	h.logger.Error(message,
		zap.String("requestId", requestID(c)),
		zap.String("path", c.Path()),
		zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, message)
}

func pathParam(c *fiber.Ctx, name string) (string, error) {
	v, err := url.PathUnescape(c.Params(name))
	if err != nil {
		return "", fmt.Errorf("invalid %s path parameter", name)
	}
	return v, nil
}
