package middleware

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const checkInRoute = "/api/v1/sessions/:id/checkin"

// Telemetry returns a middleware that counts served requests and check-in
// outcomes on the given MeterProvider. Best-effort: instrument creation
// failures are logged and the middleware degrades to a pass-through. If mp is
// nil, the middleware no-ops. skipPaths is the set of paths to not count
// (e.g. the health probe).
func Telemetry(mp metric.MeterProvider, skipPaths map[string]bool) fiber.Handler {
	if mp == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	meter := mp.Meter("presensi-praktikum/internal/server/middleware")
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests served, by method, route, and status code"))
	if err != nil {
		log.Printf("telemetry: request counter: %v", err)
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	checkins, err := meter.Int64Counter("presensi.checkin.outcomes",
		metric.WithDescription("Check-in attempts by admission outcome"))
	if err != nil {
		log.Printf("telemetry: check-in counter: %v", err)
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		err := c.Next()
		if skipPaths[c.Path()] {
			return err
		}
		// The central error handler runs after this middleware, so the status
		// it will write is derived from the error here.
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		ctx := c.UserContext()
		requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("http.request.method", c.Method()),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		))
		if c.Method() == fiber.MethodPost && route == checkInRoute {
			checkins.Add(ctx, 1, metric.WithAttributes(
				attribute.String("outcome", checkInOutcome(status)),
			))
		}
		return err
	}
}

// checkInOutcome maps the check-in route's status codes to outcome labels.
func checkInOutcome(status int) string {
	switch status {
	case fiber.StatusCreated:
		return "admitted"
	case fiber.StatusConflict:
		return "duplicate"
	case fiber.StatusGone:
		return "expired"
	case fiber.StatusUnprocessableEntity:
		return "out_of_range"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "rejected"
	}
}
