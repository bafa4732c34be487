// Package server assembles the HTTP API: middleware, routes, and the central
// error handler.
package server

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.opentelemetry.io/otel/metric"

	attendancehandler "presensi-praktikum/internal/attendance/handler"
	"presensi-praktikum/internal/audit"
	classhandler "presensi-praktikum/internal/class/handler"
	overridehandler "presensi-praktikum/internal/override/handler"
	"presensi-praktikum/internal/platform/rbac"
	"presensi-praktikum/internal/server/middleware"
	sessionhandler "presensi-praktikum/internal/session/handler"
)

// Deps carries the wired services the HTTP server mounts.
type Deps struct {
	Verifier     middleware.Verifier
	AuthDisabled bool

	Classes   classhandler.ClassService
	Sessions  sessionhandler.SessionService
	CheckIn   attendancehandler.CheckInService
	Overrides overridehandler.OverrideService

	// SessionGetter is the raw session lookup handlers use to resolve a
	// session's class before role checks.
	SessionGetter attendancehandler.SessionGetter
	Enrollments   rbac.EnrollmentGetter
	Audit         audit.AuditLogger

	// MeterProvider backs the request and check-in outcome counters; nil
	// disables them.
	MeterProvider metric.MeterProvider

	// Health reports readiness of downstream dependencies; nil means always ok.
	Health func(ctx context.Context) error
}

// New builds the fiber app with all routes mounted. /healthz is public;
// everything under /api/v1 requires authentication.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "presensi-praktikum",
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(middleware.Telemetry(d.MeterProvider, map[string]bool{"/healthz": true}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if d.Health != nil {
			if err := d.Health(c.UserContext()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1", middleware.Auth(d.Verifier, d.AuthDisabled))
	classhandler.NewHTTPHandler(d.Classes, d.Enrollments, d.Audit).Register(api)
	sessionhandler.NewHTTPHandler(d.Sessions, d.Enrollments, d.Audit).Register(api)
	attendancehandler.NewHTTPHandler(d.CheckIn, d.SessionGetter, d.Enrollments).Register(api)
	overridehandler.NewHTTPHandler(d.Overrides, d.SessionGetter, d.Enrollments, d.Audit).Register(api)
	return app
}

// errorHandler renders every handler error as a JSON body. Unexpected errors
// are logged and reported as a plain 500 so internals never leak to clients.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	log.Printf("http: %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
