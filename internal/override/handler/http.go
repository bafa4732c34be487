package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	attendancedomain "presensi-praktikum/internal/attendance/domain"
	"presensi-praktikum/internal/audit"
	"presensi-praktikum/internal/override/domain"
	"presensi-praktikum/internal/override/service"
	"presensi-praktikum/internal/platform/rbac"
	"presensi-praktikum/internal/server/middleware"
	sessiondomain "presensi-praktikum/internal/session/domain"
)

// OverrideService is the reconciler surface the HTTP handler needs.
type OverrideService interface {
	SetOverride(ctx context.Context, sessionID, userID string, status attendancedomain.Status) error
	ClearOverride(ctx context.Context, sessionID, userID string) error
	ListSessionAttendance(ctx context.Context, sessionID string) ([]*domain.ResolvedEntry, error)
	Commit(ctx context.Context, sessionID string) (int, error)
	Summarize(ctx context.Context, classID string) ([]*domain.Summary, error)
}

// SessionGetter resolves a session, used to find its class before the
// instructor check.
type SessionGetter interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
}

// HTTPHandler serves the override and reporting routes. All of them are
// instructor-only and the mutations are audited.
type HTTPHandler struct {
	svc         OverrideService
	sessions    SessionGetter
	enrollments rbac.EnrollmentGetter
	audit       audit.AuditLogger
	validate    *validator.Validate
}

// NewHTTPHandler returns an override handler. auditLogger may be nil.
func NewHTTPHandler(svc OverrideService, sessions SessionGetter, enrollments rbac.EnrollmentGetter, auditLogger audit.AuditLogger) *HTTPHandler {
	return &HTTPHandler{
		svc:         svc,
		sessions:    sessions,
		enrollments: enrollments,
		audit:       auditLogger,
		validate:    validator.New(),
	}
}

// Register mounts the override and reporting routes on the router.
func (h *HTTPHandler) Register(r fiber.Router) {
	r.Get("/sessions/:id/attendance", h.ListAttendance)
	r.Put("/sessions/:id/overrides/:userID", h.Set)
	r.Delete("/sessions/:id/overrides/:userID", h.Clear)
	r.Post("/sessions/:id/overrides/commit", h.Commit)
	r.Get("/classes/:classID/summary", h.Summary)
}

type setOverrideRequest struct {
	Status string `json:"status" validate:"required,oneof=hadir telat absen ditolak"`
}

// requireInstructorForSession resolves the session's class and checks the
// caller's role, returning the session's class ID.
func (h *HTTPHandler) requireInstructorForSession(ctx context.Context, c *fiber.Ctx, sessionID string) (string, error) {
	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", fiber.NewError(fiber.StatusNotFound, service.ErrSessionNotFound.Error())
	}
	if err := rbac.RequireInstructor(ctx, h.enrollments, middleware.UserID(c), sess.ClassID); err != nil {
		return "", mapError(err)
	}
	return sess.ClassID, nil
}

// ListAttendance returns the resolved (override-aware) roster for the session.
func (h *HTTPHandler) ListAttendance(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("id")
	if _, err := h.requireInstructorForSession(ctx, c, sessionID); err != nil {
		return err
	}
	entries, err := h.svc.ListSessionAttendance(ctx, sessionID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(entries)
}

// Set records a manual status correction for the student.
func (h *HTTPHandler) Set(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("id")
	targetUserID := c.Params("userID")
	classID, err := h.requireInstructorForSession(ctx, c, sessionID)
	if err != nil {
		return err
	}
	var req setOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetOverride(ctx, sessionID, targetUserID, attendancedomain.Status(req.Status)); err != nil {
		return mapError(err)
	}
	h.logEvent(ctx, classID, middleware.UserID(c), "override.set", sessionID,
		fmt.Sprintf(`{"user_id":%q,"status":%q}`, targetUserID, req.Status))
	return c.SendStatus(fiber.StatusNoContent)
}

// Clear removes a manual correction, reverting to the recorded truth.
func (h *HTTPHandler) Clear(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("id")
	targetUserID := c.Params("userID")
	classID, err := h.requireInstructorForSession(ctx, c, sessionID)
	if err != nil {
		return err
	}
	if err := h.svc.ClearOverride(ctx, sessionID, targetUserID); err != nil {
		return mapError(err)
	}
	h.logEvent(ctx, classID, middleware.UserID(c), "override.clear", sessionID,
		fmt.Sprintf(`{"user_id":%q}`, targetUserID))
	return c.SendStatus(fiber.StatusNoContent)
}

// Commit reconciles the session's override overlay into attendance rows.
func (h *HTTPHandler) Commit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("id")
	classID, err := h.requireInstructorForSession(ctx, c, sessionID)
	if err != nil {
		return err
	}
	n, err := h.svc.Commit(ctx, sessionID)
	if err != nil {
		return mapError(err)
	}
	h.logEvent(ctx, classID, middleware.UserID(c), "override.commit", sessionID,
		fmt.Sprintf(`{"committed":%d}`, n))
	return c.JSON(fiber.Map{"committed": n})
}

// Summary returns per-student attendance percentages and exam eligibility.
func (h *HTTPHandler) Summary(c *fiber.Ctx) error {
	ctx := c.UserContext()
	classID := c.Params("classID")
	if err := rbac.RequireInstructor(ctx, h.enrollments, middleware.UserID(c), classID); err != nil {
		return mapError(err)
	}
	summaries, err := h.svc.Summarize(ctx, classID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(summaries)
}

func (h *HTTPHandler) logEvent(ctx context.Context, classID, userID, action, resource, metadata string) {
	if h.audit == nil {
		return
	}
	h.audit.LogEvent(ctx, classID, userID, action, resource, metadata)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotEnrolled):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrUnauthenticated):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, rbac.ErrNotEnrolled), errors.Is(err, rbac.ErrNotInstructor):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}
	return err
}
