package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"presensi-praktikum/internal/audit"
	"presensi-praktikum/internal/platform/rbac"
	"presensi-praktikum/internal/server/middleware"
	"presensi-praktikum/internal/session/domain"
	"presensi-praktikum/internal/session/service"
)

// SessionService is the lifecycle surface the HTTP handler needs.
type SessionService interface {
	CreateSession(ctx context.Context, classID, title string, scheduledDate time.Time, durationMin int, radiusM float64) (*domain.Session, error)
	Activate(ctx context.Context, sessionID string, lat, lng, radiusM float64, durationMin int) (*domain.Session, error)
	Extend(ctx context.Context, sessionID string, extraMinutes int) (time.Time, error)
	Deactivate(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, domain.State, error)
	ListSessions(ctx context.Context, classID string) ([]*domain.Session, error)
}

// HTTPHandler serves the session lifecycle routes. Lifecycle transitions are
// instructor-only and audited.
type HTTPHandler struct {
	svc         SessionService
	enrollments rbac.EnrollmentGetter
	audit       audit.AuditLogger
	validate    *validator.Validate
}

// NewHTTPHandler returns a session handler. auditLogger may be nil.
func NewHTTPHandler(svc SessionService, enrollments rbac.EnrollmentGetter, auditLogger audit.AuditLogger) *HTTPHandler {
	return &HTTPHandler{
		svc:         svc,
		enrollments: enrollments,
		audit:       auditLogger,
		validate:    validator.New(),
	}
}

// Register mounts the session routes on the router.
func (h *HTTPHandler) Register(r fiber.Router) {
	r.Post("/classes/:classID/sessions", h.Create)
	r.Get("/classes/:classID/sessions", h.List)
	r.Get("/sessions/:id", h.Get)
	r.Post("/sessions/:id/activate", h.Activate)
	r.Post("/sessions/:id/extend", h.Extend)
	r.Post("/sessions/:id/deactivate", h.Deactivate)
}

type createSessionRequest struct {
	Title         string    `json:"title" validate:"required"`
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
	DurationMin   int       `json:"duration_min" validate:"omitempty,gt=0"`
	RadiusM       float64   `json:"radius_m" validate:"omitempty,gt=0"`
}

type activateRequest struct {
	Lat         float64 `json:"lat" validate:"min=-90,max=90"`
	Lng         float64 `json:"lng" validate:"min=-180,max=180"`
	RadiusM     float64 `json:"radius_m" validate:"omitempty,gt=0"`
	DurationMin int     `json:"duration_min" validate:"omitempty,gt=0"`
}

type extendRequest struct {
	ExtraMinutes int `json:"extra_minutes" validate:"required,gt=0"`
}

type sessionResponse struct {
	ID            string     `json:"id"`
	ClassID       string     `json:"class_id"`
	Title         string     `json:"title"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	DurationMin   int        `json:"duration_min"`
	RadiusM       float64    `json:"radius_m"`
	State         string     `json:"state"`
	AnchorLat     *float64   `json:"anchor_lat,omitempty"`
	AnchorLng     *float64   `json:"anchor_lng,omitempty"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func toSessionResponse(s *domain.Session, state domain.State) *sessionResponse {
	return &sessionResponse{
		ID:            s.ID,
		ClassID:       s.ClassID,
		Title:         s.Title,
		ScheduledDate: s.ScheduledDate,
		DurationMin:   s.DurationMin,
		RadiusM:       s.RadiusM,
		State:         string(state),
		AnchorLat:     s.AnchorLat,
		AnchorLng:     s.AnchorLng,
		ActivatedAt:   s.ActivatedAt,
		ExpiresAt:     s.ExpiresAt,
	}
}

// Create creates an idle session for the class. Instructor only.
func (h *HTTPHandler) Create(c *fiber.Ctx) error {
	ctx := c.UserContext()
	classID := c.Params("classID")
	if err := rbac.RequireInstructor(ctx, h.enrollments, middleware.UserID(c), classID); err != nil {
		return mapError(err)
	}
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.CreateSession(ctx, classID, req.Title, req.ScheduledDate, req.DurationMin, req.RadiusM)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(sess, domain.StateIdle))
}

// List returns the class's sessions with their derived states. Any enrolled
// user may list.
func (h *HTTPHandler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()
	classID := c.Params("classID")
	if err := rbac.RequireEnrolled(ctx, h.enrollments, middleware.UserID(c), classID); err != nil {
		return mapError(err)
	}
	sessions, err := h.svc.ListSessions(ctx, classID)
	if err != nil {
		return mapError(err)
	}
	now := time.Now().UTC()
	out := make([]*sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s, s.StateAt(now)))
	}
	return c.JSON(out)
}

// Get returns one session with its derived state. Any enrolled user may read.
func (h *HTTPHandler) Get(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess, state, err := h.svc.GetSession(ctx, c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	if err := rbac.RequireEnrolled(ctx, h.enrollments, middleware.UserID(c), sess.ClassID); err != nil {
		return mapError(err)
	}
	return c.JSON(toSessionResponse(sess, state))
}

// Activate opens the session for check-ins at the instructor's location.
func (h *HTTPHandler) Activate(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("id")
	sess, _, err := h.svc.GetSession(ctx, sessionID)
	if err != nil {
		return mapError(err)
	}
	userID := middleware.UserID(c)
	if err := rbac.RequireInstructor(ctx, h.enrollments, userID, sess.ClassID); err != nil {
		return mapError(err)
	}
	var req activateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	activated, err := h.svc.Activate(ctx, sessionID, req.Lat, req.Lng, req.RadiusM, req.DurationMin)
	if err != nil {
		return mapError(err)
	}
	h.logEvent(ctx, sess.ClassID, userID, "session.activate", sessionID,
		fmt.Sprintf(`{"radius_m":%g,"expires_at":%q}`, activated.RadiusM, activated.ExpiresAt.Format(time.RFC3339)))
	return c.JSON(toSessionResponse(activated, domain.StateActive))
}

// Extend pushes the admission deadline forward. Instructor only.
func (h *HTTPHandler) Extend(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("id")
	sess, _, err := h.svc.GetSession(ctx, sessionID)
	if err != nil {
		return mapError(err)
	}
	userID := middleware.UserID(c)
	if err := rbac.RequireInstructor(ctx, h.enrollments, userID, sess.ClassID); err != nil {
		return mapError(err)
	}
	var req extendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	newExpiry, err := h.svc.Extend(ctx, sessionID, req.ExtraMinutes)
	if err != nil {
		return mapError(err)
	}
	h.logEvent(ctx, sess.ClassID, userID, "session.extend", sessionID,
		fmt.Sprintf(`{"extra_minutes":%d}`, req.ExtraMinutes))
	return c.JSON(fiber.Map{"expires_at": newExpiry})
}

// Deactivate closes the session early. Instructor only; idempotent.
func (h *HTTPHandler) Deactivate(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("id")
	sess, _, err := h.svc.GetSession(ctx, sessionID)
	if err != nil {
		return mapError(err)
	}
	userID := middleware.UserID(c)
	if err := rbac.RequireInstructor(ctx, h.enrollments, userID, sess.ClassID); err != nil {
		return mapError(err)
	}
	if err := h.svc.Deactivate(ctx, sessionID); err != nil {
		return mapError(err)
	}
	h.logEvent(ctx, sess.ClassID, userID, "session.deactivate", sessionID, "{}")
	return c.SendStatus(fiber.StatusNoContent)
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
	case errors.Is(err, service.ErrAlreadyActive), errors.Is(err, service.ErrNotActive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrUnauthenticated):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, rbac.ErrNotEnrolled), errors.Is(err, rbac.ErrNotInstructor):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}
	return err
}
