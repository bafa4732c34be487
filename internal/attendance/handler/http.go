package handler

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"presensi-praktikum/internal/attendance/domain"
	"presensi-praktikum/internal/attendance/service"
	"presensi-praktikum/internal/platform/rbac"
	"presensi-praktikum/internal/server/middleware"
	sessiondomain "presensi-praktikum/internal/session/domain"
)

// CheckInService is the admission surface the HTTP handler needs.
type CheckInService interface {
	CheckIn(ctx context.Context, sessionID, userID string, lat, lng float64) (*domain.Attendance, error)
	ListSessionAttendance(ctx context.Context, sessionID string) ([]*domain.Attendance, error)
}

// SessionGetter resolves a session, used to find its class before the
// enrollment check.
type SessionGetter interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
}

// HTTPHandler serves the student check-in route.
type HTTPHandler struct {
	svc         CheckInService
	sessions    SessionGetter
	enrollments rbac.EnrollmentGetter
	validate    *validator.Validate
}

// NewHTTPHandler returns an attendance handler.
func NewHTTPHandler(svc CheckInService, sessions SessionGetter, enrollments rbac.EnrollmentGetter) *HTTPHandler {
	return &HTTPHandler{
		svc:         svc,
		sessions:    sessions,
		enrollments: enrollments,
		validate:    validator.New(),
	}
}

// Register mounts the attendance routes on the router.
func (h *HTTPHandler) Register(r fiber.Router) {
	r.Post("/sessions/:id/checkin", h.CheckIn)
	r.Get("/sessions/:id/attendance/raw", h.ListRaw)
}

type checkInRequest struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

type attendanceResponse struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	DistanceM   *float64   `json:"distance_m,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

// CheckIn records one admission attempt for the caller at the given GPS
// position. The caller must be enrolled in the session's class.
func (h *HTTPHandler) CheckIn(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("id")
	userID := middleware.UserID(c)

	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fiber.NewError(fiber.StatusConflict, service.ErrSessionInactive.Error())
	}
	if err := rbac.RequireEnrolled(ctx, h.enrollments, userID, sess.ClassID); err != nil {
		return mapGuardError(err)
	}

	var req checkInRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	att, err := h.svc.CheckIn(ctx, sessionID, userID, req.Lat, req.Lng)
	if err != nil {
		return writeCheckInError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(&attendanceResponse{
		ID:          att.ID,
		SessionID:   att.SessionID,
		UserID:      att.UserID,
		Status:      string(att.Status),
		DistanceM:   att.DistanceM,
		CheckedInAt: att.CheckedInAt,
	})
}

// ListRaw returns the system-recorded attendance rows for the session, before
// any override overlay. Instructor only; the resolved view lives on
// /sessions/:id/attendance.
func (h *HTTPHandler) ListRaw(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("id")
	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	if err := rbac.RequireInstructor(ctx, h.enrollments, middleware.UserID(c), sess.ClassID); err != nil {
		return mapGuardError(err)
	}
	rows, err := h.svc.ListSessionAttendance(ctx, sessionID)
	if err != nil {
		return err
	}
	out := make([]*attendanceResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, &attendanceResponse{
			ID:          a.ID,
			SessionID:   a.SessionID,
			UserID:      a.UserID,
			Status:      string(a.Status),
			DistanceM:   a.DistanceM,
			CheckedInAt: a.CheckedInAt,
		})
	}
	return c.JSON(out)
}

// writeCheckInError maps the admission pipeline's errors to HTTP responses.
// Out-of-range and duplicate rejections carry structured details so the client
// can show the distance or the original check-in time.
func writeCheckInError(c *fiber.Ctx, err error) error {
	var oor *service.OutOfRangeError
	if errors.As(err, &oor) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":      "out_of_range",
			"message":    oor.Error(),
			"distance_m": oor.DistanceM,
			"radius_m":   oor.RadiusM,
		})
	}
	var dup *service.AlreadyCheckedInError
	if errors.As(err, &dup) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":         "already_checked_in",
			"message":       dup.Error(),
			"checked_in_at": dup.CheckedInAt,
		})
	}
	switch {
	case errors.Is(err, service.ErrSessionInactive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSessionExpired):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	}
	return err
}

func mapGuardError(err error) error {
	switch {
	case errors.Is(err, rbac.ErrUnauthenticated):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, rbac.ErrNotEnrolled), errors.Is(err, rbac.ErrNotInstructor):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}
	return err
}
