package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"presensi-praktikum/internal/audit"
	"presensi-praktikum/internal/class/domain"
	"presensi-praktikum/internal/class/service"
	enrollmentdomain "presensi-praktikum/internal/enrollment/domain"
	"presensi-praktikum/internal/platform/rbac"
	"presensi-praktikum/internal/server/middleware"
)

// ClassService is the class management surface the HTTP handler needs.
type ClassService interface {
	CreateClass(ctx context.Context, name, creatorID string) (*domain.Class, error)
	GetClass(ctx context.Context, classID string) (*domain.Class, error)
	GetConfig(ctx context.Context, classID string) (*domain.Config, error)
	UpdateConfig(ctx context.Context, classID string, cfg *domain.Config) (*domain.Config, error)
	Enroll(ctx context.Context, classID, userID string, role enrollmentdomain.Role) (*enrollmentdomain.Enrollment, error)
	ListEnrollments(ctx context.Context, classID string) ([]*enrollmentdomain.Enrollment, error)
}

// HTTPHandler serves class, config, and roster routes.
type HTTPHandler struct {
	svc         ClassService
	enrollments rbac.EnrollmentGetter
	audit       audit.AuditLogger
	validate    *validator.Validate
}

// NewHTTPHandler returns a class handler. auditLogger may be nil.
func NewHTTPHandler(svc ClassService, enrollments rbac.EnrollmentGetter, auditLogger audit.AuditLogger) *HTTPHandler {
	return &HTTPHandler{
		svc:         svc,
		enrollments: enrollments,
		audit:       auditLogger,
		validate:    validator.New(),
	}
}

// Register mounts the class routes on the router.
func (h *HTTPHandler) Register(r fiber.Router) {
	r.Post("/classes", h.Create)
	r.Get("/classes/:classID", h.Get)
	r.Get("/classes/:classID/config", h.GetConfig)
	r.Put("/classes/:classID/config", h.UpdateConfig)
	r.Post("/classes/:classID/enrollments", h.Enroll)
	r.Get("/classes/:classID/enrollments", h.ListEnrollments)
}

type createClassRequest struct {
	Name string `json:"name" validate:"required"`
}

type configRequest struct {
	TotalSessionsPlanned int     `json:"total_sessions_planned" validate:"omitempty,gt=0"`
	MinAttendancePct     int     `json:"min_attendance_pct" validate:"omitempty,min=0,max=100"`
	GraceMinutes         int     `json:"grace_minutes" validate:"omitempty,min=0"`
	DefaultRadiusM       float64 `json:"default_radius_m" validate:"omitempty,gt=0"`
	DefaultDurationMin   int     `json:"default_duration_min" validate:"omitempty,gt=0"`
}

type enrollRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=student instructor"`
}

// Create creates a class; the caller becomes its instructor.
func (h *HTTPHandler) Create(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := middleware.UserID(c)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, rbac.ErrUnauthenticated.Error())
	}
	var req createClassRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreateClass(ctx, req.Name, userID)
	if err != nil {
		return mapError(err)
	}
	h.logEvent(ctx, created.ID, userID, "class.create", created.ID, fmt.Sprintf(`{"name":%q}`, req.Name))
	return c.Status(fiber.StatusCreated).JSON(created)
}

// Get returns the class. Any enrolled user may read.
func (h *HTTPHandler) Get(c *fiber.Ctx) error {
	ctx := c.UserContext()
	classID := c.Params("classID")
	if err := rbac.RequireEnrolled(ctx, h.enrollments, middleware.UserID(c), classID); err != nil {
		return mapError(err)
	}
	class, err := h.svc.GetClass(ctx, classID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(class)
}

// GetConfig returns the class's effective attendance config.
func (h *HTTPHandler) GetConfig(c *fiber.Ctx) error {
	ctx := c.UserContext()
	classID := c.Params("classID")
	if err := rbac.RequireEnrolled(ctx, h.enrollments, middleware.UserID(c), classID); err != nil {
		return mapError(err)
	}
	cfg, err := h.svc.GetConfig(ctx, classID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(cfg)
}

// UpdateConfig saves the class's attendance config. Instructor only.
func (h *HTTPHandler) UpdateConfig(c *fiber.Ctx) error {
	ctx := c.UserContext()
	classID := c.Params("classID")
	userID := middleware.UserID(c)
	if err := rbac.RequireInstructor(ctx, h.enrollments, userID, classID); err != nil {
		return mapError(err)
	}
	var req configRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	cfg, err := h.svc.UpdateConfig(ctx, classID, &domain.Config{
		TotalSessionsPlanned: req.TotalSessionsPlanned,
		MinAttendancePct:     req.MinAttendancePct,
		GraceMinutes:         req.GraceMinutes,
		DefaultRadiusM:       req.DefaultRadiusM,
		DefaultDurationMin:   req.DefaultDurationMin,
	})
	if err != nil {
		return mapError(err)
	}
	h.logEvent(ctx, classID, userID, "class.config.update", classID,
		fmt.Sprintf(`{"total_sessions_planned":%d,"min_attendance_pct":%d}`,
			cfg.TotalSessionsPlanned, cfg.MinAttendancePct))
	return c.JSON(cfg)
}

// Enroll adds a user to the class roster. Instructor only.
func (h *HTTPHandler) Enroll(c *fiber.Ctx) error {
	ctx := c.UserContext()
	classID := c.Params("classID")
	userID := middleware.UserID(c)
	if err := rbac.RequireInstructor(ctx, h.enrollments, userID, classID); err != nil {
		return mapError(err)
	}
	var req enrollRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	e, err := h.svc.Enroll(ctx, classID, req.UserID, enrollmentdomain.Role(req.Role))
	if err != nil {
		return mapError(err)
	}
	h.logEvent(ctx, classID, userID, "class.enroll", classID,
		fmt.Sprintf(`{"user_id":%q,"role":%q}`, req.UserID, req.Role))
	return c.Status(fiber.StatusCreated).JSON(e)
}

// ListEnrollments returns the class roster. Instructor only.
func (h *HTTPHandler) ListEnrollments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	classID := c.Params("classID")
	if err := rbac.RequireInstructor(ctx, h.enrollments, middleware.UserID(c), classID); err != nil {
		return mapError(err)
	}
	roster, err := h.svc.ListEnrollments(ctx, classID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(roster)
}

func (h *HTTPHandler) logEvent(ctx context.Context, classID, userID, action, resource, metadata string) {
	if h.audit == nil {
		return
	}
	h.audit.LogEvent(ctx, classID, userID, action, resource, metadata)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyEnrolled):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidRole):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrUnauthenticated):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, rbac.ErrNotEnrolled), errors.Is(err, rbac.ErrNotInstructor):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}
	return err
}
