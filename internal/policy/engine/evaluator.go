package engine

import (
	"context"
	"time"

	attendancedomain "presensi-praktikum/internal/attendance/domain"
)

// ClassificationInput describes one admitted check-in to be classified.
type ClassificationInput struct {
	ClassID     string
	Elapsed     time.Duration // time since session activation
	GraceWindow time.Duration // class grace window for on-time arrival
	DistanceM   float64
	RadiusM     float64
}

// Evaluator classifies an admitted check-in as on time or late.
type Evaluator interface {
	// Classify returns the status for the check-in. Implementations must be
	// fail-safe: on policy errors they fall back to the built-in rule rather
	// than rejecting the check-in.
	Classify(ctx context.Context, in ClassificationInput) (attendancedomain.Status, error)
}
