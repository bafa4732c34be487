package feed

import (
	"context"

	"presensi-praktikum/internal/feed/domain"
)

// EventEmitter emits check-in feed events (e.g. to Kafka or OTel Logs).
// Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.CheckInEvent) error
}
