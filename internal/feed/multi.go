package feed

import (
	"context"
	"errors"

	"presensi-praktikum/internal/feed/domain"
)

// Multi fans one event out to every emitter in order. All emitters run even if
// earlier ones fail; their errors are joined.
type Multi []EventEmitter

// Emit sends the event to every non-nil emitter.
func (m Multi) Emit(ctx context.Context, event *domain.CheckInEvent) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
