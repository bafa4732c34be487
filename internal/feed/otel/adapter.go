package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"presensi-praktikum/internal/feed"
	"presensi-praktikum/internal/feed/domain"
)

// NewEventEmitter returns an EventEmitter that sends feed events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) feed.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("presensi.feed")}
}

// recordEmitter is the subset of otellog.Logger the adapter needs. Tests pass
// a capture type here instead of a full Logger.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitterWithLogger returns an EventEmitter that emits via the given
// logger directly. Used in tests to capture emitted records.
func NewEventEmitterWithLogger(logger recordEmitter) feed.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.CheckInEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the feed event to an OTel log record and emits it. Best-effort; errors are logged.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.CheckInEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CheckedInAt.IsZero() {
		rec.SetTimestamp(event.CheckedInAt)
	}
	rec.SetBody(otellog.StringValue("checkin admitted"))
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.ClassID != "" {
		rec.AddAttributes(otellog.String("class_id", event.ClassID))
	}
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.Status != "" {
		rec.AddAttributes(otellog.String("status", event.Status))
	}
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	rec.AddAttributes(otellog.Float64("distance_m", event.DistanceM))
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	e.logger.Emit(ctx, rec)
	return nil
}
