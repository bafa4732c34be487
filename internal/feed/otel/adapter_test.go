package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"presensi-praktikum/internal/feed/domain"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &domain.CheckInEvent{SessionID: "sess-1"}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func TestEmit_AttributeMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	event := &domain.CheckInEvent{
		SessionID:   "sess-1",
		ClassID:     "class-1",
		UserID:      "user-1",
		Status:      "telat",
		DistanceM:   42.5,
		CheckedInAt: now,
		Source:      "checkin",
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec

	if !rec.Timestamp().Equal(now) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), now)
	}

	attrs := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	wantStr := map[string]string{
		"session_id": "sess-1", "class_id": "class-1", "user_id": "user-1",
		"status": "telat", "source": "checkin",
	}
	for k, v := range wantStr {
		if attrs[k].AsString() != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k].AsString(), v)
		}
	}
	if attrs["distance_m"].AsFloat64() != 42.5 {
		t.Errorf("attr distance_m = %v, want 42.5", attrs["distance_m"].AsFloat64())
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	event := &domain.CheckInEvent{SessionID: "sess-1", Status: "hadir"}

	before := time.Now().UTC()
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()

	ts := cap.rec.Timestamp()
	if ts.IsZero() {
		t.Error("timestamp should be set when CheckedInAt is zero")
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
}

func TestEmit_EmptyFieldsOmitted(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	event := &domain.CheckInEvent{Status: "hadir"}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	attrs := make(map[string]string)
	cap.rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	if _, ok := attrs["session_id"]; ok {
		t.Error("session_id should not be set for empty string")
	}
	if attrs["status"] != "hadir" {
		t.Errorf("status = %q, want %q", attrs["status"], "hadir")
	}
}
