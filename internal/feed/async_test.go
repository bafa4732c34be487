package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"presensi-praktikum/internal/feed/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.CheckInEvent
	emitErr error
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.CheckInEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.CheckInEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	event := &domain.CheckInEvent{SessionID: "sess-1", Status: "hadir"}

	// Should not panic.
	EmitAsync(nil, context.Background(), event)
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}

	EmitAsync(emitter, context.Background(), nil)
	time.Sleep(10 * time.Millisecond)

	if got := emitter.getEvents(); len(got) != 0 {
		t.Errorf("expected 0 events, got %d", len(got))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	event := &domain.CheckInEvent{
		SessionID: "sess-1",
		ClassID:   "class-1",
		UserID:    "user-1",
		Status:    "hadir",
		Source:    "checkin",
	}

	EmitAsync(emitter, context.Background(), event)
	time.Sleep(100 * time.Millisecond)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].SessionID != "sess-1" {
		t.Errorf("session_id = %q, want %q", events[0].SessionID, "sess-1")
	}
	if events[0].Status != "hadir" {
		t.Errorf("status = %q, want %q", events[0].Status, "hadir")
	}
}

func TestEmitAsync_UsesBackgroundContext(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // request context gone before the emit runs

	EmitAsync(emitter, ctx, &domain.CheckInEvent{SessionID: "sess-1"})
	time.Sleep(100 * time.Millisecond)

	if got := emitter.getEvents(); len(got) != 1 {
		t.Errorf("expected 1 event (context.Background used), got %d", len(got))
	}
}

func TestEmitAsync_ErrorHandling(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: context.DeadlineExceeded}

	// Error is logged, never surfaced to the caller.
	EmitAsync(emitter, context.Background(), &domain.CheckInEvent{SessionID: "sess-1"})
	time.Sleep(100 * time.Millisecond)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, context.Background(), &domain.CheckInEvent{SessionID: "sess-1"})
		}()
	}
	wg.Wait()
	time.Sleep(200 * time.Millisecond)

	if got := emitter.getEvents(); len(got) != 10 {
		t.Errorf("expected 10 events, got %d", len(got))
	}
}
