package services

import (
	"context"
	"sync"
	"testing"
	"time"
)

// blockingSink holds every Emit until released, to fill the dispatcher buffer.
type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	seen    int
}

func (s *blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
	s.mu.Lock()
	s.seen++
	s.mu.Unlock()
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

func TestAuditDispatcher_DeliversAll(t *testing.T) {
	sink := &memorySink{}
	d := NewAuditDispatcher(sink, 32)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{Action: AuditLogin})
	}
	d.Close()

	if got := len(sink.actions()); got != 10 {
		t.Errorf("delivered %d events, expected 10", got)
	}
	if d.Dropped() != 0 {
		t.Errorf("Dropped() = %d, expected 0", d.Dropped())
	}
}

func TestAuditDispatcher_DropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewAuditDispatcher(sink, 4)

	// One event is pulled into the blocked Emit; four more fill the buffer.
	// Give the drain goroutine a moment to take the first.
	d.Emit(context.Background(), AuditEvent{Action: AuditLogin})
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 4; i++ {
		d.Emit(context.Background(), AuditEvent{Action: AuditLogin})
	}

	// The buffer is full now; this one must be dropped, not block the caller.
	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), AuditEvent{Action: AuditLogout})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}

	if d.Dropped() == 0 {
		t.Error("Dropped() = 0, expected at least 1")
	}

	close(sink.release)
	d.Close()

	if sink.count() != 5 {
		t.Errorf("sink received %d events, expected 5", sink.count())
	}
}

func TestAuditDispatcher_CloseIdempotent(t *testing.T) {
	d := NewAuditDispatcher(&memorySink{}, 8)
	d.Close()
	d.Close() // must not panic

	// Emit after Close is a refused no-op: the event must not land in the
	// buffer where nothing will ever drain it.
	d.Emit(context.Background(), AuditEvent{Action: AuditLogin})
	if n := len(d.ch); n != 0 {
		t.Errorf("%d events stranded in the buffer after Close", n)
	}
	if d.Dropped() != 0 {
		t.Errorf("Dropped() = %d, post-close emits are refused, not dropped", d.Dropped())
	}
}

func TestAuditDispatcher_EmitCloseRace(t *testing.T) {
	sink := &memorySink{}
	d := NewAuditDispatcher(sink, 4)

	const emitters = 8
	const perEmitter = 50
	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perEmitter; j++ {
				d.Emit(context.Background(), AuditEvent{Action: AuditLogin})
			}
		}()
	}
	d.Close()
	wg.Wait()

	// Every emitted event was delivered, counted as dropped, or refused
	// after close; none may sit stranded in the buffer.
	if n := len(d.ch); n != 0 {
		t.Errorf("%d events stranded in the buffer after Close", n)
	}
	delivered := uint64(len(sink.actions()))
	if delivered+d.Dropped() > emitters*perEmitter {
		t.Errorf("delivered %d + dropped %d exceeds the %d emitted", delivered, d.Dropped(), emitters*perEmitter)
	}
}

func TestAuditDispatcher_NilSafe(t *testing.T) {
	var d *AuditDispatcher
	d.Emit(context.Background(), AuditEvent{Action: AuditLogin})
	d.Close()
}
