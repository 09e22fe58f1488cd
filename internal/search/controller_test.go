package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sipanit/sipanit-client/internal/services/events"
)

type snapshotSource struct {
	mu       sync.Mutex
	snapshot []events.Event
	calls    int
}

func (s *snapshotSource) List(ctx context.Context, params events.ListParams) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.snapshot, nil
}

func (s *snapshotSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// manualScheduler holds scheduled callbacks until fired, standing in for the
// debounce timer.
type manualScheduler struct {
	mu        sync.Mutex
	pending   []func()
	cancelled int
}

func (m *manualScheduler) schedule(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	index := len(m.pending)
	m.pending = append(m.pending, fn)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.pending[index] != nil {
			m.pending[index] = nil
			m.cancelled++
		}
	}
}

// fire runs every still-pending callback, as if all debounces elapsed.
func (m *manualScheduler) fire() {
	m.mu.Lock()
	pending := make([]func(), len(m.pending))
	copy(pending, m.pending)
	for i := range m.pending {
		m.pending[i] = nil
	}
	m.mu.Unlock()
	for _, fn := range pending {
		if fn != nil {
			fn()
		}
	}
}

func gala() []events.Event {
	return []events.Event{
		{ID: "ev-1", Name: "Summer Gala", Venue: "Grand Hall", Status: "published"},
		{ID: "ev-2", Name: "Winter Ball", Venue: "Crystal Room", Status: "draft"},
	}
}

func TestController_DebouncedSearch(t *testing.T) {
	t.Parallel()

	source := &snapshotSource{snapshot: gala()}
	sched := &manualScheduler{}
	ctrl := NewController(source, Options{Schedule: sched.schedule}, nil, nil)

	ctrl.SetQuery(context.Background(), "Gala")
	if source.callCount() != 0 {
		t.Fatalf("fetch must wait for the debounce")
	}

	sched.fire()
	if source.callCount() != 1 {
		t.Fatalf("expected one fetch after debounce, got %d", source.callCount())
	}

	results := ctrl.Results()
	if len(results) != 1 || results[0].Name != "Summer Gala" {
		t.Fatalf("expected exactly Summer Gala, got %+v", results)
	}
	if !ctrl.Open() {
		t.Fatalf("expected dropdown open")
	}
}

func TestController_MinQueryLength(t *testing.T) {
	t.Parallel()

	source := &snapshotSource{snapshot: gala()}
	sched := &manualScheduler{}
	ctrl := NewController(source, Options{Schedule: sched.schedule}, nil, nil)

	ctrl.SetQuery(context.Background(), "G")
	sched.fire()
	if source.callCount() != 0 {
		t.Fatalf("single characters must never trigger a fetch")
	}
	if ctrl.Open() {
		t.Fatalf("dropdown must stay closed below the minimum")
	}

	// Shrinking an open query below the minimum closes the list.
	ctrl.SetQuery(context.Background(), "Gala")
	sched.fire()
	if !ctrl.Open() {
		t.Fatalf("expected dropdown open")
	}
	ctrl.SetQuery(context.Background(), "G")
	if ctrl.Open() {
		t.Fatalf("expected dropdown closed after shrinking the query")
	}
}

func TestController_KeystrokesCancelPendingDebounce(t *testing.T) {
	t.Parallel()

	source := &snapshotSource{snapshot: gala()}
	sched := &manualScheduler{}
	ctrl := NewController(source, Options{Schedule: sched.schedule}, nil, nil)

	ctrl.SetQuery(context.Background(), "Su")
	ctrl.SetQuery(context.Background(), "Sum")
	ctrl.SetQuery(context.Background(), "Summ")

	sched.fire()
	if source.callCount() != 1 {
		t.Fatalf("expected only the last keystroke to fetch, got %d", source.callCount())
	}
	if sched.cancelled != 2 {
		t.Fatalf("expected two cancelled debounces, got %d", sched.cancelled)
	}
}

func TestController_SelectNavigatesAndClears(t *testing.T) {
	t.Parallel()

	source := &snapshotSource{snapshot: gala()}
	sched := &manualScheduler{}
	ctrl := NewController(source, Options{Schedule: sched.schedule}, nil, nil)

	ctrl.SetQuery(context.Background(), "Gala")
	sched.fire()

	target := ctrl.Select(ctrl.Results()[0])
	if target != "/events/ev-1" {
		t.Fatalf("unexpected navigation target: %s", target)
	}
	if ctrl.Open() || len(ctrl.Results()) != 0 {
		t.Fatalf("expected dropdown closed and cleared after select")
	}
}

func TestController_CloseCancelsPending(t *testing.T) {
	t.Parallel()

	source := &snapshotSource{snapshot: gala()}
	sched := &manualScheduler{}
	ctrl := NewController(source, Options{Schedule: sched.schedule}, nil, nil)

	ctrl.SetQuery(context.Background(), "Gala")
	ctrl.Close()
	sched.fire()

	if source.callCount() != 0 {
		t.Fatalf("expected no fetch after close, got %d", source.callCount())
	}
}

func TestController_RealTimerDebounce(t *testing.T) {
	t.Parallel()

	source := &snapshotSource{snapshot: gala()}
	var mu sync.Mutex
	var delivered [][]Result
	ctrl := NewController(source, Options{Debounce: 5 * time.Millisecond}, func(results []Result) {
		mu.Lock()
		delivered = append(delivered, results)
		mu.Unlock()
	}, nil)

	ctrl.SetQuery(context.Background(), "ball")

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		done := len(delivered) > 0
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("debounced fetch never fired")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered[0]) != 1 || delivered[0][0].Name != "Winter Ball" {
		t.Fatalf("unexpected results: %+v", delivered[0])
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	t.Run("matches name case-insensitively", func(t *testing.T) {
		t.Parallel()
		results := Filter(gala(), "gala", false, 5)
		if len(results) != 1 || results[0].EventID != "ev-1" {
			t.Fatalf("unexpected results: %+v", results)
		}
	})

	t.Run("venue and status matching is opt-in", func(t *testing.T) {
		t.Parallel()
		if results := Filter(gala(), "crystal", false, 5); len(results) != 0 {
			t.Fatalf("expected no venue match by default, got %+v", results)
		}
		results := Filter(gala(), "crystal", true, 5)
		if len(results) != 1 || results[0].EventID != "ev-2" {
			t.Fatalf("expected venue match, got %+v", results)
		}
		if results := Filter(gala(), "draft", true, 5); len(results) != 1 {
			t.Fatalf("expected status match, got %+v", results)
		}
	})

	t.Run("caps results", func(t *testing.T) {
		t.Parallel()
		snapshot := make([]events.Event, 0, 8)
		for i := 0; i < 8; i++ {
			snapshot = append(snapshot, events.Event{ID: "ev", Name: "Annual Meetup"})
		}
		if results := Filter(snapshot, "meetup", false, 5); len(results) != 5 {
			t.Fatalf("expected cap of 5, got %d", len(results))
		}
	})
}
