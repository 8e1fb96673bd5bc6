// Package timer schedules one-shot wake-ups for a session loop. The
// session has no repeating work; everything it defers — idle
// timeouts, delayed prompts — is "deliver this event later unless a
// keystroke cancels it first".
package timer

import (
	"sync"
	"time"

	"github.com/drake/vty/event"
)

// Service owns the pending wake-ups for one session: ID generation,
// scheduling, cancellation. Fired wake-ups are delivered as session
// events on the channel given at construction.
type Service struct {
	out chan<- event.Event

	mu      sync.Mutex
	pending map[int]*time.Timer
	nextID  int
	stopped bool
}

// NewService creates a Service delivering to the session event bus.
func NewService(out chan<- event.Event) *Service {
	return &Service{
		out:     out,
		pending: make(map[int]*time.Timer),
	}
}

// After schedules ev for delivery after d. Returns an ID for Cancel.
func (s *Service) After(d time.Duration, ev event.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0
	}

	s.nextID++
	id := s.nextID
	s.pending[id] = time.AfterFunc(d, func() {
		s.fire(id, ev)
	})
	return id
}

// fire delivers one wake-up. The send happens under the lock so that
// once CancelAll has returned, no event can reach a bus its owner is
// tearing down.
func (s *Service) fire(id int, ev event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if _, ok := s.pending[id]; !ok {
		return // cancelled before firing
	}
	delete(s.pending, id)

	s.out <- ev
}

// Cancel stops a pending wake-up. Unknown or already-fired IDs are
// ignored.
func (s *Service) Cancel(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.pending[id]; ok {
		t.Stop()
		delete(s.pending, id)
	}
}

// CancelAll stops every pending wake-up and shuts the service down.
// After it returns, nothing will be sent on the event bus.
func (s *Service) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.pending {
		t.Stop()
	}
	s.pending = make(map[int]*time.Timer)
	s.stopped = true
}

// Active returns the number of pending wake-ups.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
