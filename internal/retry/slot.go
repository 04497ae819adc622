package retry

import (
	"context"
	"sync"
)

// Slot allows at most one in-flight logical request. Begin cancels whatever
// holds the slot (cause ErrSuperseded) before handing out a fresh context.
type Slot struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelCauseFunc
}

// Begin claims the slot. The returned release func must be called on every exit path;
// it is safe to call more than once.
func (s *Slot) Begin(parent context.Context) (context.Context, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel(ErrSuperseded)
	}
	ctx, cancel := context.WithCancelCause(parent)
	s.seq++
	id := s.seq
	s.cancel = cancel

	return ctx, func() {
		s.mu.Lock()
		if s.seq == id {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel(context.Canceled)
	}
}

// Cancel abandons the current holder, if any.
func (s *Slot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel(ErrSuperseded)
		s.cancel = nil
	}
}

// InFlight reports whether a request currently holds the slot.
func (s *Slot) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
