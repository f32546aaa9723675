package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Unit is one scheduled work item. Done is closed when the unit finishes;
// Err is valid only after Done is closed.
type Unit struct {
	name string
	done chan struct{}
	err  error
}

func (u *Unit) Done() <-chan struct{} { return u.done }

// Err reports the unit's outcome. Callers must observe Done first.
func (u *Unit) Err() error { return u.err }

// Wait blocks until the unit finishes or ctx is cancelled. Cancellation
// abandons the wait only; the unit itself still runs to completion.
func (u *Unit) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-u.done:
		return u.err
	}
}

// Scheduler serializes submitted units into one strict FIFO chain so that at
// most one unit is ever executing. Each submission captures the previous tail
// and installs itself as the new tail; a unit starts only after its
// predecessor finished, regardless of how the predecessor ended.
type Scheduler struct {
	mu     sync.Mutex
	tail   <-chan struct{}
	logger *zap.Logger
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// Submit enqueues fn behind every previously submitted unit and returns
// immediately. Unit failures are logged and swallowed here; they never block
// the chain. Callers that need the outcome wait on the returned unit.
func (s *Scheduler) Submit(name string, fn func() error) *Unit {
	u := &Unit{name: name, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.tail
	s.tail = u.done
	s.mu.Unlock()

	go func() {
		defer close(u.done)
		if prev != nil {
			<-prev
		}
		if err := fn(); err != nil {
			u.err = err
			s.logger.Warn("scheduled unit failed",
				zap.String("unit", name),
				zap.Error(err))
		}
	}()
	return u
}
