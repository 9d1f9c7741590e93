package memory

import (
	"context"
	"sync"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
)

// Locker is an in-process per-user lock. Each user gets a one-slot
// channel so waiting can be cancelled through the context.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

var _ progress.UserLocker = (*Locker)(nil)

// NewLocker creates a new Locker.
func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

// Lock implements progress.UserLocker.
func (l *Locker) Lock(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[userID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[userID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(userID, s)
		})
	}, nil
}

// release drops a reference and forgets idle users.
func (l *Locker) release(userID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, userID)
	}
}
