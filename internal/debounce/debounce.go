// Package debounce coalesces bursts of events into a single delayed action.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet period after the last edit before a hint fires.
const DefaultDelay = 2 * time.Second

// Scheduler holds at most one pending action. Every Schedule call cancels the
// previous timer and arms a new one, so only the last call in a burst runs.
//
// The zero value is ready to use.
type Scheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Schedule arms action to run once after delay, replacing any pending action.
// It never blocks and never runs action synchronously.
func (s *Scheduler) Schedule(delay time.Duration, action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A timer that already fired cannot be stopped; the generation check
		// drops callbacks whose slot has since been re-armed or cancelled.
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		action()
	})
}

// Cancel discards the pending action, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
}

// Pending reports whether an action is armed and has not fired yet.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
