package harness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrStopped is the error of a run that was stopped by Stop or by a newer run.
var ErrStopped = errors.New("test run stopped")

// Run is one in-flight or finished harness run.
type Run struct {
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool

	mu      sync.Mutex
	results []Result
	err     error
}

// Results returns the results produced so far. Results of a stopped run stay
// valid.
func (r *Run) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

// Report summarizes the results produced so far.
func (r *Run) Report() Report {
	return Summarize(r.Results())
}

// Done is closed when the run finishes or stops.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err returns nil for a completed run and ErrStopped for a stopped one. It is
// only meaningful after Done is closed.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the run finishes or ctx ends.
func (r *Run) Wait(ctx context.Context) ([]Result, error) {
	select {
	case <-r.done:
		return r.Results(), r.Err()
	case <-ctx.Done():
		return r.Results(), ctx.Err()
	}
}

// Stopped reports whether the run was asked to stop.
func (r *Run) Stopped() bool { return r.stopped.Load() }

func (r *Run) stop() {
	r.stopped.Store(true)
	r.cancel()
}

func (r *Run) add(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

// Runner keeps at most one harness run in flight. Starting a run stops the
// previous one.
type Runner struct {
	harness *Harness

	mu      sync.Mutex
	current *Run
}

// NewRunner creates a Runner over h.
func NewRunner(h *Harness) *Runner {
	return &Runner{harness: h}
}

// Start stops any in-flight run and starts a new one in the background.
// onResult is called from the run's goroutine for each result.
func (rn *Runner) Start(ctx context.Context, prog Program, cases []TestCase, onResult func(*Run, Result)) *Run {
	ctx, cancel := context.WithCancel(ctx)
	run := &Run{cancel: cancel, done: make(chan struct{})}

	rn.mu.Lock()
	prev := rn.current
	rn.current = run
	rn.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	cases = append([]TestCase(nil), cases...)
	go func() {
		defer close(run.done)
		defer cancel()
		_, err := rn.harness.Run(ctx, prog, cases, func(res Result) {
			run.add(res)
			if onResult != nil {
				onResult(run, res)
			}
		})
		if err != nil {
			run.mu.Lock()
			run.err = ErrStopped
			run.mu.Unlock()
		}
	}()
	return run
}

// Current returns the most recently started run, or nil.
func (rn *Runner) Current() *Run {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.current
}

// IsCurrent reports whether run is the most recently started run.
func (rn *Runner) IsCurrent(run *Run) bool {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.current == run
}

// Stop cancels the in-flight run, if any.
func (rn *Runner) Stop() {
	rn.mu.Lock()
	run := rn.current
	rn.mu.Unlock()
	if run != nil {
		run.stop()
	}
}
