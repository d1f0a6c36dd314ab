// Package hint consumes the token-streaming hint service.
//
// A Client owns at most one active Session. Starting a session supersedes the
// previous one: the old session stops accumulating text, its transport request
// is cancelled and its further frames never reach the observer.
package hint

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/logx"
)

// DefaultTimeout bounds one hint stream from request to last frame.
const DefaultTimeout = 30 * time.Second

// FallbackMessage is shown when the hint service cannot be reached.
const FallbackMessage = "AI suggestions unavailable. Keep coding!"

var (
	ErrDisabled       = errors.New("hints are disabled")
	ErrMissingProblem = errors.New("problem statement is empty")
	ErrMissingSource  = errors.New("source is empty")
	ErrSessionActive  = errors.New("a hint session is already active")
	ErrClosed         = errors.New("hint client is closed")
)

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	Logger  pslog.Logger
	// Observer receives the current session's view after every visible change.
	// Calls are serialized and only ever describe the client's current session.
	// Observer must not call back into the Client.
	Observer func(View)
}

// Client runs hint sessions against a Service.
type Client struct {
	svc      Service
	timeout  time.Duration
	log      pslog.Logger
	observer func(View)

	// notifyMu orders observer calls; it is taken before mu.
	notifyMu sync.Mutex

	mu      sync.Mutex
	enabled bool
	closed  bool
	current *Session

	wg sync.WaitGroup
}

// NewClient creates an enabled Client.
func NewClient(svc Service, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		svc:      svc,
		timeout:  timeout,
		log:      logx.OrDiscard(opts.Logger),
		observer: opts.Observer,
		enabled:  true,
	}
}

func validate(req Request) error {
	if strings.TrimSpace(req.ProblemStatement) == "" {
		return ErrMissingProblem
	}
	if strings.TrimSpace(req.Code) == "" {
		return ErrMissingSource
	}
	return nil
}

// Start supersedes any active session and starts a new one. The stream runs in
// the background, detached from ctx's cancellation but bounded by the client
// timeout; ctx's values (such as its logger) are kept.
func (c *Client) Start(ctx context.Context, req Request) (*Session, error) {
	return c.start(ctx, req, false)
}

// RequestManual starts a session unless one is already active, in which case
// it returns ErrSessionActive and leaves the active session alone.
func (c *Client) RequestManual(ctx context.Context, req Request) (*Session, error) {
	return c.start(ctx, req, true)
}

func (c *Client) start(ctx context.Context, req Request, manual bool) (*Session, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return nil, ErrClosed
	case !c.enabled:
		c.mu.Unlock()
		return nil, ErrDisabled
	case manual && c.current != nil && c.current.State().Active():
		c.mu.Unlock()
		return nil, ErrSessionActive
	}

	streamCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	s := newSession(uuid.NewString(), req, cancel)
	s.advance(StateRequesting)
	prev := c.current
	c.current = s
	c.wg.Add(1)
	c.mu.Unlock()

	if prev != nil && prev.finish(StateSuperseded, "") {
		c.log.Debug("hint session superseded", "hint_session", prev.ID, "by", s.ID)
	}
	c.notifyLocked(s)

	go c.run(streamCtx, s)
	return s, nil
}

func (c *Client) run(ctx context.Context, s *Session) {
	defer c.wg.Done()
	log := c.log.With("hint_session", s.ID)

	body, err := c.svc.Stream(ctx, s.Request)
	if err != nil {
		c.fail(log, s, err)
		return
	}
	defer body.Close()
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	if !c.update(s, func() bool { return s.advance(StateStreaming) }) {
		return
	}

	frames := NewFrameReader(body, log)
	for {
		f, err := frames.Next()
		if errors.Is(err, io.EOF) {
			c.update(s, func() bool { return s.finish(StateCompleted, "") })
			return
		}
		if err != nil {
			c.fail(log, s, err)
			return
		}
		switch f.Type {
		case FrameToken:
			if !c.update(s, func() bool { return s.appendToken(f.Content) }) && s.State().Terminal() {
				return
			}
		case FrameDone:
			c.update(s, func() bool { return s.finish(StateCompleted, "") })
			return
		case FrameError:
			msg := f.Error
			if msg == "" {
				msg = FallbackMessage
			}
			log.Warn("hint service reported an error", "err", msg)
			c.update(s, func() bool { return s.finish(StateFailed, msg) })
			return
		default:
			log.Trace("ignoring hint frame", "type", string(f.Type))
		}
	}
}

func (c *Client) fail(log pslog.Logger, s *Session, err error) {
	if s.State().Terminal() {
		return
	}
	log.Warn("hint stream failed", "err", err)
	c.update(s, func() bool { return s.finish(StateFailed, FallbackMessage) })
}

// update applies fn and notifies the observer when fn reports a change to the
// current session.
func (c *Client) update(s *Session, fn func() bool) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if !fn() {
		return false
	}
	c.notifyLocked(s)
	return true
}

func (c *Client) notifyLocked(s *Session) {
	if c.observer == nil {
		return
	}
	c.mu.Lock()
	current := c.current == s
	c.mu.Unlock()
	if current {
		c.observer(s.View())
	}
}

// Current returns the current session, or nil.
func (c *Client) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Text returns the current session's accumulated text.
func (c *Client) Text() string {
	if s := c.Current(); s != nil {
		return s.Text()
	}
	return ""
}

// Enabled reports whether new sessions may start.
func (c *Client) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled toggles hints. Disabling supersedes the active session.
func (c *Client) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
	if !enabled {
		c.supersedeCurrent(false)
	}
}

// Reset supersedes the active session and clears the current suggestion.
func (c *Client) Reset() {
	c.supersedeCurrent(true)
}

func (c *Client) supersedeCurrent(clear bool) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	s := c.current
	if clear {
		c.current = nil
	}
	c.mu.Unlock()
	if s == nil {
		return
	}
	if s.finish(StateSuperseded, "") && !clear {
		c.notifyLocked(s)
	}
	if clear && c.observer != nil {
		c.observer(View{State: StateIdle})
	}
}

// Close supersedes the active session and waits for background streams to
// return.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Reset()
	c.wg.Wait()
}
