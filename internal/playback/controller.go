package playback

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/yomu-app/koe/internal/observe"
)

// session is one play request. It lives until its audio completes, fails or
// is cancelled.
type session struct {
	id     uint64
	text   string
	cancel context.CancelFunc
}

// Controller plays text with at most one live session. A new request for
// different text supersedes the live one; a request for the same text is
// ignored while it plays.
type Controller struct {
	chain   *Chain
	logger  *log.Logger
	metrics *observe.Metrics

	base       context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	nextID  uint64
	current *session
	closed  bool

	// outMu is held while a handle is audible.
	outMu sync.Mutex

	wg sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics the controller records to.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController creates a controller resolving through chain.
func NewController(chain *Chain, opts ...Option) *Controller {
	c := &Controller{chain: chain}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = log.Default().WithPrefix("playback")
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.base, c.cancelBase = context.WithCancel(context.Background())
	return c
}

// Play starts playing text. It returns immediately; resolution and output
// happen on a session goroutine. Empty or whitespace text is ignored.
func (c *Controller) Play(text string) {
	if strings.TrimSpace(text) == "" {
		c.logger.Debug("ignoring empty play request")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.current != nil {
		if c.current.text == text {
			c.logger.Debug("already playing", "text", text)
			return
		}
		c.logger.Debug("superseding session", "id", c.current.id, "text", c.current.text, "by", text)
		c.current.cancel()
	}

	ctx, cancel := context.WithCancel(c.base)
	c.nextID++
	s := &session{id: c.nextID, text: text, cancel: cancel}
	c.current = s

	c.wg.Add(1)
	go c.run(ctx, s)
}

// Stop cancels the live session, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}
	c.logger.Debug("stopping session", "id", c.current.id, "text", c.current.text)
	c.current.cancel()
	c.current = nil
}

// Active returns the text of the live session.
func (c *Controller) Active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return "", false
	}
	return c.current.text, true
}

// Wait blocks until every session goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops playback and waits for sessions to finish. Later Play calls
// are ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.current = nil
	c.mu.Unlock()

	c.cancelBase()
	c.wg.Wait()
	return nil
}

func (c *Controller) run(ctx context.Context, s *session) {
	defer c.wg.Done()
	defer c.finish(s)

	c.metrics.ActivePlayback.Add(ctx, 1)
	defer c.metrics.ActivePlayback.Add(context.Background(), -1)
	c.metrics.RecordSession(ctx, observe.OutcomeStarted)

	res, err := c.chain.Resolve(ctx, s.text)
	for {
		if err != nil {
			c.end(ctx, s, err)
			return
		}

		err = c.output(ctx, res.Handle)
		if err == nil || ctx.Err() != nil {
			c.end(ctx, s, err)
			return
		}

		c.logger.Warn("playback failed, trying next stage",
			"text", s.text, "source", res.Source, "code", Classify(err), "error", err)
		res, err = c.chain.ResolveFrom(ctx, s.text, res.Stage+1)
	}
}

// output plays h while holding the output lock. A session superseded while
// it waited for the lock stays silent.
func (c *Controller) output(ctx context.Context, h Handle) error {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return h.Play(ctx)
}

func (c *Controller) end(ctx context.Context, s *session, err error) {
	outcome := observe.OutcomeCompleted
	switch {
	case ctx.Err() != nil:
		outcome = observe.OutcomeCancelled
	case err != nil:
		outcome = observe.OutcomeFailed
	}
	c.metrics.RecordSession(context.Background(), outcome)
	c.logger.Debug("session ended", "id", s.id, "text", s.text, "outcome", outcome)
}

// finish drops s if it is still the live session. A superseded session
// never touches its successor.
func (c *Controller) finish(s *session) {
	c.mu.Lock()
	if c.current != nil && c.current.id == s.id {
		c.current = nil
	}
	c.mu.Unlock()
	s.cancel()
}
