// Package scan runs one receipt capture at a time through recognition and
// reconciliation under a deadline.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/dsr-tracker/internal/recognition"
	"github.com/zombor/dsr-tracker/internal/reconcile"
)

// Config holds the session's tunables.
type Config struct {
	Deadline         time.Duration
	BalanceTolerance decimal.Decimal
}

// DefaultConfig returns a 15 second deadline and a one dollar tolerance.
func DefaultConfig() Config {
	return Config{
		Deadline:         15 * time.Second,
		BalanceTolerance: decimal.NewFromInt(1),
	}
}

// Observer is told about every attempt that reaches a terminal state.
type Observer func(out Outcome, elapsed time.Duration)

// Option configures a Session.
type Option func(*Session)

// WithObserver registers fn to receive terminal outcomes. It is called
// without the session lock held.
func WithObserver(fn Observer) Option {
	return func(s *Session) {
		s.observers = append(s.observers, fn)
	}
}

// WithEngine overrides the reconciliation engine.
func WithEngine(e *reconcile.Engine) Option {
	return func(s *Session) {
		s.engine = e
	}
}

// attempt is one capture. done is closed exactly once, after outcome is set.
type attempt struct {
	gen        uint64
	started    time.Time
	cancel     context.CancelFunc
	timer      *time.Timer
	done       chan struct{}
	outcome    Outcome
	completing bool
	abandoned  error
}

// Session owns the single current scan attempt. A new capture supersedes the
// live one; whichever of recognition and the deadline finishes first decides
// the outcome.
type Session struct {
	recognizer recognition.Recognizer
	cfg        Config
	engine     *reconcile.Engine
	observers  []Observer

	mu      sync.Mutex
	gen     uint64
	live    *attempt
	current Outcome
	settled map[uint64]Outcome
	closed  bool
}

// settledWindow is how many recent terminal outcomes stay readable by Wait
// after newer captures have started.
const settledWindow = 16

// NewSession creates an idle session. Zero config values take the defaults.
func NewSession(r recognition.Recognizer, cfg Config, opts ...Option) *Session {
	def := DefaultConfig()
	if cfg.Deadline <= 0 {
		cfg.Deadline = def.Deadline
	}
	if !cfg.BalanceTolerance.IsPositive() {
		cfg.BalanceTolerance = def.BalanceTolerance
	}

	s := &Session{
		recognizer: r,
		cfg:        cfg,
		engine:     reconcile.NewEngine(),
		current:    Outcome{State: Idle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Capture starts recognizing img and returns the attempt's generation. Any
// live attempt is superseded: its deadline is disarmed, its recognizer call
// cancelled and its result discarded. ctx bounds the recognizer call.
func (s *Session) Capture(ctx context.Context, img recognition.Image) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	a := &attempt{
		gen:     s.gen,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	if s.closed {
		a.cancel = func() {}
		s.abandon(a, ErrClosed)
		return a.gen
	}

	if s.live != nil {
		s.abandon(s.live, ErrSuperseded)
	}

	rctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.timer = time.AfterFunc(s.cfg.Deadline, func() { s.expire(a) })
	s.live = a
	s.current = Outcome{Generation: a.gen, State: Recognizing}

	go s.recognize(rctx, a, img)
	return a.gen
}

// Wait blocks until the attempt with generation gen is terminal. The error is
// non-nil only when the attempt was superseded or closed, gen is unknown, or
// ctx ends; the cause of a Failed, TimedOut or Rejected outcome is in
// Outcome.Err.
func (s *Session) Wait(ctx context.Context, gen uint64) (Outcome, error) {
	s.mu.Lock()
	a := s.live
	if a == nil || a.gen != gen {
		cur, latest, closed := s.current, s.gen, s.closed
		out, settled := s.settled[gen]
		s.mu.Unlock()
		switch {
		case gen == 0 || gen > latest:
			return Outcome{}, fmt.Errorf("unknown scan generation %d", gen)
		case settled:
			return out, nil
		case cur.Generation == gen && cur.State.Terminal():
			return cur, nil
		case closed && gen >= cur.Generation:
			return Outcome{}, ErrClosed
		default:
			return Outcome{}, ErrSuperseded
		}
	}
	s.mu.Unlock()

	select {
	case <-a.done:
		if a.abandoned != nil {
			return Outcome{}, a.abandoned
		}
		return a.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Scan captures img and waits for its outcome.
func (s *Session) Scan(ctx context.Context, img recognition.Image) (Outcome, error) {
	return s.Wait(ctx, s.Capture(ctx, img))
}

// Current returns a snapshot of the latest attempt.
func (s *Session) Current() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close abandons the live attempt. Later captures fail with ErrClosed. The
// recognizer is not closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.live != nil {
		s.abandon(s.live, ErrClosed)
		s.current = Outcome{Generation: s.current.Generation, State: Idle}
	}
	return nil
}

func (s *Session) recognize(ctx context.Context, a *attempt, img recognition.Image) {
	observations, err := s.recognizer.Recognize(ctx, img)

	if err != nil {
		s.complete(a, Outcome{Generation: a.gen, State: Failed, Err: &RecognitionError{Err: err}})
		return
	}

	if !s.claim(a) {
		return
	}
	out := Analyze(observations, img.Width, img.Height, s.engine, s.cfg.BalanceTolerance)
	out.Generation = a.gen
	s.complete(a, out)
}

// claim disarms the deadline so the attempt can finish outside the lock. It
// fails when the deadline or a newer capture got there first.
func (s *Session) claim(a *attempt) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live != a || a.completing {
		return false
	}
	a.completing = true
	a.timer.Stop()
	return true
}

// complete finishes a with out unless it is no longer the live attempt.
func (s *Session) complete(a *attempt, out Outcome) {
	s.mu.Lock()
	if s.live != a {
		s.mu.Unlock()
		return
	}
	a.timer.Stop()
	elapsed := s.finish(a, out)
	s.mu.Unlock()

	s.notify(out, elapsed)
}

func (s *Session) expire(a *attempt) {
	s.mu.Lock()
	if s.live != a || a.completing {
		s.mu.Unlock()
		return
	}
	out := Outcome{Generation: a.gen, State: TimedOut, Err: ErrTimeout}
	elapsed := s.finish(a, out)
	s.mu.Unlock()

	s.notify(out, elapsed)
}

// finish records the terminal outcome. Callers hold s.mu.
func (s *Session) finish(a *attempt, out Outcome) time.Duration {
	a.outcome = out
	a.cancel()
	close(a.done)
	s.live = nil
	s.current = out

	if s.settled == nil {
		s.settled = make(map[uint64]Outcome, settledWindow)
	}
	s.settled[a.gen] = out
	for g := range s.settled {
		if g+settledWindow <= a.gen {
			delete(s.settled, g)
		}
	}
	return time.Since(a.started)
}

// abandon ends a without an outcome. Callers hold s.mu.
func (s *Session) abandon(a *attempt, cause error) {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.cancel()
	a.abandoned = cause
	close(a.done)
	if s.live == a {
		s.live = nil
	}
}

func (s *Session) notify(out Outcome, elapsed time.Duration) {
	for _, fn := range s.observers {
		fn(out, elapsed)
	}
}
