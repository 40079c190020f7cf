// Package controller drives one cooking session through the dialogue state
// machine.
//
// A Session is an actor: one goroutine owns the current state, the camera
// frame, the timers and write access to the memory log, and every caller
// talks to it through a bounded command queue. Each accepted event is looked
// up in the transition table, dispatched to its handler and recorded in
// memory before the next command runs.
package controller

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haivivi/cookguide/pkg/assist"
	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/memlog"
)

var (
	// ErrBusy is returned when the command queue is full.
	ErrBusy = errors.New("controller: session busy")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller: session closed")
)

type command struct {
	fn    func() (Outcome, error)
	reply chan result
}

type result struct {
	outcome Outcome
	err     error
}

// Session is one connected client's dialogue. It is safe for concurrent use.
type Session struct {
	cfg Config

	cmds chan command
	ctrl chan command
	quit chan struct{}
	done chan struct{}

	closeOnce sync.Once

	generation atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc

	// Owned by the session goroutine.
	state     dialogue.State
	ctx       context.Context
	gen       uint64
	image     []byte
	imageType string
	ticker    *time.Ticker
	tickC     <-chan time.Time
	idle      *time.Timer
	idleC     <-chan time.Time
}

// New validates cfg and starts the session goroutine. The session starts
// awaiting connection. It fails when a reachable state has no handler.
func New(cfg Config) (*Session, error) {
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:   cfg,
		cmds:  make(chan command, cfg.QueueSize),
		ctrl:  make(chan command, 4),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		state: dialogue.StateAwaitingConnection,
		ctx:   context.Background(),
	}
	go s.run()
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.cfg.Session }

// Memory returns the memory log. Only the session appends to it.
func (s *Session) Memory() *memlog.Log { return s.cfg.Memory }

func (s *Session) run() {
	defer close(s.done)
	defer s.stopTimers()
	for {
		select {
		case c := <-s.ctrl:
			c.exec()
			continue
		default:
		}
		select {
		case <-s.quit:
			return
		case c := <-s.ctrl:
			c.exec()
		case c := <-s.cmds:
			c.exec()
		case <-s.tickC:
			s.notify(s.sceneTick())
		case <-s.idleC:
			s.idleC = nil
			s.notify(s.idleTimeout())
		}
	}
}

func (c command) exec() {
	o, err := c.fn()
	c.reply <- result{o, err}
}

func (s *Session) notify(o Outcome) {
	if s.cfg.OnOutcome != nil {
		s.cfg.OnOutcome(o)
	}
}

// enqueue hands fn to the session goroutine and waits for its result. ctx
// bounds the wait only; the command still runs once accepted. A command
// that outlives a Disconnect or Close reports StatusStale instead of
// running.
func (s *Session) enqueue(ctx context.Context, fn func() (Outcome, error)) (Outcome, error) {
	gen := s.generation.Load()
	return s.queue(ctx, func() (Outcome, error) {
		if s.generation.Load() != gen {
			return Outcome{Event: dialogue.NotFound, From: s.state, To: s.state, Status: StatusStale}, nil
		}
		return fn()
	})
}

// queue is enqueue without the generation check, for reads.
func (s *Session) queue(ctx context.Context, fn func() (Outcome, error)) (Outcome, error) {
	c := command{fn: fn, reply: make(chan result, 1)}
	select {
	case <-s.done:
		return Outcome{}, ErrClosed
	case <-s.quit:
		return Outcome{}, ErrClosed
	default:
	}
	select {
	case s.cmds <- c:
	default:
		s.cfg.Logger.Warn("controller: queue full", "session", s.cfg.Session)
		return Outcome{}, ErrBusy
	}
	return s.wait(ctx, c)
}

// control bypasses the queue limit and runs before queued commands.
func (s *Session) control(ctx context.Context, fn func() (Outcome, error)) (Outcome, error) {
	c := command{fn: fn, reply: make(chan result, 1)}
	select {
	case s.ctrl <- c:
	case <-s.done:
		return Outcome{}, ErrClosed
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	return s.wait(ctx, c)
}

func (s *Session) wait(ctx context.Context, c command) (Outcome, error) {
	select {
	case r := <-c.reply:
		return r.outcome, r.err
	case <-s.done:
		return Outcome{}, ErrClosed
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// interrupt invalidates the current generation and cancels its calls.
func (s *Session) interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation.Add(1)
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) stale() bool {
	return s.generation.Load() != s.gen
}

// Connect moves the session from awaiting connection to the initial state.
// Connecting a connected session does nothing.
func (s *Session) Connect(ctx context.Context) (Outcome, error) {
	return s.control(ctx, func() (Outcome, error) {
		o := Outcome{Event: dialogue.NotFound, From: s.state, To: s.state, Status: StatusNoChange}
		if s.state != dialogue.StateAwaitingConnection {
			return o, nil
		}
		s.mu.Lock()
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.gen = s.generation.Load()
		s.mu.Unlock()

		if s.cfg.Restore {
			n, err := s.cfg.Memory.Restore(s.ctx)
			if err != nil {
				s.cfg.Logger.Warn("controller: restore memory", "session", s.cfg.Session, "error", err)
			} else if n > 0 {
				s.cfg.Logger.Info("controller: memory restored", "session", s.cfg.Session, "entries", n)
			}
		}
		s.state = dialogue.InitialState
		s.syncTicker()
		s.armIdle()
		s.cfg.Logger.Info("controller: connected", "session", s.cfg.Session, "state", s.state)
		o.To, o.Status = s.state, StatusHandled
		return o, nil
	})
}

// Disconnect cancels in-flight calls, stops the timers, clears the memory
// log and returns the session to awaiting connection. Results of calls that
// complete afterwards are dropped.
func (s *Session) Disconnect(ctx context.Context) (Outcome, error) {
	s.interrupt()
	return s.control(ctx, func() (Outcome, error) {
		o := Outcome{Event: dialogue.NotFound, From: s.state, To: dialogue.StateAwaitingConnection, Status: StatusHandled}
		s.stopTimers()
		s.image, s.imageType = nil, ""
		s.state = dialogue.StateAwaitingConnection
		if err := s.cfg.Memory.Clear(context.Background()); err != nil {
			s.cfg.Logger.Warn("controller: clear memory", "session", s.cfg.Session, "error", err)
		}
		s.cfg.Logger.Info("controller: disconnected", "session", s.cfg.Session)
		return o, nil
	})
}

// Reset clears the memory log and returns a connected session to the
// initial state.
func (s *Session) Reset(ctx context.Context) (Outcome, error) {
	return s.enqueue(ctx, func() (Outcome, error) {
		o := Outcome{Event: dialogue.NotFound, From: s.state, To: s.state}
		if s.state == dialogue.StateAwaitingConnection {
			o.Status = StatusNotConnected
			return o, nil
		}
		if err := s.cfg.Memory.Clear(s.ctx); err != nil {
			s.cfg.Logger.Warn("controller: clear memory", "session", s.cfg.Session, "error", err)
		}
		s.state = dialogue.InitialState
		s.syncTicker()
		s.armIdle()
		o.To, o.Status = s.state, StatusHandled
		return o, nil
	})
}

// Close stops the session goroutine without clearing memory, so a later
// session with the same id and Restore set picks it up.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.interrupt()
		close(s.quit)
	})
	<-s.done
	return nil
}

// Snapshot returns the current state and a copy of the memory log.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	_, err := s.queue(ctx, func() (Outcome, error) {
		snap = s.snapshot()
		return Outcome{}, nil
	})
	return snap, err
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		Session:    s.cfg.Session,
		State:      s.state,
		Connected:  s.state != dialogue.StateAwaitingConnection,
		Generation: s.generation.Load(),
		Legal:      s.cfg.Table.LegalEvents(s.state),
		Memory:     s.cfg.Memory.Snapshot(),
	}
}

// SetImage replaces the latest camera frame used by handlers and the scene
// analysis. mimeType defaults to image/jpeg.
func (s *Session) SetImage(ctx context.Context, image []byte, mimeType string) error {
	image = slices.Clone(image)
	_, err := s.enqueue(ctx, func() (Outcome, error) {
		s.image, s.imageType = image, mimeType
		return Outcome{}, nil
	})
	return err
}

// Submit processes an explicit event. utterance is recorded as the user
// query and passed to the handler.
func (s *Session) Submit(ctx context.Context, e dialogue.Event, utterance string) (Outcome, error) {
	return s.enqueue(ctx, func() (Outcome, error) {
		switch e {
		case dialogue.EventSceneTick:
			return s.sceneTick(), nil
		case dialogue.EventTimeout:
			return s.idleTimeout(), nil
		}
		return s.process(e, utterance), nil
	})
}

// Utter classifies utterance against the events legal in the current state
// and processes the result.
func (s *Session) Utter(ctx context.Context, utterance string) (Outcome, error) {
	return s.enqueue(ctx, func() (Outcome, error) {
		o := Outcome{Event: dialogue.NotFound, From: s.state, To: s.state}
		if s.state == dialogue.StateAwaitingConnection {
			o.Status = StatusNotConnected
			return o, nil
		}
		e := s.cfg.Classifier.Classify(s.ctx, utterance, s.cfg.Table.LegalEvents(s.state))
		if s.stale() {
			o.Status = StatusStale
			return o, nil
		}
		if e == dialogue.NotFound {
			s.cfg.Logger.Info("controller: no event matched", "session", s.cfg.Session, "state", s.state)
			o.Status = StatusNoMatch
			o.Detail = dialogue.ErrClassifierNoMatch.Error()
			s.armIdle()
			return o, nil
		}
		return s.process(e, utterance), nil
	})
}

// Tick runs a scene analysis now.
func (s *Session) Tick(ctx context.Context) (Outcome, error) {
	return s.Submit(ctx, dialogue.EventSceneTick, "")
}
