package controller

import (
	"time"

	"github.com/haivivi/cookguide/pkg/assist"
	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/memlog"
)

// The methods in this file run on the session goroutine.

func (s *Session) request(utterance string) assist.Request {
	return assist.Request{
		Knowledge: s.cfg.Knowledge,
		Image:     s.image,
		ImageType: s.imageType,
		Utterance: utterance,
		Memory:    s.cfg.Memory.Snapshot(),
	}
}

// process runs one non-autonomous event: validate it against the current
// state, dispatch the handler of the destination, record the exchange and
// move.
func (s *Session) process(e dialogue.Event, utterance string) Outcome {
	o := Outcome{Event: e, From: s.state, To: s.state}
	if s.state == dialogue.StateAwaitingConnection {
		o.Status = StatusNotConnected
		return o
	}
	next, err := s.cfg.Table.Next(s.state, e)
	if err != nil {
		s.cfg.Logger.Info("controller: event discarded", "session", s.cfg.Session, "state", s.state, "event", e)
		o.Status = StatusInvalidTransition
		o.Detail = err.Error()
		return o
	}
	return s.transition(o, next, utterance)
}

// transition dispatches the handler for o.Event into next and commits.
func (s *Session) transition(o Outcome, next dialogue.State, utterance string) Outcome {
	e := o.Event
	res, err := s.cfg.Dispatcher.Execute(s.ctx, next, e, s.request(utterance))
	if err != nil {
		// Validated in New; only a custom dispatcher changed afterwards gets here.
		s.cfg.Logger.Error("controller: dispatch", "session", s.cfg.Session, "state", next, "event", e, "error", err)
		res = assist.Failed(err)
	}
	if s.stale() {
		o.Status = StatusStale
		return o
	}

	query := utterance
	if fixed := e.Info().FixedQuery; fixed != "" {
		query = fixed
	}
	if p, ok := res.Interaction(query); ok {
		o.Entries = append(o.Entries, s.remember(p))
	}

	o.Result = &res
	o.Status = StatusHandled
	if res.Failure != nil {
		o.Status = StatusFailed
		o.Detail = res.Failure.Error()
	}
	s.cfg.Logger.Debug("controller: transition", "session", s.cfg.Session, "from", s.state, "event", e, "to", next, "status", o.Status)
	s.state = next
	o.To = next
	s.syncTicker()
	if e.Info().Origin == dialogue.OriginUser {
		s.armIdle()
	}
	return o
}

// sceneTick analyzes the camera frame while comparing, records the scene
// and processes the event it calls for in the same step.
func (s *Session) sceneTick() Outcome {
	o := Outcome{Event: dialogue.EventSceneTick, From: s.state, To: s.state, Status: StatusNoChange}
	switch {
	case s.state == dialogue.StateAwaitingConnection:
		o.Status = StatusNotConnected
		return o
	case !s.state.Monitoring():
		o.Detail = "scene analysis runs only while comparing"
		return o
	case s.cfg.Scene == nil:
		o.Detail = "no scene analyzer"
		return o
	case len(s.image) == 0:
		o.Detail = assist.ErrNoImage.Error()
		return o
	}

	scene, err := s.cfg.Scene.Analyze(s.ctx, s.request(""))
	if s.stale() {
		o.Status = StatusStale
		return o
	}
	if err != nil {
		s.cfg.Logger.Warn("controller: scene analysis failed", "session", s.cfg.Session, "error", err)
		o.Status = StatusFailed
		o.Detail = err.Error()
		return o
	}
	o.Scene = scene
	o.Entries = append(o.Entries, s.remember(scene))

	e, ok := scene.Event()
	if !ok {
		return o
	}
	derived := s.process(e, "")
	derived.From = o.From
	derived.Scene = scene
	derived.Entries = append(o.Entries, derived.Entries...)
	return derived
}

// remember appends p to memory. The log keeps the entry even when mirroring
// it to the store fails, and has already reported that.
func (s *Session) remember(p memlog.Payload) memlog.Entry {
	entry, _ := s.cfg.Memory.Append(s.ctx, p)
	return entry
}

// idleTimeout applies the timeout policy.
func (s *Session) idleTimeout() Outcome {
	o := Outcome{Event: dialogue.EventTimeout, From: s.state, To: s.state, Status: StatusNoChange}
	if s.state == dialogue.StateAwaitingConnection {
		o.Status = StatusNotConnected
		return o
	}
	if s.cfg.TimeoutPolicy == TimeoutIgnore {
		return o
	}
	next, ok := s.cfg.Table.Lookup(s.state, dialogue.EventTimeout)
	if !ok {
		next = dialogue.InitialState
	}
	return s.transition(o, next, "")
}

func (s *Session) syncTicker() {
	if s.cfg.SceneInterval <= 0 {
		return
	}
	if s.state.Monitoring() {
		if s.ticker == nil {
			s.ticker = time.NewTicker(s.cfg.SceneInterval)
			s.tickC = s.ticker.C
		}
		return
	}
	s.stopTicker()
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker, s.tickC = nil, nil
	}
}

func (s *Session) armIdle() {
	if s.cfg.IdleTimeout <= 0 {
		return
	}
	if s.idle == nil {
		s.idle = time.NewTimer(s.cfg.IdleTimeout)
	} else {
		s.idle.Reset(s.cfg.IdleTimeout)
	}
	s.idleC = s.idle.C
}

func (s *Session) stopTimers() {
	s.stopTicker()
	if s.idle != nil {
		s.idle.Stop()
	}
	s.idleC = nil
}
