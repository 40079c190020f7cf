package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haivivi/cookguide/pkg/assist"
	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/intent"
	"github.com/haivivi/cookguide/pkg/knowledge"
	"github.com/haivivi/cookguide/pkg/memlog"
)

// TimeoutPolicy decides what an idle timeout does.
type TimeoutPolicy string

const (
	// TimeoutRecompare moves to the comparing state and runs its handler.
	TimeoutRecompare TimeoutPolicy = "recompare"

	// TimeoutIgnore drops the timeout.
	TimeoutIgnore TimeoutPolicy = "ignore"
)

func (p TimeoutPolicy) Valid() bool {
	return p == TimeoutRecompare || p == TimeoutIgnore
}

// SceneAnalyzer analyzes the latest camera frame. *assist.SceneAnalyzer
// implements it.
type SceneAnalyzer interface {
	Analyze(ctx context.Context, req assist.Request) (*memlog.Scene, error)
}

// DefaultQueueSize is the command queue size used when Config.QueueSize is
// zero.
const DefaultQueueSize = 16

// Config configures a Session.
type Config struct {
	// Session identifies the session. It scopes persisted memory.
	Session string

	// Table defaults to dialogue.DefaultTable().
	Table *dialogue.Table

	// Dispatcher runs the handlers. Required.
	Dispatcher *assist.Dispatcher

	// Classifier maps utterances to events. Required.
	Classifier intent.Classifier

	// Scene runs the periodic scene analysis. Scene ticks are no-ops
	// without it.
	Scene SceneAnalyzer

	Knowledge *knowledge.VideoKnowledge

	// Memory defaults to an in-memory log for Session.
	Memory *memlog.Log

	// Restore reloads persisted memory on Connect.
	Restore bool

	// SceneInterval is the scene tick period while comparing. Zero disables
	// the ticker; Tick still works.
	SceneInterval time.Duration

	// IdleTimeout fires a timeout event after this long without a user
	// event. Zero disables it.
	IdleTimeout time.Duration

	// TimeoutPolicy defaults to TimeoutRecompare.
	TimeoutPolicy TimeoutPolicy

	// QueueSize bounds pending commands; beyond it commands fail with
	// ErrBusy.
	QueueSize int

	// OnOutcome, if set, receives the outcomes of ticker and idle timer
	// events. It is called from the session goroutine and must not block.
	OnOutcome func(Outcome)

	Logger *slog.Logger
}

func (c *Config) resolve() error {
	if c.Dispatcher == nil {
		return fmt.Errorf("controller: dispatcher is required")
	}
	if c.Classifier == nil {
		return fmt.Errorf("controller: classifier is required")
	}
	if c.Table == nil {
		c.Table = dialogue.DefaultTable()
	}
	if err := c.Dispatcher.Validate(c.Table); err != nil {
		return err
	}
	if c.TimeoutPolicy == "" {
		c.TimeoutPolicy = TimeoutRecompare
	}
	if !c.TimeoutPolicy.Valid() {
		return fmt.Errorf("controller: unknown timeout policy %q", c.TimeoutPolicy)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.SceneInterval < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("controller: negative interval")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Memory == nil {
		c.Memory = memlog.New(memlog.Config{Session: c.Session, Logger: c.Logger})
	}
	return nil
}
