package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/haivivi/cookguide/cmd/cookguide/internal/config"
	"github.com/haivivi/cookguide/pkg/assist"
	"github.com/haivivi/cookguide/pkg/cli"
	"github.com/haivivi/cookguide/pkg/controller"
	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx/generators"
	"github.com/haivivi/cookguide/pkg/genx/modelloader"
	"github.com/haivivi/cookguide/pkg/intent"
	"github.com/haivivi/cookguide/pkg/knowledge"
	"github.com/haivivi/cookguide/pkg/kv"
	"github.com/haivivi/cookguide/pkg/memlog"
	"github.com/haivivi/cookguide/pkg/storage"
)

// Test overrides. When set they replace the generators loaded from the
// context and the configured memory backend.
var (
	testMux   *generators.Mux
	testStore kv.Store
)

// engineOptions are command line overrides of session.yaml.
type engineOptions struct {
	Policy    string
	Knowledge string

	// Models skips generator registration when false.
	Models bool

	// Store opens the memory backend.
	Store bool

	Logger *slog.Logger
}

// engine is everything a session needs, built once per command from the
// resolved context.
type engine struct {
	dir     string
	session *config.Session
	logger  *slog.Logger

	mux        *generators.Mux
	policy     *assist.Policy
	table      *dialogue.Table
	dispatcher *assist.Dispatcher
	classifier *intent.GenX
	scene      *assist.SceneAnalyzer
	knowledge  *knowledge.VideoKnowledge
	store      kv.Store
}

func openEngine(ctx context.Context, opts engineOptions) (*engine, error) {
	dir, err := contextDir()
	if err != nil {
		return nil, err
	}
	sess, err := config.LoadSession(dir)
	if err != nil {
		return nil, err
	}
	e := &engine{dir: dir, session: sess, logger: opts.Logger}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	if e.policy, err = loadPolicy(firstNonEmpty(opts.Policy, sess.Policy)); err != nil {
		return nil, err
	}
	if e.table, err = e.policy.Table(); err != nil {
		return nil, err
	}

	e.mux = testMux
	if e.mux == nil {
		e.mux = generators.NewMux()
		if opts.Models {
			if err := e.loadModels(ctx); err != nil {
				return nil, err
			}
		}
	}

	e.dispatcher = assist.New(assist.Config{
		Policy:    e.policy,
		Reasoning: sess.ReasoningModel,
		Mux:       e.mux,
		Logger:    e.logger,
	})
	if err := e.dispatcher.Validate(e.table); err != nil {
		return nil, err
	}
	e.classifier = intent.NewGenX(intent.Config{
		Generator: sess.ClassifierModel,
		Mux:       e.mux,
		Info:      e.policy.EventInfo,
		Logger:    e.logger,
	})
	e.scene = &assist.SceneAnalyzer{
		Generator:   sess.VisionModel,
		Mux:         e.mux,
		Instruction: e.policy.SceneInstruction,
		Window:      e.policy.SceneWindow,
	}

	if src := firstNonEmpty(opts.Knowledge, sess.Knowledge); src != "" {
		if e.knowledge, err = e.loadKnowledge(ctx, src); err != nil {
			return nil, err
		}
	}

	if opts.Store {
		if e.store, err = e.openStore(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// loadPolicy reads a policy file, or returns the built-in policy for "".
func loadPolicy(path string) (*assist.Policy, error) {
	if path == "" {
		return assist.DefaultPolicy(), nil
	}
	var pf assist.PolicyFile
	if err := cli.LoadRequest(path, &pf); err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	p, err := pf.Policy()
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// loadModels registers the generators of openai.yaml, gemini.yaml and the
// models directory.
func (e *engine) loadModels(ctx context.Context) error {
	loader := &modelloader.Loader{Mux: e.mux, Verbose: verbose, Logger: e.logger}
	if e.dir != "" {
		for _, svc := range []string{config.ServiceOpenAI, config.ServiceGemini} {
			cfg, err := config.LoadService[modelloader.ConfigFile](e.dir, svc)
			if errors.Is(err, config.ErrNoService) {
				continue
			}
			if err != nil {
				return err
			}
			if cfg.Schema == "" && cfg.Kind == "" {
				cfg.Kind = svc
			}
			names, err := loader.Register(ctx, *cfg)
			if errors.Is(err, modelloader.ErrMissingCredentials) {
				e.logger.Warn("skipping models without credentials", "service", svc)
				continue
			}
			if err != nil {
				return fmt.Errorf("%s: %w", svc, err)
			}
			e.logger.Debug("models registered", "service", svc, "models", names)
		}
	}
	if e.session.ModelsDir != "" {
		names, err := loader.LoadDir(ctx, e.session.ModelsDir)
		if err != nil {
			return err
		}
		e.logger.Debug("models registered", "dir", e.session.ModelsDir, "models", names)
	}
	for _, pattern := range []string{e.session.ReasoningModel, e.session.ClassifierModel, e.session.VisionModel} {
		if !e.mux.Has(pattern) {
			e.logger.Warn("model not registered", "model", pattern)
		}
	}
	return nil
}

func (e *engine) loadKnowledge(ctx context.Context, src string) (*knowledge.VideoKnowledge, error) {
	l := &knowledge.Loader{S3: e.openS3}
	vk, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	e.logger.Info("knowledge loaded", "source", src, "segments", vk.Len())
	return vk, nil
}

// openS3 opens bucket with the credentials of storage.yaml.
func (e *engine) openS3(bucket string) (storage.FileStore, error) {
	cfg := &storage.S3Config{}
	if e.dir != "" {
		var err error
		cfg, err = config.LoadServiceOr(e.dir, config.ServiceStorage, cfg)
		if err != nil {
			return nil, err
		}
	}
	c := *cfg
	if bucket != c.Bucket {
		// Another bucket than the configured one has no prefix.
		c.Bucket, c.Prefix = bucket, ""
	}
	return storage.NewS3FromConfig(c)
}

// openLocation resolves a local path or s3:// object to a store and a path
// in it.
func (e *engine) openLocation(raw string) (storage.FileStore, string, error) {
	loc, err := storage.ParseLocation(raw)
	if err != nil {
		return nil, "", err
	}
	switch loc.Scheme {
	case "file":
		fs, err := storage.NewLocal(filepath.Dir(loc.Path))
		return fs, filepath.Base(loc.Path), err
	case "s3":
		fs, err := e.openS3(loc.Bucket)
		return fs, loc.Path, err
	}
	return nil, "", fmt.Errorf("%s: only local paths and s3:// are writable", raw)
}

func (e *engine) openStore() (kv.Store, error) {
	if testStore != nil {
		return testStore, nil
	}
	m := e.session.Memory
	switch m.Backend {
	case config.MemoryBadger:
		dir := m.Dir
		if dir == "" {
			paths, err := cli.NewPaths("cookguide")
			if err != nil {
				return nil, err
			}
			if dir, err = paths.Ensure(paths.MemoryDir()); err != nil {
				return nil, err
			}
		}
		return kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: e.logger})
	case config.MemoryRedis:
		return kv.NewRedis(kv.RedisOptions{URL: m.URL})
	default:
		return kv.NewMemory(nil), nil
	}
}

// memory returns the memory log of session id.
func (e *engine) memory(id string) *memlog.Log {
	return memlog.New(memlog.Config{Session: id, Store: e.store, Logger: e.logger})
}

// newSession is the cookserver session factory.
func (e *engine) newSession(id string, onOutcome func(controller.Outcome)) (*controller.Session, error) {
	if err := memlog.ValidateSession(id); err != nil {
		return nil, err
	}
	return controller.New(controller.Config{
		Session:       id,
		Table:         e.table,
		Dispatcher:    e.dispatcher,
		Classifier:    e.classifier,
		Scene:         e.scene,
		Knowledge:     e.knowledge,
		Memory:        e.memory(id),
		Restore:       e.store != nil,
		SceneInterval: e.session.SceneInterval.Duration(),
		IdleTimeout:   e.session.IdleTimeout.Duration(),
		TimeoutPolicy: controller.TimeoutPolicy(e.session.TimeoutPolicy),
		QueueSize:     e.session.QueueSize,
		OnOutcome:     onOutcome,
		Logger:        e.logger.With("session", id),
	})
}

// Close releases the memory backend. The test store is left open.
func (e *engine) Close() error {
	if e.store == nil || e.store == testStore {
		return nil
	}
	return e.store.Close()
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
