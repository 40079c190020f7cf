package config

import (
	"fmt"
	"time"

	"github.com/haivivi/cookguide/pkg/controller"
	"github.com/haivivi/cookguide/pkg/jsontime"
)

// Service file names.
const (
	ServiceOpenAI  = "openai"
	ServiceGemini  = "gemini"
	ServiceSession = "session"
	ServiceStorage = "storage"
)

// Memory backends.
const (
	MemoryInMemory = "memory"
	MemoryBadger   = "badger"
	MemoryRedis    = "redis"
)

// Session is the session.yaml service.
type Session struct {
	// Listen is the serve address.
	Listen string `yaml:"listen,omitempty"`

	// Generator patterns, as registered by openai.yaml and gemini.yaml.
	ReasoningModel  string `yaml:"reasoning_model,omitempty"`
	ClassifierModel string `yaml:"classifier_model,omitempty"`
	VisionModel     string `yaml:"vision_model,omitempty"`

	// ModelsDir holds extra model files loaded recursively.
	ModelsDir string `yaml:"models_dir,omitempty"`

	// Policy is a policy file; the built-in policy is used when empty.
	Policy string `yaml:"policy,omitempty"`

	// Knowledge is the default video knowledge source.
	Knowledge string `yaml:"knowledge,omitempty"`

	SceneInterval jsontime.Duration `yaml:"scene_interval,omitempty"`
	IdleTimeout   jsontime.Duration `yaml:"idle_timeout,omitempty"`
	TimeoutPolicy string            `yaml:"timeout_policy,omitempty"`
	QueueSize     int               `yaml:"queue_size,omitempty"`

	Memory Memory `yaml:"memory,omitempty"`
}

// Memory selects the memory log backend.
type Memory struct {
	// Backend is memory, badger or redis.
	Backend string `yaml:"backend,omitempty"`

	// Dir is the badger directory.
	Dir string `yaml:"dir,omitempty"`

	// URL is the redis URL.
	URL string `yaml:"url,omitempty"`
}

// DefaultSession returns the settings used without a session.yaml.
func DefaultSession() *Session {
	return &Session{
		Listen:          ":8080",
		ReasoningModel:  "openai/gpt-4o",
		ClassifierModel: "openai/gpt-4o-mini",
		VisionModel:     "gemini/flash",
		SceneInterval:   jsontime.Duration(5 * time.Second),
		IdleTimeout:     jsontime.Duration(2 * time.Minute),
		TimeoutPolicy:   string(controller.TimeoutRecompare),
		QueueSize:       controller.DefaultQueueSize,
		Memory:          Memory{Backend: MemoryInMemory},
	}
}

// WithDefaults fills unset fields from DefaultSession.
func (s Session) WithDefaults() *Session {
	d := DefaultSession()
	if s.Listen == "" {
		s.Listen = d.Listen
	}
	if s.ReasoningModel == "" {
		s.ReasoningModel = d.ReasoningModel
	}
	if s.ClassifierModel == "" {
		s.ClassifierModel = d.ClassifierModel
	}
	if s.VisionModel == "" {
		s.VisionModel = d.VisionModel
	}
	if s.TimeoutPolicy == "" {
		s.TimeoutPolicy = d.TimeoutPolicy
	}
	if s.QueueSize == 0 {
		s.QueueSize = d.QueueSize
	}
	if s.Memory.Backend == "" {
		s.Memory.Backend = d.Memory.Backend
	}
	return &s
}

// Validate checks the enumerations and intervals.
func (s *Session) Validate() error {
	if !controller.TimeoutPolicy(s.TimeoutPolicy).Valid() {
		return fmt.Errorf("session: unknown timeout_policy %q", s.TimeoutPolicy)
	}
	if s.SceneInterval < 0 || s.IdleTimeout < 0 {
		return fmt.Errorf("session: negative interval")
	}
	switch s.Memory.Backend {
	case MemoryInMemory, MemoryBadger:
	case MemoryRedis:
		if s.Memory.URL == "" {
			return fmt.Errorf("session: redis memory needs a url")
		}
	default:
		return fmt.Errorf("session: unknown memory backend %q", s.Memory.Backend)
	}
	return nil
}

// LoadSession loads session.yaml from contextDir, or the defaults when
// contextDir is empty or has none.
func LoadSession(contextDir string) (*Session, error) {
	if contextDir == "" {
		return DefaultSession(), nil
	}
	s, err := LoadServiceOr(contextDir, ServiceSession, &Session{})
	if err != nil {
		return nil, err
	}
	s = s.WithDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
