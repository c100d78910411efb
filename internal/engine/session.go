package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Session is the single owner of an engine instance. The engine is started
// lazily on first use and every call through Do runs while holding the
// session lock.
type Session struct {
	engine  Engine
	mu      sync.Mutex
	started bool
	stopped bool
}

// NewSession wraps e without starting it.
func NewSession(e Engine) *Session {
	return &Session{engine: e}
}

// Name returns the engine name.
func (s *Session) Name() string { return s.engine.Name() }

// Start starts the engine if it is not running yet.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Session) startLocked(ctx context.Context) error {
	if s.stopped {
		return &Error{Engine: s.engine.Name(), Op: "start", Err: ErrNotStarted}
	}
	if s.started {
		return nil
	}
	slog.Debug("starting segmentation engine", "engine", s.engine.Name())
	if err := s.engine.Start(ctx); err != nil {
		return wrap(s.engine.Name(), "start", err)
	}
	s.started = true
	return nil
}

// Do runs fn with exclusive access to the started engine.
func (s *Session) Do(ctx context.Context, fn func(Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.startLocked(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return wrap(s.engine.Name(), "run", err)
	}
	return fn(s.engine)
}

// Stop shuts the engine down. The session cannot be restarted.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if !s.started {
		return nil
	}
	return wrap(s.engine.Name(), "stop", s.engine.Stop())
}
