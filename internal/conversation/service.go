package conversation

import (
	"context"

	"github.com/ashureev/wms-askbot/internal/domain"
)

// SessionStore persists sessions by key.
type SessionStore interface {
	Load(key string) (domain.Session, bool)
	Save(key string, sess domain.Session)
	Lock(key string) func()
}

// Service runs turns against stored sessions. Turns for the same key are
// serialized; different keys proceed in parallel.
type Service struct {
	engine   *Engine
	sessions SessionStore
}

// NewService creates a Service.
func NewService(engine *Engine, sessions SessionStore) *Service {
	return &Service{engine: engine, sessions: sessions}
}

// Current returns the session for key, creating a greeting session if none
// exists.
func (s *Service) Current(key string) domain.Session {
	unlock := s.sessions.Lock(key)
	defer unlock()
	return s.loadOrCreate(key)
}

// Turn applies one input to the session for key and stores the result.
func (s *Service) Turn(ctx context.Context, key string, in Input) (domain.Session, Reply) {
	unlock := s.sessions.Lock(key)
	defer unlock()

	next, reply := s.engine.Step(ctx, s.loadOrCreate(key), in)
	s.sessions.Save(key, next)
	return next, reply
}

func (s *Service) loadOrCreate(key string) domain.Session {
	if sess, ok := s.sessions.Load(key); ok {
		return sess
	}
	sess := NewSession()
	s.sessions.Save(key, sess)
	return sess
}
