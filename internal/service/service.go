// Package service is the session manager: it owns the live sessions, serializes
// writers per session and fans committed notifications out to the store and the hub.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xiaot623/caucus/internal/config"
	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/engine"
	"github.com/xiaot623/caucus/internal/repository"
	"github.com/xiaot623/caucus/internal/rules"
	"github.com/xiaot623/caucus/internal/tools"
	"github.com/xiaot623/caucus/policy"
)

// Broadcaster delivers JSON messages to the subscribers of a session.
type Broadcaster interface {
	BroadcastJSON(sessionID string, v interface{}) error
}

// liveSession is a session held in memory. mu is the single-writer lock; pub orders
// fan-out so subscribers see notifications in commit order. snapshot and hint are
// published under mu and read without it.
type liveSession struct {
	mu        sync.Mutex
	pub       sync.Mutex
	eng       *engine.Engine
	snapshot  atomic.Pointer[domain.SessionState]
	hint      atomic.Pointer[domain.Hint]
	createdAt time.Time
}

// publishState stores snap and refreshes the human's hint. Callers hold mu.
func (ls *liveSession) publishState(snap *domain.SessionState) {
	ls.snapshot.Store(snap)
	for _, a := range snap.Attendees {
		if !a.Human {
			continue
		}
		if h, err := ls.eng.Hint(a.ID); err == nil {
			ls.hint.Store(&h)
		}
		return
	}
}

// Service owns the live sessions and applies every operation on them under the
// session's writer lock.
type Service struct {
	store        repository.Store
	hub          Broadcaster
	producer     engine.Producer
	config       *config.Config
	policyEngine *policy.Engine
	rules        rules.Rules
	tools        *tools.Registry
	logger       *slog.Logger
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

// New returns a Service. A nil hub disables broadcasting; a nil logger uses slog.Default.
func New(store repository.Store, hub Broadcaster, producer engine.Producer, cfg *config.Config, policyEngine *policy.Engine, r rules.Rules, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		hub:          hub,
		producer:     producer,
		config:       cfg,
		policyEngine: policyEngine,
		rules:        r.Normalized(),
		tools:        tools.DefaultRegistry,
		logger:       logger.With("component", "service"),
		now:          time.Now,
		sessions:     make(map[string]*liveSession),
	}
}

func (s *Service) live(sessionID string) (*liveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return ls, nil
}

// apply runs fn under the session's writer lock, publishes the new snapshot and then
// fans the committed notifications out after the lock is released.
func (s *Service) apply(ctx context.Context, sessionID string, fn func(eng *engine.Engine) error) (*domain.SessionState, error) {
	ls, err := s.live(sessionID)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	opErr := fn(ls.eng)
	notes := ls.eng.Drain()
	snap := ls.snapshot.Load()
	if len(notes) > 0 {
		snap = ls.eng.Snapshot()
		ls.publishState(snap)
	}
	ls.pub.Lock()
	ls.mu.Unlock()

	s.publish(ctx, sessionID, snap, notes)
	ls.pub.Unlock()

	return snap, opErr
}

func (s *Service) liveSessions() map[string]*liveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*liveSession, len(s.sessions))
	for id, ls := range s.sessions {
		out[id] = ls
	}
	return out
}
