package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/engine"
	"github.com/xiaot623/caucus/internal/logging"
)

// CreateSession starts a session in ROLL_CALL and persists its first snapshot.
func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.SessionState, error) {
	r := s.rules
	if req.Rules != nil {
		r = *req.Rules
	}

	sessionID := "ses_" + uuid.New().String()
	opts := []engine.Option{engine.WithClock(s.now)}
	if s.producer != nil {
		opts = append(opts, engine.WithProducer(s.producer))
	}
	eng, err := engine.New(sessionID, req.Attendees, r, opts...)
	if err != nil {
		return nil, err
	}

	now := s.now()
	snap := eng.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	rec := &domain.SessionRecord{
		SessionID: sessionID,
		Phase:     snap.Phase,
		Version:   snap.Version,
		CreatedAt: now,
		UpdatedAt: now,
		Snapshot:  data,
	}
	if err := s.store.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	ls := &liveSession{eng: eng, createdAt: now}
	ls.publishState(snap)

	s.mu.Lock()
	s.sessions[sessionID] = ls
	s.mu.Unlock()

	logging.ForSession(s.logger, sessionID).Info("session created", "attendees", len(req.Attendees))
	return snap, nil
}

// GetState returns the latest published snapshot without taking the writer lock.
// Sessions that are no longer live are served from their last persisted snapshot.
func (s *Service) GetState(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	if ls, err := s.live(sessionID); err == nil {
		return ls.snapshot.Load(), nil
	}

	rec, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if rec == nil || len(rec.Snapshot) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	var snap domain.SessionState
	if err := json.Unmarshal(rec.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// ListSessions lists persisted sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	recs, err := s.store.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]domain.SessionSummary, 0, len(recs))
	for _, rec := range recs {
		sum := domain.SessionSummary{
			SessionID: rec.SessionID,
			Phase:     rec.Phase,
			Version:   rec.Version,
			CreatedAt: rec.CreatedAt.UnixMilli(),
		}
		if rec.ClosedAt != nil {
			sum.ClosedAt = rec.ClosedAt.UnixMilli()
		}
		if ls, err := s.live(rec.SessionID); err == nil {
			sum.Live = true
			snap := ls.snapshot.Load()
			sum.Phase = snap.Phase
			sum.Version = snap.Version
		}
		out = append(out, sum)
	}
	return out, nil
}

// CloseSession ends a session. The final snapshot stays readable through GetState.
func (s *Service) CloseSession(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	s.mu.Lock()
	ls, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}

	// Wait for any in-flight writer and its fan-out.
	ls.mu.Lock()
	ls.pub.Lock()
	snap := ls.eng.Snapshot()
	ls.pub.Unlock()
	ls.mu.Unlock()

	if err := s.saveSnapshot(ctx, snap); err != nil {
		s.logger.Warn("failed to save final snapshot", "session_id", sessionID, "error", err)
	}
	if err := s.store.CloseSession(ctx, sessionID, s.now()); err != nil {
		s.logger.Warn("failed to close session", "session_id", sessionID, "error", err)
	}
	logging.ForSession(s.logger, sessionID).Info("session closed", "phase", snap.Phase, "version", snap.Version)
	return snap, nil
}

// GetHint returns the one-way projection of an attendee's private notes for its human.
// It reads the published hint, so it never waits on an operation in progress.
func (s *Service) GetHint(ctx context.Context, sessionID, attendeeID string) (*domain.Hint, error) {
	ls, err := s.live(sessionID)
	if err != nil {
		return nil, err
	}
	for _, a := range ls.snapshot.Load().Attendees {
		if a.ID != attendeeID {
			continue
		}
		if !a.Human {
			return nil, fmt.Errorf("%w: %s", domain.ErrHintForbidden, attendeeID)
		}
		if h := ls.hint.Load(); h != nil {
			hint := *h
			return &hint, nil
		}
		return &domain.Hint{SessionID: sessionID, AttendeeID: attendeeID}, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAttendee, attendeeID)
}

// GetTranscript reads a session's transcript from the store.
func (s *Service) GetTranscript(ctx context.Context, sessionID string, afterSeq, limit int) ([]domain.TranscriptEntry, error) {
	if err := s.exists(ctx, sessionID); err != nil {
		return nil, err
	}
	entries, err := s.store.GetTranscript(ctx, sessionID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return entries, nil
}

// GetEvents reads persisted notifications for replay.
func (s *Service) GetEvents(ctx context.Context, sessionID string, afterSeq int64, types []string, limit int) ([]domain.Event, error) {
	if err := s.exists(ctx, sessionID); err != nil {
		return nil, err
	}
	events, err := s.store.GetEvents(ctx, sessionID, afterSeq, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}

func (s *Service) exists(ctx context.Context, sessionID string) error {
	if _, err := s.live(sessionID); err == nil {
		return nil
	}
	rec, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return nil
}
