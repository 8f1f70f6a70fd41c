package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/protocol"
)

// publish persists and broadcasts committed notifications. The store and the hub are
// sinks: their failures are logged and never undo the mutation.
func (s *Service) publish(ctx context.Context, sessionID string, snap *domain.SessionState, notes []domain.Notification) {
	if len(notes) == 0 {
		return
	}
	persist := false
	for _, n := range notes {
		payload, err := json.Marshal(n.Payload)
		if err != nil {
			s.logger.Warn("failed to marshal notification", "session_id", sessionID, "type", n.Type, "error", err)
			continue
		}
		ts := s.now().UnixMilli()

		if !isTick(n) {
			persist = true
			if err := s.recordEvent(ctx, sessionID, n, payload, ts); err != nil {
				s.logger.Warn("failed to record event", "session_id", sessionID, "seq", n.Seq, "error", err)
			}
			s.recordSideTables(ctx, sessionID, n)
		}

		if s.hub == nil {
			continue
		}
		msg := protocol.EventMessage{
			BaseMessage: protocol.BaseMessage{Type: protocol.TypeEvent, Ts: ts, SessionID: sessionID},
			Event:       n.Type,
			Seq:         n.Seq,
			Payload:     payload,
		}
		if err := s.hub.BroadcastJSON(sessionID, msg); err != nil {
			s.logger.Warn("failed to broadcast event", "session_id", sessionID, "seq", n.Seq, "error", err)
		}
	}

	if persist && snap != nil {
		if err := s.saveSnapshot(ctx, snap); err != nil {
			s.logger.Warn("failed to save snapshot", "session_id", sessionID, "version", snap.Version, "error", err)
		}
	}
}

// isTick reports whether n is a periodic countdown update. Those are broadcast only.
func isTick(n domain.Notification) bool {
	p, ok := n.Payload.(domain.TimerChangedPayload)
	return ok && n.Type == domain.EventTypeTimerChanged && p.Reason == "tick"
}

// recordEvent records an event to the store.
func (s *Service) recordEvent(ctx context.Context, sessionID string, n domain.Notification, payload json.RawMessage, ts int64) error {
	event := &domain.Event{
		EventID:   "evt_" + uuid.New().String()[:8],
		SessionID: sessionID,
		Seq:       n.Seq,
		Ts:        ts,
		Type:      n.Type,
		Payload:   payload,
	}
	return s.store.CreateEvent(ctx, event)
}

func (s *Service) recordSideTables(ctx context.Context, sessionID string, n domain.Notification) {
	switch p := n.Payload.(type) {
	case domain.TranscriptAppendedPayload:
		if err := s.store.AppendTranscript(ctx, sessionID, p.Entry); err != nil {
			s.logger.Warn("failed to append transcript", "session_id", sessionID, "entry", p.Entry.Seq, "error", err)
		}
	case domain.VoteRecordedPayload:
		if p.Retracted {
			if err := s.store.DeleteVote(ctx, sessionID, p.MotionID, p.Round, p.AttendeeID); err != nil {
				s.logger.Warn("failed to strike vote", "session_id", sessionID, "motion_id", p.MotionID, "error", err)
			}
			return
		}
		vote := &domain.VoteRow{
			SessionID:  sessionID,
			MotionID:   p.MotionID,
			Round:      p.Round,
			AttendeeID: p.AttendeeID,
			Choice:     p.Choice,
			UpdatedAt:  s.now(),
		}
		if err := s.store.UpsertVote(ctx, vote); err != nil {
			s.logger.Warn("failed to record vote", "session_id", sessionID, "motion_id", p.MotionID, "error", err)
		}
	}
}

func (s *Service) saveSnapshot(ctx context.Context, snap *domain.SessionState) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.store.SaveSnapshot(ctx, snap.SessionID, snap.Phase, snap.Version, data)
}
