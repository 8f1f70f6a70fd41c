package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/caucus/internal/domain"
)

// productionAttempts is one try plus one retry.
const productionAttempts = 2

type actor struct {
	id     string
	source domain.TurnSource
}

// nextActor resolves whose turn it is: an open vote's next voter, then raised placards,
// then the head of the speakers list. Absent attendees found on the floor are dropped.
func nextActor(s *state) (actor, bool) {
	if s.motions.VoteOpen() {
		if pending := s.motions.pendingVoters(s.roster); len(pending) > 0 {
			return actor{id: pending[0], source: domain.TurnSourceVote}, true
		}
		return actor{}, false
	}
	if !floorOpen(s.phase) {
		return actor{}, false
	}
	for {
		id, ok := s.queue.FirstPlacard()
		if !ok {
			break
		}
		if a, err := s.roster.Get(id); err == nil && a.Status != domain.AttendanceAbsent {
			return actor{id: id, source: domain.TurnSourcePlacard}, true
		}
		s.queue.ClearPlacard(id)
		queueChanged(s, "absent", id)
	}
	for {
		id, ok := s.queue.Head()
		if !ok {
			break
		}
		if a, err := s.roster.Get(id); err == nil && a.Status != domain.AttendanceAbsent {
			return actor{id: id, source: domain.TurnSourceQueue}, true
		}
		s.queue.Remove(id)
		queueChanged(s, "absent", id)
	}
	return actor{}, false
}

// Advance resolves the next actor and drives it. Autonomous attendees run to completion;
// the human suspends the coordinator until a human submission arrives.
func (e *Engine) Advance(ctx context.Context) (domain.AdvanceResult, error) {
	var out domain.AdvanceResult
	err := e.external(func(s *state) error {
		next, ok := nextActor(s)
		if !ok {
			out = domain.AdvanceResult{Outcome: domain.AdvanceIdle}
			return nil
		}
		a, err := s.roster.Get(next.id)
		if err != nil {
			return err
		}
		out = domain.AdvanceResult{AttendeeID: a.ID, Source: next.source}
		if a.Human {
			e.suspend(ctx, s, a, next.source)
			out.Outcome = domain.AdvanceSuspended
			out.Awaiting = coordinatorState(s).Awaiting
			return nil
		}
		if next.source == domain.TurnSourceVote {
			out.Outcome = domain.AdvanceVoted
			choice, err := e.produceVote(ctx, s, a)
			if err != nil {
				out.Warning = err.Error()
				warn(s, a.ID, err)
			}
			return castVote(s, a.ID, choice)
		}
		out.Outcome = domain.AdvanceSpoke
		entry, err := e.produceTurn(ctx, s, a, next.source)
		if err != nil {
			out.Warning = err.Error()
			warn(s, a.ID, err)
		}
		out.Entry = &entry
		releaseFloor(s, a.ID, next.source)
		return nil
	})
	return out, err
}

func warn(s *state, attendeeID string, err error) {
	s.notify(domain.EventTypeWarning, domain.WarningPayload{
		Code:       domain.ErrorCode(err),
		AttendeeID: attendeeID,
		Message:    err.Error(),
	})
}

func (e *Engine) suspend(ctx context.Context, s *state, a *Attendee, source domain.TurnSource) {
	kind := domain.AwaitTurn
	if source == domain.TurnSourceVote {
		kind = domain.AwaitVote
	}
	s.suspended = true
	s.awaiting = &domain.Awaiting{AttendeeID: a.ID, Kind: kind, Source: source}
	s.notify(domain.EventTypeCoordinatorChanged, domain.CoordinatorChangedPayload{Coordinator: coordinatorState(s)})
	if kind == domain.AwaitVote {
		// The human gets one general speaking slot to vote before abstaining.
		if s.timer.StartSpeakerFor(e.rules.GSLSpeakerTime()) {
			timerChanged(s, "vote_started")
		}
		return
	}
	if s.timer.StartSpeaker() {
		timerChanged(s, "speaker_started")
	}
	if advisor, ok := e.producer.(Advisor); ok {
		if note, err := advisor.Advise(ctx, a.ID, e.turnContext(s, a, source)); err == nil && strings.TrimSpace(note) != "" {
			a.notes = append(a.notes, note)
		}
	}
}

// resume ends the human's hold on the coordinator.
func (e *Engine) resume(s *state) error {
	s.suspended = false
	s.awaiting = nil
	s.notify(domain.EventTypeCoordinatorChanged, domain.CoordinatorChangedPayload{Coordinator: coordinatorState(s)})
	return e.settleLapse(s)
}

// releaseFloor removes a speaker from wherever it was called from.
func releaseFloor(s *state, id string, source domain.TurnSource) {
	switch source {
	case domain.TurnSourcePlacard:
		if s.queue.ClearPlacard(id) {
			queueChanged(s, "placard_cleared", id)
		}
	case domain.TurnSourceQueue:
		if s.queue.Remove(id) {
			queueChanged(s, "dequeued", id)
		}
	}
}

func (e *Engine) turnContext(s *state, a *Attendee, source domain.TurnSource) domain.TurnContext {
	tc := domain.TurnContext{
		SessionID:  s.id,
		AttendeeID: a.ID,
		Phase:      s.phase,
		Source:     source,
		Notes:      a.Notes(),
	}
	if m := s.motions.Current(); m != nil {
		cp := *m
		tc.Motion = &cp
	}
	if res := contextResolution(s, tc.Motion); res != nil {
		cp := copyResolution(res)
		tc.Resolution = &cp
	}
	recent := s.transcript
	if n := e.rules.TranscriptContext; n > 0 && len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	tc.Recent = append([]domain.TranscriptEntry{}, recent...)
	return tc
}

// contextResolution picks the resolution a participant should be thinking about.
func contextResolution(s *state, m *domain.Motion) *domain.Resolution {
	if m != nil && m.Topic.ResolutionID != "" {
		if res, err := s.docs.Get(m.Topic.ResolutionID); err == nil {
			return res
		}
	}
	for i := len(s.docs.resolutions) - 1; i >= 0; i-- {
		if s.docs.resolutions[i].Status == domain.ResolutionStatusDraft {
			return s.docs.resolutions[i]
		}
	}
	return nil
}

// produceTurn asks the producer for a turn, retrying once. On failure the attendee passes.
func (e *Engine) produceTurn(ctx context.Context, s *state, a *Attendee, source domain.TurnSource) (domain.TranscriptEntry, error) {
	tc := e.turnContext(s, a, source)
	var lastErr error
	for attempt := 0; attempt < productionAttempts; attempt++ {
		if e.producer == nil {
			lastErr = errors.New("no producer configured")
			break
		}
		out, err := e.producer.ProduceTurn(ctx, a.ID, tc)
		if err == nil && strings.TrimSpace(out.UtteranceText) == "" {
			err = errors.New("empty utterance")
		}
		if err == nil {
			if note := strings.TrimSpace(out.StrategyNote); note != "" {
				a.notes = append(a.notes, note)
			}
			return e.appendTranscript(s, a.ID, domain.EntryKindSpeech, strings.TrimSpace(out.UtteranceText)), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	entry := e.appendTranscript(s, a.ID, domain.EntryKindPass, e.rules.FallbackUtterance)
	return entry, fmt.Errorf("%w: %s: %v", domain.ErrActorProductionFailed, a.ID, lastErr)
}

// produceVote asks the producer for a vote, retrying once. On failure the attendee abstains.
func (e *Engine) produceVote(ctx context.Context, s *state, a *Attendee) (domain.VoteChoice, error) {
	tc := e.turnContext(s, a, domain.TurnSourceVote)
	var lastErr error
	for attempt := 0; attempt < productionAttempts; attempt++ {
		if e.producer == nil {
			lastErr = errors.New("no producer configured")
			break
		}
		choice, err := e.producer.ProduceVote(ctx, a.ID, tc)
		if err == nil && !choice.Valid() {
			err = fmt.Errorf("malformed vote %q", choice)
		}
		if err == nil {
			return choice, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return domain.VoteAbstain, fmt.Errorf("%w: %s: %v", domain.ErrActorProductionFailed, a.ID, lastErr)
}

// awaiting checks that the coordinator is suspended waiting for kind.
func awaiting(s *state, kind domain.AwaitKind) (*Attendee, error) {
	if !s.suspended || s.awaiting == nil {
		return nil, domain.ErrNotSuspended
	}
	if s.awaiting.Kind != kind {
		return nil, fmt.Errorf("%w: waiting for a %s, not a %s", domain.ErrUnexpectedSubmission, s.awaiting.Kind, kind)
	}
	return s.roster.Get(s.awaiting.AttendeeID)
}

// SubmitHumanTurn records the human's speech and resumes the coordinator.
func (e *Engine) SubmitHumanTurn(content string) (domain.TranscriptEntry, error) {
	var out domain.TranscriptEntry
	err := e.mutate(func(s *state) error {
		a, err := awaiting(s, domain.AwaitTurn)
		if err != nil {
			return err
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return fmt.Errorf("%w: content is required", domain.ErrInvalidArgument)
		}
		out = e.appendTranscript(s, a.ID, domain.EntryKindSpeech, content)
		return e.finishHumanTurn(s, a.ID)
	})
	return out, err
}

// SubmitHumanYield ends the human's turn. A non-empty target is recognized next.
func (e *Engine) SubmitHumanYield(target string) (domain.TranscriptEntry, error) {
	var out domain.TranscriptEntry
	err := e.mutate(func(s *state) error {
		a, err := awaiting(s, domain.AwaitTurn)
		if err != nil {
			return err
		}
		entry, err := e.yield(s, a.ID, target, "")
		out = entry
		return err
	})
	return out, err
}

func (e *Engine) yield(s *state, speaker, target, reason string) (domain.TranscriptEntry, error) {
	text := "Yields the floor to the chair."
	if target != "" {
		if target == speaker {
			return domain.TranscriptEntry{}, fmt.Errorf("%w: cannot yield to oneself", domain.ErrInvalidArgument)
		}
		if _, err := presentAttendee(s, target); err != nil {
			return domain.TranscriptEntry{}, err
		}
		text = fmt.Sprintf("Yields the floor to %s.", target)
	}
	if reason != "" {
		text = reason + " " + text
	}
	entry := e.appendTranscript(s, speaker, domain.EntryKindYield, text)
	if err := e.finishHumanTurn(s, speaker); err != nil {
		return entry, err
	}
	if target != "" {
		s.queue.Promote(target)
		queueChanged(s, "recognized", target)
	}
	return entry, nil
}

func (e *Engine) finishHumanTurn(s *state, id string) error {
	releaseFloor(s, id, s.awaiting.Source)
	s.timer.StopSpeaker()
	timerChanged(s, "speaker_stopped")
	return e.resume(s)
}

// SubmitHumanVote records the human's vote. It resumes the coordinator if it was waiting for it.
func (e *Engine) SubmitHumanVote(choice domain.VoteChoice) error {
	return e.mutate(func(s *state) error {
		human := s.roster.Human()
		if human == nil {
			return fmt.Errorf("%w: session has no human attendee", domain.ErrUnknownAttendee)
		}
		if !s.suspended {
			return castVote(s, human.ID, choice)
		}
		if _, err := awaiting(s, domain.AwaitVote); err != nil {
			return err
		}
		if err := castVote(s, human.ID, choice); err != nil {
			return err
		}
		s.timer.StopSpeaker()
		timerChanged(s, "speaker_stopped")
		return e.resume(s)
	})
}

// Tick advances the timer by elapsed and applies expiries. It runs even while suspended,
// since speaker expiry is how an abandoned human turn is released. Expiries that no
// longer apply to the current phase are returned as stale and have no effect.
func (e *Engine) Tick(elapsed time.Duration) ([]domain.Expiry, error) {
	var stale []domain.Expiry
	err := e.mutate(func(s *state) error {
		if !s.timer.Tick(elapsed) {
			return nil
		}
		timerChanged(s, "tick")
		for _, exp := range s.timer.Expire() {
			applied, err := e.expire(s, exp)
			if err != nil {
				return err
			}
			if !applied {
				stale = append(stale, exp)
			}
		}
		return nil
	})
	return stale, err
}

func (e *Engine) expire(s *state, exp domain.Expiry) (bool, error) {
	switch exp {
	case domain.ExpiryTotal:
		if s.phase != domain.PhaseMod && s.phase != domain.PhaseUnmod {
			return false, nil
		}
		if s.suspended || s.motions.Current() != nil {
			s.lapsed = true
			return true, nil
		}
		return true, e.transition(s, TriggerTimeExpired, 0, 0)
	case domain.ExpirySpeaker:
		if !s.suspended || s.awaiting == nil {
			return false, nil
		}
		switch s.awaiting.Kind {
		case domain.AwaitTurn:
			_, err := e.yield(s, s.awaiting.AttendeeID, "", "Speaking time has expired.")
			return true, err
		case domain.AwaitVote:
			id := s.awaiting.AttendeeID
			if err := castVote(s, id, domain.VoteAbstain); err != nil {
				warn(s, id, err)
			} else {
				s.notify(domain.EventTypeWarning, domain.WarningPayload{
					Code:       "vote_timeout",
					AttendeeID: id,
					Message:    "Voting time expired; " + id + " abstains.",
				})
			}
			return true, e.resume(s)
		}
	}
	return false, nil
}
