// Package engine is the deliberation state machine. It is deterministic and does no I/O of
// its own: callers serialize access per session, and autonomous participants are reached
// through the Producer interface.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/rules"
)

// chairID is the transcript speaker for procedural announcements.
const chairID = "chair"

// Producer produces turns and votes for autonomous attendees.
type Producer interface {
	ProduceTurn(ctx context.Context, attendeeID string, tc domain.TurnContext) (domain.TurnOutput, error)
	ProduceVote(ctx context.Context, attendeeID string, tc domain.TurnContext) (domain.VoteChoice, error)
}

// Advisor is implemented by producers that can brief the human's attendee.
type Advisor interface {
	Advise(ctx context.Context, attendeeID string, tc domain.TurnContext) (string, error)
}

type state struct {
	id         string
	phase      domain.Phase
	roster     *Roster
	queue      SpeakerQueue
	motions    MotionBook
	docs       DocumentSet
	timer      Timer
	transcript []domain.TranscriptEntry
	suspended  bool
	awaiting   *domain.Awaiting
	// Caucus time ran out while a motion or the human held the floor.
	lapsed  bool
	version int64
	seq     int64
	outbox  []domain.Notification
}

func (s *state) clone() *state {
	c := *s
	c.roster = s.roster.clone()
	c.queue = s.queue.clone()
	c.motions = s.motions.clone()
	c.docs = s.docs.clone()
	c.timer = s.timer.clone()
	c.transcript = append([]domain.TranscriptEntry(nil), s.transcript...)
	if s.awaiting != nil {
		a := *s.awaiting
		c.awaiting = &a
	}
	c.outbox = nil
	return &c
}

func (s *state) notify(t domain.EventType, payload any) {
	s.seq++
	s.outbox = append(s.outbox, domain.Notification{Seq: s.seq, Type: t, Payload: payload})
}

// Engine owns one session's state. It is not safe for concurrent use.
type Engine struct {
	st       *state
	rules    rules.Rules
	producer Producer
	now      func() time.Time
	outbox   []domain.Notification
}

// Option configures an Engine.
type Option func(*Engine)

// WithProducer sets the collaborator that drives autonomous attendees.
func WithProducer(p Producer) Option {
	return func(e *Engine) { e.producer = p }
}

// WithClock overrides the clock used to stamp transcript entries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a session in ROLL_CALL.
func New(id string, attendees []domain.AttendeeSpec, r rules.Rules, opts ...Option) (*Engine, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidArgument)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	roster, err := NewRoster(attendees)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		st: &state{
			id:     id,
			phase:  domain.PhaseRollCall,
			roster: roster,
		},
		rules: r.Normalized(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ID returns the session id.
func (e *Engine) ID() string {
	return e.st.id
}

// Phase returns the current phase.
func (e *Engine) Phase() domain.Phase {
	return e.st.phase
}

// Suspended reports whether the coordinator is waiting for the human.
func (e *Engine) Suspended() bool {
	return e.st.suspended
}

// Version counts committed mutations.
func (e *Engine) Version() int64 {
	return e.st.version
}

// Drain returns and clears notifications committed since the last call.
func (e *Engine) Drain() []domain.Notification {
	out := e.outbox
	e.outbox = nil
	return out
}

// mutate runs fn against a copy of the state and commits it only if fn succeeds.
func (e *Engine) mutate(fn func(s *state) error) error {
	next := e.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	if len(next.outbox) > 0 {
		next.version++
		e.outbox = append(e.outbox, next.outbox...)
		next.outbox = nil
	}
	e.st = next
	return nil
}

// external wraps mutations that are refused while the human holds the coordinator.
func (e *Engine) external(fn func(s *state) error) error {
	return e.mutate(func(s *state) error {
		if s.suspended {
			return fmt.Errorf("%w: waiting for %s", domain.ErrSessionSuspended, s.awaiting.AttendeeID)
		}
		return fn(s)
	})
}

// Snapshot returns a deep copy of the public session state.
func (e *Engine) Snapshot() *domain.SessionState {
	s := e.st
	out := &domain.SessionState{
		SessionID:   s.id,
		Version:     s.version,
		Seq:         s.seq,
		Phase:       s.phase,
		Attendees:   s.roster.Views(),
		Queue:       s.queue.Order(),
		Placards:    s.queue.Placards(),
		Motions:     s.motions.Motions(),
		Vote:        s.motions.VoteState(),
		LastResult:  s.motions.Last(),
		Resolutions: s.docs.Resolutions(),
		Amendments:  s.docs.Amendments(),
		Timer:       s.timer.State(),
		Transcript:  append([]domain.TranscriptEntry{}, s.transcript...),
		Coordinator: coordinatorState(s),
	}
	if m := s.motions.Current(); m != nil {
		cp := *m
		out.Motion = &cp
	}
	return out
}

// Hint projects the latest private note of the human's own attendee.
func (e *Engine) Hint(attendeeID string) (domain.Hint, error) {
	a, err := e.st.roster.Get(attendeeID)
	if err != nil {
		return domain.Hint{}, err
	}
	if !a.Human {
		return domain.Hint{}, fmt.Errorf("%w: %s", domain.ErrHintForbidden, attendeeID)
	}
	h := domain.Hint{SessionID: e.st.id, AttendeeID: a.ID, NoteCount: len(a.notes)}
	if len(a.notes) > 0 {
		h.Text = truncate(a.notes[len(a.notes)-1], e.rules.HintMaxChars)
	}
	return h, nil
}

func coordinatorState(s *state) domain.CoordinatorState {
	cs := domain.CoordinatorState{Suspended: s.suspended}
	if s.awaiting != nil {
		a := *s.awaiting
		cs.Awaiting = &a
	}
	return cs
}

func truncate(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if max <= 0 || len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
