package engine

import (
	"fmt"

	"github.com/xiaot623/caucus/internal/domain"
)

// Attendee is one participant. Notes are private and never leave the engine except as a hint.
type Attendee struct {
	ID     string
	Status domain.AttendanceStatus
	Human  bool
	notes  []string
}

// Notes returns a copy of the attendee's private strategy notes.
func (a *Attendee) Notes() []string {
	return append([]string(nil), a.notes...)
}

// CanVote reports whether the attendee is eligible to vote.
func (a *Attendee) CanVote() bool {
	return a.Status == domain.AttendancePresentAndVoting
}

// Roster is the ordered attendee list with roll-call status.
type Roster struct {
	attendees []*Attendee
}

// NewRoster validates specs and builds a roster. Attendees start ABSENT unless a status is given.
func NewRoster(specs []domain.AttendeeSpec) (*Roster, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: at least one attendee is required", domain.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(specs))
	humans := 0
	r := &Roster{}
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("%w: attendee id is required", domain.ErrInvalidArgument)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("%w: duplicate attendee %s", domain.ErrInvalidArgument, spec.ID)
		}
		seen[spec.ID] = true
		status := spec.Status
		if status == "" {
			status = domain.AttendanceAbsent
		}
		if !status.Valid() {
			return nil, fmt.Errorf("%w: attendance status %q", domain.ErrInvalidArgument, status)
		}
		if spec.Human {
			humans++
		}
		r.attendees = append(r.attendees, &Attendee{ID: spec.ID, Status: status, Human: spec.Human})
	}
	if humans > 1 {
		return nil, fmt.Errorf("%w: at most one human attendee per session", domain.ErrInvalidArgument)
	}
	return r, nil
}

// Get returns the attendee with id.
func (r *Roster) Get(id string) (*Attendee, error) {
	for _, a := range r.attendees {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAttendee, id)
}

// Record sets an attendee's roll-call status and reports whether it changed.
func (r *Roster) Record(id string, status domain.AttendanceStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: attendance status %q", domain.ErrInvalidArgument, status)
	}
	a, err := r.Get(id)
	if err != nil {
		return false, err
	}
	if a.Status == status {
		return false, nil
	}
	a.Status = status
	return true, nil
}

// Voters counts attendees that are PRESENT_AND_VOTING.
func (r *Roster) Voters() int {
	n := 0
	for _, a := range r.attendees {
		if a.CanVote() {
			n++
		}
	}
	return n
}

// Human returns the human attendee, or nil.
func (r *Roster) Human() *Attendee {
	for _, a := range r.attendees {
		if a.Human {
			return a
		}
	}
	return nil
}

// All returns attendees in roster order.
func (r *Roster) All() []*Attendee {
	return r.attendees
}

// Views returns the public projection of every attendee.
func (r *Roster) Views() []domain.AttendeeView {
	out := make([]domain.AttendeeView, 0, len(r.attendees))
	for _, a := range r.attendees {
		out = append(out, domain.AttendeeView{ID: a.ID, Status: a.Status, Human: a.Human})
	}
	return out
}

func (r *Roster) clone() *Roster {
	c := &Roster{attendees: make([]*Attendee, 0, len(r.attendees))}
	for _, a := range r.attendees {
		cp := *a
		cp.notes = append([]string(nil), a.notes...)
		c.attendees = append(c.attendees, &cp)
	}
	return c
}

// SpeakerQueue is the ordered speakers list plus the raised placards.
// No identifier appears twice in either sequence.
type SpeakerQueue struct {
	order    []string
	placards []string
}

// Enqueue appends id and reports whether it was added. Duplicates are a no-op.
func (q *SpeakerQueue) Enqueue(id string) bool {
	if q.Contains(id) {
		return false
	}
	q.order = append(q.order, id)
	return true
}

// DequeueNext removes and returns the head of the queue.
func (q *SpeakerQueue) DequeueNext() (string, bool) {
	if len(q.order) == 0 {
		return "", false
	}
	id := q.order[0]
	q.order = append([]string(nil), q.order[1:]...)
	return id, true
}

// Head returns the head of the queue without removing it.
func (q *SpeakerQueue) Head() (string, bool) {
	if len(q.order) == 0 {
		return "", false
	}
	return q.order[0], true
}

// Reorder replaces the queue order. Membership must be unchanged.
func (q *SpeakerQueue) Reorder(newOrder []string) error {
	if len(newOrder) != len(q.order) {
		return fmt.Errorf("%w: expected %d entries, got %d", domain.ErrQueueMismatch, len(q.order), len(newOrder))
	}
	want := make(map[string]int, len(q.order))
	for _, id := range q.order {
		want[id]++
	}
	for _, id := range newOrder {
		if want[id] == 0 {
			return fmt.Errorf("%w: %s", domain.ErrQueueMismatch, id)
		}
		want[id]--
	}
	q.order = append([]string(nil), newOrder...)
	return nil
}

// Remove drops id from the queue and reports whether it was present.
func (q *SpeakerQueue) Remove(id string) bool {
	for i, cur := range q.order {
		if cur == id {
			q.order = append(append([]string(nil), q.order[:i]...), q.order[i+1:]...)
			return true
		}
	}
	return false
}

// Promote moves or inserts id at the head of the queue.
func (q *SpeakerQueue) Promote(id string) {
	q.Remove(id)
	q.order = append([]string{id}, q.order...)
}

// Contains reports whether id is queued.
func (q *SpeakerQueue) Contains(id string) bool {
	for _, cur := range q.order {
		if cur == id {
			return true
		}
	}
	return false
}

// RaisePlacard records an interruption request and reports whether it was new.
func (q *SpeakerQueue) RaisePlacard(id string) bool {
	for _, cur := range q.placards {
		if cur == id {
			return false
		}
	}
	q.placards = append(q.placards, id)
	return true
}

// ClearPlacard lowers id's placard and reports whether it was raised.
func (q *SpeakerQueue) ClearPlacard(id string) bool {
	for i, cur := range q.placards {
		if cur == id {
			q.placards = append(append([]string(nil), q.placards[:i]...), q.placards[i+1:]...)
			return true
		}
	}
	return false
}

// FirstPlacard returns the earliest raised placard.
func (q *SpeakerQueue) FirstPlacard() (string, bool) {
	if len(q.placards) == 0 {
		return "", false
	}
	return q.placards[0], true
}

// Order returns a copy of the queue order.
func (q *SpeakerQueue) Order() []string {
	return append([]string{}, q.order...)
}

// Placards returns a copy of the raised placards in raise order.
func (q *SpeakerQueue) Placards() []string {
	return append([]string{}, q.placards...)
}

func (q *SpeakerQueue) clone() SpeakerQueue {
	return SpeakerQueue{order: q.Order(), placards: q.Placards()}
}
