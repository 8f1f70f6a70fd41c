package engine

import (
	"fmt"

	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/rules"
)

type voteRound struct {
	motionID string
	round    int
	open     bool
	votes    map[string]domain.VoteChoice
}

func (v *voteRound) counts() domain.VoteCounts {
	var c domain.VoteCounts
	for _, choice := range v.votes {
		switch choice {
		case domain.VoteYes:
			c.Yes++
		case domain.VoteNo:
			c.No++
		case domain.VoteAbstain:
			c.Abstain++
		}
	}
	return c
}

func (v *voteRound) state() *domain.VoteState {
	votes := make(map[string]domain.VoteChoice, len(v.votes))
	for id, choice := range v.votes {
		votes[id] = choice
	}
	return &domain.VoteState{
		MotionID: v.motionID,
		Round:    v.round,
		Open:     v.open,
		Votes:    votes,
		Counts:   v.counts(),
	}
}

// MotionBook holds every motion of a session and the voting round.
// At most one motion is PENDING or ACTIVE at a time, and at most one vote is open.
type MotionBook struct {
	motions []*domain.Motion
	current string
	vote    *voteRound
	rounds  int
	last    *domain.VoteResult
}

// Propose creates a PENDING motion.
func (b *MotionBook) Propose(kind domain.MotionKind, topic domain.MotionTopic, proposer string) (*domain.Motion, error) {
	if cur := b.Current(); cur != nil {
		return nil, fmt.Errorf("%w: motion %s is %s", domain.ErrConflictingMotion, cur.ID, cur.Status)
	}
	if kind != domain.MotionKindProcedural && kind != domain.MotionKindSubstantive {
		return nil, fmt.Errorf("%w: motion kind %q", domain.ErrInvalidArgument, kind)
	}
	m := &domain.Motion{
		ID:       fmt.Sprintf("motion-%d", len(b.motions)+1),
		Proposer: proposer,
		Kind:     kind,
		Topic:    topic,
		Status:   domain.MotionStatusPending,
	}
	b.motions = append(b.motions, m)
	b.current = m.ID
	return m, nil
}

// Current returns the motion on the floor, if any.
func (b *MotionBook) Current() *domain.Motion {
	if b.current == "" {
		return nil
	}
	m, _ := b.Get(b.current)
	return m
}

// Get returns the motion with id.
func (b *MotionBook) Get(id string) (*domain.Motion, error) {
	for _, m := range b.motions {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownMotion, id)
}

// VoteOpen reports whether a voting round is open.
func (b *MotionBook) VoteOpen() bool {
	return b.vote != nil && b.vote.open
}

// OpenVote makes the pending motion ACTIVE and opens a new round.
func (b *MotionBook) OpenVote(id string) (*domain.Motion, error) {
	if b.VoteOpen() {
		return nil, fmt.Errorf("%w: a vote on %s is already open", domain.ErrConflictingMotion, b.vote.motionID)
	}
	m, err := b.Get(id)
	if err != nil {
		return nil, err
	}
	if m.Status != domain.MotionStatusPending || b.current != m.ID {
		return nil, fmt.Errorf("%w: motion %s is %s", domain.ErrConflictingMotion, m.ID, m.Status)
	}
	m.Status = domain.MotionStatusActive
	b.rounds++
	b.vote = &voteRound{motionID: m.ID, round: b.rounds, open: true, votes: map[string]domain.VoteChoice{}}
	return m, nil
}

// Cast records a vote, overwriting any earlier vote by the same attendee in this round.
func (b *MotionBook) Cast(attendeeID string, choice domain.VoteChoice) (domain.VoteCounts, error) {
	if !b.VoteOpen() {
		return domain.VoteCounts{}, domain.ErrNoOpenVote
	}
	if !choice.Valid() {
		return domain.VoteCounts{}, fmt.Errorf("%w: vote choice %q", domain.ErrInvalidArgument, choice)
	}
	b.vote.votes[attendeeID] = choice
	return b.vote.counts(), nil
}

// Retract strikes attendeeID's vote from the open round. It reports false when there was none.
func (b *MotionBook) Retract(attendeeID string) (domain.VoteCounts, bool) {
	if !b.HasVoted(attendeeID) {
		return domain.VoteCounts{}, false
	}
	delete(b.vote.votes, attendeeID)
	return b.vote.counts(), true
}

// HasVoted reports whether attendeeID voted in the open round.
func (b *MotionBook) HasVoted(attendeeID string) bool {
	if !b.VoteOpen() {
		return false
	}
	_, ok := b.vote.votes[attendeeID]
	return ok
}

// Close tallies the open round, settles the motion and clears the floor.
func (b *MotionBook) Close(majority rules.Majority) (*domain.Motion, domain.VoteResult, error) {
	if !b.VoteOpen() {
		return nil, domain.VoteResult{}, domain.ErrNoOpenVote
	}
	m, err := b.Get(b.vote.motionID)
	if err != nil {
		return nil, domain.VoteResult{}, err
	}
	counts := b.vote.counts()
	rule := rules.MajoritySimple
	if m.Kind == domain.MotionKindSubstantive {
		rule = majority
	}
	result := domain.VoteResult{
		MotionID: m.ID,
		Round:    b.vote.round,
		Passed:   Passes(counts, rule),
		Counts:   counts,
	}
	if result.Passed {
		m.Status = domain.MotionStatusPassed
	} else {
		m.Status = domain.MotionStatusFailed
	}
	b.vote.open = false
	b.current = ""
	b.last = &result
	return m, result, nil
}

// Withdraw fails a PENDING motion without a vote.
func (b *MotionBook) Withdraw() (*domain.Motion, bool) {
	m := b.Current()
	if m == nil || m.Status != domain.MotionStatusPending {
		return nil, false
	}
	m.Status = domain.MotionStatusFailed
	b.current = ""
	return m, true
}

// Passes applies the tally rule. Abstentions never count and an all-abstain round fails.
func Passes(c domain.VoteCounts, rule rules.Majority) bool {
	cast := c.Yes + c.No
	if cast == 0 {
		return false
	}
	if rule == rules.MajorityTwoThirds {
		return c.Yes*3 >= cast*2
	}
	return c.Yes > c.No
}

// Last returns the result of the most recently closed round.
func (b *MotionBook) Last() *domain.VoteResult {
	if b.last == nil {
		return nil
	}
	r := *b.last
	return &r
}

// VoteState returns the open or last round.
func (b *MotionBook) VoteState() *domain.VoteState {
	if b.vote == nil {
		return nil
	}
	return b.vote.state()
}

// Motions returns copies of every motion in proposal order.
func (b *MotionBook) Motions() []domain.Motion {
	out := make([]domain.Motion, 0, len(b.motions))
	for _, m := range b.motions {
		out = append(out, *m)
	}
	return out
}

// pendingVoters returns eligible attendees that have not voted in the open round, in roster order.
func (b *MotionBook) pendingVoters(r *Roster) []string {
	if !b.VoteOpen() {
		return nil
	}
	var out []string
	for _, a := range r.All() {
		if a.CanVote() && !b.HasVoted(a.ID) {
			out = append(out, a.ID)
		}
	}
	return out
}

func (b *MotionBook) clone() MotionBook {
	c := MotionBook{current: b.current, rounds: b.rounds}
	for _, m := range b.motions {
		cp := *m
		c.motions = append(c.motions, &cp)
	}
	if b.vote != nil {
		v := *b.vote
		v.votes = make(map[string]domain.VoteChoice, len(b.vote.votes))
		for id, choice := range b.vote.votes {
			v.votes[id] = choice
		}
		c.vote = &v
	}
	if b.last != nil {
		r := *b.last
		c.last = &r
	}
	return c
}
