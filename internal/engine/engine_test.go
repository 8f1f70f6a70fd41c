package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/rules"
)

var fixedClock = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

type scriptedProducer struct {
	votes map[string]domain.VoteChoice
	turns []string
}

func (p *scriptedProducer) ProduceTurn(_ context.Context, attendeeID string, _ domain.TurnContext) (domain.TurnOutput, error) {
	p.turns = append(p.turns, attendeeID)
	return domain.TurnOutput{StrategyNote: "keep " + attendeeID + " on message", UtteranceText: attendeeID + " addresses the committee."}, nil
}

func (p *scriptedProducer) ProduceVote(_ context.Context, attendeeID string, _ domain.TurnContext) (domain.VoteChoice, error) {
	if v, ok := p.votes[attendeeID]; ok {
		return v, nil
	}
	return domain.VoteYes, nil
}

func delegates(human string, ids ...string) []domain.AttendeeSpec {
	out := make([]domain.AttendeeSpec, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.AttendeeSpec{ID: id, Human: id == human, Status: domain.AttendancePresentAndVoting})
	}
	return out
}

// newDebate returns an engine that has completed roll call and sits in GSL.
func newDebate(t *testing.T, specs []domain.AttendeeSpec, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	e, err := New("s1", specs, rules.Default(), opts...)
	require.NoError(t, err)
	require.NoError(t, e.CompleteRollCall())
	require.Equal(t, domain.PhaseGSL, e.Phase())
	e.Drain()
	return e
}

func snapshotJSON(t *testing.T, e *Engine) string {
	t.Helper()
	raw, err := json.Marshal(e.Snapshot())
	require.NoError(t, err)
	return string(raw)
}

func eventTypes(ns []domain.Notification) []domain.EventType {
	out := make([]domain.EventType, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Type)
	}
	return out
}

func moderatedCaucus(totalSeconds, speakerSeconds int) domain.MotionTopic {
	return domain.MotionTopic{
		Type:           domain.MotionTypeModeratedCaucus,
		Description:    "10-min caucus",
		TotalSeconds:   totalSeconds,
		SpeakerSeconds: speakerSeconds,
	}
}

func passMotion(t *testing.T, e *Engine, m domain.Motion, yes ...string) domain.VoteResult {
	t.Helper()
	require.NoError(t, e.OpenVote(m.ID))
	for _, id := range yes {
		require.NoError(t, e.CastVote(id, domain.VoteYes))
	}
	result, err := e.CloseVote()
	require.NoError(t, err)
	return result
}

func TestModeratedCaucusPassesTwoToOne(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China", "Japan"))

	m, err := e.Propose(domain.MotionKindProcedural, moderatedCaucus(600, 60), "USA")
	require.NoError(t, err)
	require.NoError(t, e.OpenVote(m.ID))
	require.NoError(t, e.CastVote("USA", domain.VoteYes))
	require.NoError(t, e.CastVote("China", domain.VoteYes))
	require.NoError(t, e.CastVote("Japan", domain.VoteNo))

	result, err := e.CloseVote()
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, domain.VoteCounts{Yes: 2, No: 1}, result.Counts)
	assert.Equal(t, domain.PhaseMod, e.Phase())

	timer := e.Snapshot().Timer
	assert.Equal(t, int64(600000), timer.TotalRemainingMs)
	assert.True(t, timer.TotalActive)
	assert.Equal(t, int64(60000), timer.PerSpeakerMs)

	types := eventTypes(e.Drain())
	assert.Contains(t, types, domain.EventTypeMotionChanged)
	assert.Contains(t, types, domain.EventTypeVoteRecorded)
	assert.Contains(t, types, domain.EventTypePhaseChanged)
	assert.Contains(t, types, domain.EventTypeTimerChanged)
}

func TestCastVoteWithoutOpenVoteIsRejected(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China"))
	before := snapshotJSON(t, e)

	err := e.CastVote("USA", domain.VoteYes)
	assert.ErrorIs(t, err, domain.ErrWrongPhase)
	assert.Equal(t, before, snapshotJSON(t, e))
	assert.Empty(t, e.Drain())
}

func TestRejectedOperationsLeaveStateUnchanged(t *testing.T) {
	e, err := New("s1", delegates("", "USA", "China"), rules.Default(), WithClock(fixedClock))
	require.NoError(t, err)
	before := snapshotJSON(t, e)

	assert.ErrorIs(t, e.CloseDebate(), domain.ErrIllegalTransition)
	_, err = e.Propose(domain.MotionKindProcedural, domain.MotionTopic{}, "USA")
	assert.ErrorIs(t, err, domain.ErrWrongPhase)
	_, err = e.Enqueue("France")
	assert.ErrorIs(t, err, domain.ErrUnknownAttendee)
	assert.Equal(t, before, snapshotJSON(t, e))
	assert.Equal(t, int64(0), e.Version())
}

func TestRollCallNeedsQuorum(t *testing.T) {
	r := rules.Default()
	r.Quorum = 2
	e, err := New("s1", []domain.AttendeeSpec{{ID: "USA"}, {ID: "China"}}, r)
	require.NoError(t, err)

	assert.ErrorIs(t, e.CompleteRollCall(), domain.ErrIllegalTransition)
	require.NoError(t, e.RecordAttendance("USA", domain.AttendancePresentAndVoting))
	require.NoError(t, e.RecordAttendance("China", domain.AttendancePresent))
	assert.ErrorIs(t, e.CompleteRollCall(), domain.ErrIllegalTransition)
	require.NoError(t, e.RecordAttendance("China", domain.AttendancePresentAndVoting))
	require.NoError(t, e.CompleteRollCall())
	assert.Equal(t, domain.PhaseGSL, e.Phase())
}

func TestPresentNonVotingAttendeeCannotVote(t *testing.T) {
	specs := delegates("", "USA", "China")
	specs = append(specs, domain.AttendeeSpec{ID: "Observer", Status: domain.AttendancePresent})
	e := newDebate(t, specs)

	m, err := e.Propose("", domain.MotionTopic{Description: "adopt the agenda"}, "USA")
	require.NoError(t, err)
	assert.Equal(t, domain.MotionKindProcedural, m.Kind)
	require.NoError(t, e.OpenVote(m.ID))
	assert.ErrorIs(t, e.CastVote("Observer", domain.VoteYes), domain.ErrInvalidVoter)
	assert.ErrorIs(t, e.CastVote("France", domain.VoteYes), domain.ErrUnknownAttendee)
}

func TestLosingVotingRightsStrikesVote(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China", "Japan"))
	m, err := e.Propose(domain.MotionKindProcedural, moderatedCaucus(600, 60), "USA")
	require.NoError(t, err)
	require.NoError(t, e.OpenVote(m.ID))
	require.NoError(t, e.CastVote("USA", domain.VoteYes))
	require.NoError(t, e.CastVote("China", domain.VoteNo))
	require.NoError(t, e.CastVote("Japan", domain.VoteNo))
	e.Drain()

	require.NoError(t, e.RecordAttendance("China", domain.AttendanceAbsent))
	require.NoError(t, e.RecordAttendance("Japan", domain.AttendancePresent))

	var struck []string
	for _, n := range e.Drain() {
		if p, ok := n.Payload.(domain.VoteRecordedPayload); ok {
			assert.True(t, p.Retracted)
			struck = append(struck, p.AttendeeID)
		}
	}
	assert.Equal(t, []string{"China", "Japan"}, struck)
	assert.Equal(t, map[string]domain.VoteChoice{"USA": domain.VoteYes}, e.Snapshot().Vote.Votes)

	result, err := e.CloseVote()
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, domain.VoteCounts{Yes: 1}, result.Counts)
	assert.Equal(t, domain.PhaseMod, e.Phase())
}

func TestCaucusExpiryReturnsToGSL(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China", "Japan"))
	m, err := e.Propose(domain.MotionKindProcedural, moderatedCaucus(120, 30), "USA")
	require.NoError(t, err)
	passMotion(t, e, m, "USA", "China")
	require.Equal(t, domain.PhaseMod, e.Phase())

	stale, err := e.Tick(60 * time.Second)
	require.NoError(t, err)
	assert.Empty(t, stale)
	assert.Equal(t, domain.PhaseMod, e.Phase())

	_, err = e.Tick(60 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGSL, e.Phase())
	assert.False(t, e.Snapshot().Timer.TotalActive)
}

func TestCaucusExpiryWaitsForPendingMotion(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China", "Japan"))
	m, err := e.Propose(domain.MotionKindProcedural, moderatedCaucus(60, 30), "USA")
	require.NoError(t, err)
	passMotion(t, e, m, "USA", "China")

	_, err = e.Propose(domain.MotionKindProcedural, domain.MotionTopic{Description: "extend"}, "Japan")
	require.NoError(t, err)
	_, err = e.Tick(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseMod, e.Phase())

	_, err = e.WithdrawMotion()
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGSL, e.Phase())
}

func TestUnmoderatedCaucusFreezesProcedure(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China"))
	m, err := e.Propose(domain.MotionKindProcedural, domain.MotionTopic{Type: domain.MotionTypeUnmoderatedCaucus, TotalSeconds: 300}, "USA")
	require.NoError(t, err)
	passMotion(t, e, m, "USA", "China")
	require.Equal(t, domain.PhaseUnmod, e.Phase())

	_, err = e.Propose(domain.MotionKindProcedural, domain.MotionTopic{Description: "anything"}, "USA")
	assert.ErrorIs(t, err, domain.ErrWrongPhase)
	assert.ErrorIs(t, e.CloseDebate(), domain.ErrIllegalTransition)

	res, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.AdvanceIdle, res.Outcome)
}

func TestCaucusLengthIsCapped(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China"))
	_, err := e.Propose(domain.MotionKindProcedural, moderatedCaucus(rules.Default().MaxCaucusSeconds+1, 30), "USA")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = e.Propose(domain.MotionKindProcedural, moderatedCaucus(600, 700), "USA")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUnfriendlyAmendmentWaitsForVote(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China", "Japan"))
	res, err := e.CreateResolution("Climate Finance", []string{"USA"}, []string{"Japan"})
	require.NoError(t, err)
	clause, err := e.AddClause(res.ID, domain.ClauseKindOperative, "Calls upon member states to contribute")
	require.NoError(t, err)

	a, m, err := e.AmendClause(clause.ID, "Urges member states to contribute", false, "China")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, domain.MotionKindSubstantive, m.Kind)
	assert.Equal(t, domain.AmendmentStatusPending, a.Status)
	assert.Equal(t, "Calls upon member states to contribute", e.Snapshot().Resolutions[0].Clauses[0].Text)

	_, err = e.ApplyAmendment(a.ID)
	assert.ErrorIs(t, err, domain.ErrAmendmentRequiresVote)

	require.NoError(t, e.OpenVote(m.ID))
	require.NoError(t, e.CastVote("USA", domain.VoteNo))
	assert.Equal(t, "Calls upon member states to contribute", e.Snapshot().Resolutions[0].Clauses[0].Text)
	require.NoError(t, e.CastVote("China", domain.VoteYes))
	require.NoError(t, e.CastVote("Japan", domain.VoteYes))
	result, err := e.CloseVote()
	require.NoError(t, err)
	require.True(t, result.Passed)

	got := e.Snapshot().Resolutions[0].Clauses[0]
	assert.Equal(t, "Urges member states to contribute", got.Text)
	require.Len(t, got.History, 1)
	assert.Equal(t, "Calls upon member states to contribute", got.History[0].PriorText)
	assert.Equal(t, domain.AmendmentStatusApplied, e.Snapshot().Amendments[0].Status)
}

func TestFriendlyAmendmentAppliesImmediately(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China"))
	res, err := e.CreateResolution("Water", []string{"USA"}, nil)
	require.NoError(t, err)
	clause, err := e.AddClause(res.ID, domain.ClauseKindPreambulatory, "Recalling earlier work")
	require.NoError(t, err)

	a, m, err := e.AmendClause(clause.ID, "Recalling with concern earlier work", true, "USA")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, domain.AmendmentStatusApplied, a.Status)

	got := e.Snapshot().Resolutions[0].Clauses[0]
	assert.Equal(t, "Recalling with concern earlier work", got.Text)
	assert.Equal(t, []domain.ClauseRevision{{PriorText: "Recalling earlier work", AmendmentID: a.ID, Friendly: true}}, got.History)
}

func TestResolutionVoteEndsVotingProcedure(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China", "Japan"))
	res, err := e.CreateResolution("Oceans", []string{"Japan"}, nil)
	require.NoError(t, err)

	_, err = e.Propose("", domain.MotionTopic{Type: domain.MotionTypeResolutionVote, ResolutionID: res.ID}, "Japan")
	assert.ErrorIs(t, err, domain.ErrWrongPhase)

	require.NoError(t, e.CloseDebate())
	require.Equal(t, domain.PhaseVoting, e.Phase())
	m, err := e.Propose("", domain.MotionTopic{Type: domain.MotionTypeResolutionVote, ResolutionID: res.ID}, "Japan")
	require.NoError(t, err)
	assert.Equal(t, domain.MotionKindSubstantive, m.Kind)
	result := passMotion(t, e, m, "USA", "Japan")
	assert.True(t, result.Passed)
	assert.Equal(t, domain.ResolutionStatusPassed, e.Snapshot().Resolutions[0].Status)

	announced, err := e.AnnounceResult()
	require.NoError(t, err)
	assert.Equal(t, result, announced)
	assert.Equal(t, domain.PhaseGSL, e.Phase())
	transcript := e.Snapshot().Transcript
	require.Len(t, transcript, 1)
	assert.Equal(t, domain.EntryKindAnnouncement, transcript[0].Kind)
	assert.Equal(t, "chair", transcript[0].AttendeeID)
}

func TestSnapshotIsStable(t *testing.T) {
	e := newDebate(t, delegates("", "USA", "China"))
	_, err := e.Enqueue("USA")
	require.NoError(t, err)

	first := snapshotJSON(t, e)
	version := e.Version()
	assert.Equal(t, first, snapshotJSON(t, e))
	assert.Equal(t, version, e.Version())

	snap := e.Snapshot()
	snap.Queue[0] = "tampered"
	assert.Equal(t, first, snapshotJSON(t, e))
}

func TestReplayIsDeterministic(t *testing.T) {
	run := func() string {
		e := newDebate(t, delegates("USA", "USA", "China", "Japan"), WithProducer(&scriptedProducer{}))
		_, _ = e.Enqueue("China")
		_, _ = e.Enqueue("USA")
		_ = e.RaisePlacard("Japan")
		_, _ = e.Advance(context.Background())
		_, _ = e.Advance(context.Background())
		_, _ = e.Advance(context.Background())
		_, _ = e.SubmitHumanTurn("The United States supports the draft.")
		m, _ := e.Propose("", moderatedCaucus(300, 45), "Japan")
		_ = e.OpenVote(m.ID)
		_, _ = e.Advance(context.Background())
		_, _ = e.Tick(1500 * time.Millisecond)
		return snapshotJSON(t, e)
	}
	assert.Equal(t, run(), run())
}

func TestSessionRequiresValidInput(t *testing.T) {
	_, err := New("", delegates("", "USA"), rules.Default())
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	bad := rules.Default()
	bad.SubstantiveMajority = "unanimous"
	_, err = New("s1", delegates("", "USA"), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
