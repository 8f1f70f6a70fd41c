package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/caucus/internal/config"
	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/logging"
	"github.com/xiaot623/caucus/internal/protocol"
	"github.com/xiaot623/caucus/internal/repository"
	"github.com/xiaot623/caucus/internal/rules"
	"github.com/xiaot623/caucus/policy"
	"github.com/xiaot623/caucus/tests/helpers"
)

type recordingHub struct {
	mu   sync.Mutex
	msgs map[string][]protocol.EventMessage
}

func (h *recordingHub) BroadcastJSON(sessionID string, v interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.msgs == nil {
		h.msgs = make(map[string][]protocol.EventMessage)
	}
	if msg, ok := v.(protocol.EventMessage); ok {
		h.msgs[sessionID] = append(h.msgs[sessionID], msg)
	}
	return nil
}

func (h *recordingHub) events(sessionID string) []domain.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.EventType
	for _, m := range h.msgs[sessionID] {
		out = append(out, m.Event)
	}
	return out
}

type yesProducer struct{}

func (yesProducer) ProduceTurn(_ context.Context, attendeeID string, _ domain.TurnContext) (domain.TurnOutput, error) {
	return domain.TurnOutput{StrategyNote: "hold firm", UtteranceText: attendeeID + " supports the draft."}, nil
}

func (yesProducer) ProduceVote(_ context.Context, _ string, _ domain.TurnContext) (domain.VoteChoice, error) {
	return domain.VoteYes, nil
}

type fixture struct {
	svc   *Service
	store *repository.SQLiteStore
	hub   *recordingHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := helpers.NewTestSQLiteStore(t)
	pe, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	hub := &recordingHub{}
	cfg := &config.Config{TimerTick: 10 * time.Millisecond}
	svc := New(store, hub, yesProducer{}, cfg, pe, rules.Default(), logging.Discard())
	return &fixture{svc: svc, store: store, hub: hub}
}

func (f *fixture) create(t *testing.T, human string) string {
	t.Helper()
	var specs []domain.AttendeeSpec
	for _, id := range []string{"USA", "China", "Japan"} {
		specs = append(specs, domain.AttendeeSpec{ID: id, Human: id == human, Status: domain.AttendancePresentAndVoting})
	}
	snap, err := f.svc.CreateSession(context.Background(), domain.CreateSessionRequest{Attendees: specs})
	require.NoError(t, err)
	return snap.SessionID
}

func (f *fixture) chair(t *testing.T, sessionID, tool, args string) *domain.ChairToolResponse {
	t.Helper()
	var raw json.RawMessage
	if args != "" {
		raw = json.RawMessage(args)
	}
	resp, err := f.svc.InvokeChairTool(context.Background(), sessionID, tool, raw)
	require.NoError(t, err)
	return resp
}

func TestCreateSessionPersistsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "")

	state, err := f.svc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseRollCall, state.Phase)
	assert.Len(t, state.Attendees, 3)

	rec, err := f.store.GetSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.PhaseRollCall, rec.Phase)
	assert.NotEmpty(t, rec.Snapshot)

	sessions, err := f.svc.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Live)
}

func TestCreateSessionRejectsTwoHumans(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSession(context.Background(), domain.CreateSessionRequest{Attendees: []domain.AttendeeSpec{
		{ID: "USA", Human: true},
		{ID: "China", Human: true},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestChairToolFansOutNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "")

	resp := f.chair(t, id, "complete_roll_call", "")
	assert.Equal(t, domain.PhaseGSL, resp.State.Phase)
	assert.Contains(t, f.hub.events(id), domain.EventTypePhaseChanged)

	events, err := f.svc.GetEvents(ctx, id, 0, []string{string(domain.EventTypePhaseChanged)}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	rec, err := f.store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGSL, rec.Phase)
	assert.Equal(t, resp.State.Version, rec.Version)
}

func TestChairToolPolicyAndLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "")

	_, err := f.svc.InvokeChairTool(ctx, id, "close_debate", nil)
	assert.ErrorIs(t, err, domain.ErrToolBlocked)

	_, err = f.svc.InvokeChairTool(ctx, id, "adjourn", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownTool)

	_, err = f.svc.InvokeChairTool(ctx, "ses_missing", "complete_roll_call", nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = f.svc.InvokeChairTool(ctx, id, "update_gsl", json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	state, err := f.svc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseRollCall, state.Phase)
}

func TestAdvancePersistsTranscript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "")
	f.chair(t, id, "complete_roll_call", "")
	f.chair(t, id, "update_gsl", `{"action":"add","attendee_id":"China"}`)

	resp, err := f.svc.Advance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AdvanceSpoke, resp.Result.Outcome)
	assert.Equal(t, "China", resp.Result.AttendeeID)

	entries, err := f.svc.GetTranscript(ctx, id, 0, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, "China supports the draft.", last.Text)

	resp, err = f.svc.Advance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AdvanceIdle, resp.Result.Outcome)
}

func TestHumanTurnThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "USA")
	f.chair(t, id, "complete_roll_call", "")
	f.chair(t, id, "update_gsl", `{"action":"add","attendee_id":"USA"}`)

	resp, err := f.svc.Advance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AdvanceSuspended, resp.Result.Outcome)
	assert.True(t, resp.State.Coordinator.Suspended)

	_, err = f.svc.InvokeChairTool(ctx, id, "update_gsl", json.RawMessage(`{"action":"add","attendee_id":"China"}`))
	assert.ErrorIs(t, err, domain.ErrSessionSuspended)

	_, err = f.svc.SubmitHumanVote(ctx, id, domain.HumanVoteRequest{Choice: domain.VoteYes})
	assert.Error(t, err)

	state, err := f.svc.SubmitHumanTurn(ctx, id, domain.HumanTurnRequest{Content: "We urge restraint."})
	require.NoError(t, err)
	assert.False(t, state.Coordinator.Suspended)
	assert.Empty(t, state.Queue)

	hint, err := f.svc.GetHint(ctx, id, "USA")
	require.NoError(t, err)
	assert.Equal(t, "USA", hint.AttendeeID)
	_, err = f.svc.GetHint(ctx, id, "China")
	assert.ErrorIs(t, err, domain.ErrHintForbidden)
}

func TestTimerDriverEndsCaucus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "")
	f.chair(t, id, "complete_roll_call", "")
	f.chair(t, id, "set_motion", `{"type":"moderated_caucus","total_seconds":60,"speaker_seconds":30}`)
	f.chair(t, id, "open_voting", "")
	for i := 0; i < 3; i++ {
		resp, err := f.svc.Advance(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.AdvanceVoted, resp.Result.Outcome)
	}
	resp := f.chair(t, id, "tally_vote", "")
	require.Equal(t, domain.PhaseMod, resp.State.Phase)

	f.svc.TickAll(ctx, 30*time.Second)
	state, err := f.svc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseMod, state.Phase)
	assert.Equal(t, int64(30000), state.Timer.TotalRemainingMs)

	f.svc.TickAll(ctx, 30*time.Second)
	state, err = f.svc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGSL, state.Phase)

	votes, err := f.store.ListVotes(ctx, id, resp.State.LastResult.MotionID)
	require.NoError(t, err)
	assert.Len(t, votes, 3)
}

func TestRunTimerDriverStopsWithContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunTimerDriver(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timer driver did not stop")
	}
}

func TestCloseSessionKeepsFinalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "")
	f.chair(t, id, "complete_roll_call", "")

	closed, err := f.svc.CloseSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGSL, closed.Phase)

	_, err = f.svc.Advance(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	state, err := f.svc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGSL, state.Phase)

	sessions, err := f.svc.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Live)
	assert.NotZero(t, sessions[0].ClosedAt)

	_, err = f.svc.CloseSession(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCreateSessionRulesOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	specs := []domain.AttendeeSpec{
		{ID: "USA", Status: domain.AttendancePresentAndVoting},
		{ID: "China", Status: domain.AttendancePresentAndVoting},
	}

	short := rules.Rules{MaxCaucusSeconds: 120}
	snap, err := f.svc.CreateSession(ctx, domain.CreateSessionRequest{Attendees: specs, Rules: &short})
	require.NoError(t, err)
	f.chair(t, snap.SessionID, "complete_roll_call", "")

	_, err = f.svc.InvokeChairTool(ctx, snap.SessionID, "set_motion",
		json.RawMessage(`{"type":"moderated_caucus","total_seconds":300,"speaker_seconds":60,"proposer":"USA"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	bad := rules.Rules{SubstantiveMajority: "unanimous"}
	_, err = f.svc.CreateSession(ctx, domain.CreateSessionRequest{Attendees: specs, Rules: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func (f *fixture) startCaucus(t *testing.T, sessionID string, total, speaker int) {
	t.Helper()
	f.chair(t, sessionID, "set_motion", fmt.Sprintf(`{"type":"moderated_caucus","total_seconds":%d,"speaker_seconds":%d}`, total, speaker))
	f.chair(t, sessionID, "open_voting", "")
	for i := 0; i < 3; i++ {
		resp, err := f.svc.Advance(context.Background(), sessionID)
		require.NoError(t, err)
		require.Equal(t, domain.AdvanceVoted, resp.Result.Outcome)
	}
}

func TestAbsentAttendeeVoteIsStruckFromStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "")
	f.chair(t, id, "complete_roll_call", "")
	f.startCaucus(t, id, 600, 60)

	state, err := f.svc.GetState(ctx, id)
	require.NoError(t, err)
	motionID := state.Vote.MotionID

	f.chair(t, id, "record_attendance", `{"attendee_id":"China","status":"ABSENT"}`)
	votes, err := f.store.ListVotes(ctx, id, motionID)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	for _, v := range votes {
		assert.NotEqual(t, "China", v.AttendeeID)
	}

	resp := f.chair(t, id, "tally_vote", "")
	assert.Equal(t, domain.VoteCounts{Yes: 2}, resp.State.LastResult.Counts)
}

func TestConcurrentOperationsShareSessionLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "")
	f.chair(t, id, "complete_roll_call", "")
	f.startCaucus(t, id, 600, 60)
	f.chair(t, id, "tally_vote", "")

	const rounds = 40
	var (
		wg    sync.WaitGroup
		spoke atomic.Int64
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			attendee := []string{"USA", "China", "Japan"}[i%3]
			_, err := f.svc.InvokeChairTool(ctx, id, "update_gsl", json.RawMessage(`{"action":"add","attendee_id":"`+attendee+`"}`))
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			resp, err := f.svc.Advance(ctx, id)
			if assert.NoError(t, err) && resp.Result.Outcome == domain.AdvanceSpoke {
				spoke.Add(1)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			f.svc.TickAll(ctx, 10*time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		var last int64
		for i := 0; i < rounds*2; i++ {
			state, err := f.svc.GetState(ctx, id)
			if !assert.NoError(t, err) {
				return
			}
			assert.GreaterOrEqual(t, state.Version, last)
			last = state.Version
			seen := map[string]bool{}
			for _, q := range state.Queue {
				assert.False(t, seen[q], "speaker %s queued twice", q)
				seen[q] = true
			}
			for n, entry := range state.Transcript {
				assert.Equal(t, n+1, entry.Seq)
			}
		}
	}()
	wg.Wait()

	state, err := f.svc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseMod, state.Phase)
	assert.Equal(t, int64(600000-rounds*10), state.Timer.TotalRemainingMs)

	spoken := 0
	for _, entry := range state.Transcript {
		if entry.Kind == domain.EntryKindSpeech {
			spoken++
		}
	}
	assert.Equal(t, int(spoke.Load()), spoken)

	stored, err := f.svc.GetTranscript(ctx, id, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, stored, len(state.Transcript))

	events, err := f.svc.GetEvents(ctx, id, 0, nil, 1000)
	require.NoError(t, err)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
}

type advisingProducer struct {
	yesProducer
}

func (advisingProducer) Advise(_ context.Context, _ string, _ domain.TurnContext) (string, error) {
	return "Press for a funding clause.", nil
}

func TestHintDoesNotWaitForWriter(t *testing.T) {
	f := newFixture(t)
	f.svc.producer = advisingProducer{}
	ctx := context.Background()
	id := f.create(t, "USA")
	f.chair(t, id, "complete_roll_call", "")
	f.chair(t, id, "update_gsl", `{"action":"add","attendee_id":"USA"}`)
	_, err := f.svc.Advance(ctx, id)
	require.NoError(t, err)

	ls, err := f.svc.live(id)
	require.NoError(t, err)
	ls.mu.Lock()
	defer ls.mu.Unlock()

	type reply struct {
		hint *domain.Hint
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		h, err := f.svc.GetHint(ctx, id, "USA")
		done <- reply{h, err}
	}()
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "Press for a funding clause.", r.hint.Text)
		assert.Equal(t, 1, r.hint.NoteCount)
	case <-time.After(time.Second):
		t.Fatal("GetHint blocked behind the session writer")
	}

	_, err = f.svc.GetHint(ctx, id, "China")
	assert.ErrorIs(t, err, domain.ErrHintForbidden)
	_, err = f.svc.GetHint(ctx, id, "France")
	assert.ErrorIs(t, err, domain.ErrUnknownAttendee)
}
