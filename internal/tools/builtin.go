package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/engine"
)

func init() {
	MustRegister("set_motion", "Put a motion on the floor: {kind, type, description, total_seconds, speaker_seconds, resolution_id, proposer}", setMotion)
	MustRegister("withdraw_motion", "Withdraw the pending motion before it is voted on", withdrawMotion)
	MustRegister("update_gsl", "Edit the speakers list: {action: add|remove|dequeue|reorder|raise_placard|clear_placard, attendee_id, order}", updateGSL)
	MustRegister("yield_floor", "Recognize an attendee next: {attendee_id}", yieldFloor)
	MustRegister("suspend_session", "Pause the session clock, or resume it with {resume: true}", suspendSession)
	MustRegister("extend_session", "Add time to the running caucus: {seconds}", extendSession)
	MustRegister("close_debate", "Close debate and move into voting procedure", closeDebate)
	MustRegister("open_voting", "Open a vote on the pending motion, {motion_id}, or a draft resolution, {resolution_id}", openVoting)
	MustRegister("tally_vote", "Close the open vote and enact its result", tallyVote)
	MustRegister("announce_result", "Announce the last result into the record", announceResult)
	MustRegister("create_resolution", "Start a draft resolution: {title, sponsors, signatories}", createResolution)
	MustRegister("add_clause", "Append a clause: {resolution_id, kind: PREAMBULATORY|OPERATIVE, text}", addClause)
	MustRegister("amend_clause", "Amend a clause: {clause_id, text, friendly, proposer}, or apply one: {amendment_id}", amendClause)
	MustRegister("record_attendance", "Record roll call: {attendee_id, status: PRESENT|PRESENT_AND_VOTING|ABSENT}", recordAttendance)
	MustRegister("complete_roll_call", "Close roll call and open the general speakers list", completeRollCall)
}

func decode(args json.RawMessage, v any) error {
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func result(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidArgument, name)
	}
	return nil
}

type motionArgs struct {
	Kind           string `json:"kind"`
	Type           string `json:"type"`
	Description    string `json:"description"`
	TotalSeconds   int    `json:"total_seconds"`
	SpeakerSeconds int    `json:"speaker_seconds"`
	ResolutionID   string `json:"resolution_id"`
	Proposer       string `json:"proposer"`
}

func setMotion(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a motionArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	m, err := eng.Propose(domain.MotionKind(strings.ToUpper(a.Kind)), domain.MotionTopic{
		Type:           domain.MotionType(strings.ToLower(a.Type)),
		Description:    a.Description,
		TotalSeconds:   a.TotalSeconds,
		SpeakerSeconds: a.SpeakerSeconds,
		ResolutionID:   a.ResolutionID,
	}, a.Proposer)
	if err != nil {
		return nil, err
	}
	return result(m)
}

func withdrawMotion(_ context.Context, eng *engine.Engine, _ json.RawMessage) (json.RawMessage, error) {
	m, err := eng.WithdrawMotion()
	if err != nil {
		return nil, err
	}
	return result(m)
}

type gslArgs struct {
	Action     string   `json:"action"`
	AttendeeID string   `json:"attendee_id"`
	Order      []string `json:"order"`
}

func updateGSL(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a gslArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	switch a.Action {
	case "add":
		if err := required("attendee_id", a.AttendeeID); err != nil {
			return nil, err
		}
		added, err := eng.Enqueue(a.AttendeeID)
		if err != nil {
			return nil, err
		}
		return result(map[string]any{"added": added, "queue": eng.Snapshot().Queue})
	case "remove":
		if err := required("attendee_id", a.AttendeeID); err != nil {
			return nil, err
		}
		if err := eng.RemoveSpeaker(a.AttendeeID); err != nil {
			return nil, err
		}
	case "dequeue":
		id, ok, err := eng.DequeueNext()
		if err != nil {
			return nil, err
		}
		return result(map[string]any{"attendee_id": id, "dequeued": ok, "queue": eng.Snapshot().Queue})
	case "reorder":
		if err := eng.Reorder(a.Order); err != nil {
			return nil, err
		}
	case "raise_placard":
		if err := required("attendee_id", a.AttendeeID); err != nil {
			return nil, err
		}
		if err := eng.RaisePlacard(a.AttendeeID); err != nil {
			return nil, err
		}
	case "clear_placard":
		if err := required("attendee_id", a.AttendeeID); err != nil {
			return nil, err
		}
		if err := eng.ClearPlacard(a.AttendeeID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown update_gsl action %q", domain.ErrInvalidArgument, a.Action)
	}
	snap := eng.Snapshot()
	return result(map[string]any{"queue": snap.Queue, "placards": snap.Placards})
}

func yieldFloor(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a struct {
		AttendeeID string `json:"attendee_id"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := required("attendee_id", a.AttendeeID); err != nil {
		return nil, err
	}
	if err := eng.Recognize(a.AttendeeID); err != nil {
		return nil, err
	}
	return result(map[string]any{"queue": eng.Snapshot().Queue})
}

func suspendSession(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a struct {
		Resume bool `json:"resume"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	var err error
	if a.Resume {
		err = eng.ResumeTimer()
	} else {
		err = eng.PauseTimer()
	}
	if err != nil {
		return nil, err
	}
	return result(eng.Snapshot().Timer)
}

func extendSession(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a struct {
		Seconds int `json:"seconds"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := eng.ExtendTimer(time.Duration(a.Seconds) * time.Second); err != nil {
		return nil, err
	}
	return result(eng.Snapshot().Timer)
}

func closeDebate(_ context.Context, eng *engine.Engine, _ json.RawMessage) (json.RawMessage, error) {
	if err := eng.CloseDebate(); err != nil {
		return nil, err
	}
	return result(map[string]any{"phase": eng.Phase()})
}

func openVoting(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a struct {
		MotionID     string `json:"motion_id"`
		ResolutionID string `json:"resolution_id"`
		Proposer     string `json:"proposer"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.ResolutionID != "" {
		m, err := eng.VoteOnResolution(a.ResolutionID, a.Proposer)
		if err != nil {
			return nil, err
		}
		return result(m)
	}
	id := a.MotionID
	if id == "" {
		m, ok := eng.CurrentMotion()
		if !ok {
			return nil, fmt.Errorf("%w: no motion is on the floor", domain.ErrUnknownMotion)
		}
		id = m.ID
	}
	if err := eng.OpenVote(id); err != nil {
		return nil, err
	}
	return result(eng.Snapshot().Vote)
}

func tallyVote(_ context.Context, eng *engine.Engine, _ json.RawMessage) (json.RawMessage, error) {
	r, err := eng.CloseVote()
	if err != nil {
		return nil, err
	}
	return result(r)
}

func announceResult(_ context.Context, eng *engine.Engine, _ json.RawMessage) (json.RawMessage, error) {
	r, err := eng.AnnounceResult()
	if err != nil {
		return nil, err
	}
	return result(map[string]any{"result": r, "phase": eng.Phase()})
}

func createResolution(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a struct {
		Title       string   `json:"title"`
		Sponsors    []string `json:"sponsors"`
		Signatories []string `json:"signatories"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	res, err := eng.CreateResolution(a.Title, a.Sponsors, a.Signatories)
	if err != nil {
		return nil, err
	}
	return result(res)
}

func addClause(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a struct {
		ResolutionID string `json:"resolution_id"`
		Kind         string `json:"kind"`
		Text         string `json:"text"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	c, err := eng.AddClause(a.ResolutionID, domain.ClauseKind(strings.ToUpper(a.Kind)), a.Text)
	if err != nil {
		return nil, err
	}
	return result(c)
}

func amendClause(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a struct {
		ClauseID    string `json:"clause_id"`
		Text        string `json:"text"`
		Friendly    bool   `json:"friendly"`
		Proposer    string `json:"proposer"`
		AmendmentID string `json:"amendment_id"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.AmendmentID != "" {
		amendment, err := eng.ApplyAmendment(a.AmendmentID)
		if err != nil {
			return nil, err
		}
		return result(map[string]any{"amendment": amendment})
	}
	if err := required("clause_id", a.ClauseID); err != nil {
		return nil, err
	}
	amendment, motion, err := eng.AmendClause(a.ClauseID, a.Text, a.Friendly, a.Proposer)
	if err != nil {
		return nil, err
	}
	return result(map[string]any{"amendment": amendment, "motion": motion})
}

func recordAttendance(_ context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error) {
	var a struct {
		AttendeeID string `json:"attendee_id"`
		Status     string `json:"status"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	status := domain.AttendanceStatus(strings.ToUpper(a.Status))
	if err := eng.RecordAttendance(a.AttendeeID, status); err != nil {
		return nil, err
	}
	return result(map[string]any{"attendee_id": a.AttendeeID, "status": status})
}

func completeRollCall(_ context.Context, eng *engine.Engine, _ json.RawMessage) (json.RawMessage, error) {
	if err := eng.CompleteRollCall(); err != nil {
		return nil, err
	}
	return result(map[string]any{"phase": eng.Phase()})
}
