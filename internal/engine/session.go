package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/caucus/internal/domain"
)

// transition applies a phase change from the table and re-arms the timer for the new phase.
func (e *Engine) transition(s *state, trigger Trigger, total, perSpeaker time.Duration) error {
	to, err := NextPhase(s.phase, trigger)
	if err != nil {
		return err
	}
	switch to {
	case domain.PhaseMod:
		err = s.timer.Start(total, perSpeaker)
	case domain.PhaseUnmod:
		err = s.timer.Start(total, 0)
	case domain.PhaseGSL:
		err = s.timer.Start(0, e.rules.GSLSpeakerTime())
	default:
		s.timer.Stop()
	}
	if err != nil {
		return err
	}
	from := s.phase
	s.phase = to
	s.lapsed = false
	s.notify(domain.EventTypePhaseChanged, domain.PhaseChangedPayload{
		From:    from,
		To:      to,
		Trigger: string(trigger),
		Timer:   s.timer.State(),
	})
	s.notify(domain.EventTypeTimerChanged, domain.TimerChangedPayload{Reason: "phase_changed", Timer: s.timer.State()})
	return nil
}

// settleLapse completes a caucus expiry that was held back while the floor was busy.
func (e *Engine) settleLapse(s *state) error {
	if !s.lapsed || s.suspended || s.motions.Current() != nil {
		return nil
	}
	if s.phase != domain.PhaseMod && s.phase != domain.PhaseUnmod {
		s.lapsed = false
		return nil
	}
	return e.transition(s, TriggerTimeExpired, 0, 0)
}

func (e *Engine) appendTranscript(s *state, attendeeID string, kind domain.EntryKind, text string) domain.TranscriptEntry {
	entry := domain.TranscriptEntry{
		Seq:        len(s.transcript) + 1,
		AttendeeID: attendeeID,
		Kind:       kind,
		Text:       text,
		Phase:      s.phase,
		At:         e.now().UTC(),
	}
	s.transcript = append(s.transcript, entry)
	s.notify(domain.EventTypeTranscriptAppended, domain.TranscriptAppendedPayload{Entry: entry})
	return entry
}

func queueChanged(s *state, change, attendeeID string) {
	s.notify(domain.EventTypeQueueChanged, domain.QueueChangedPayload{
		Change:     change,
		AttendeeID: attendeeID,
		Queue:      s.queue.Order(),
		Placards:   s.queue.Placards(),
	})
}

func motionChanged(s *state, change string, m *domain.Motion, result *domain.VoteResult) {
	s.notify(domain.EventTypeMotionChanged, domain.MotionChangedPayload{
		Change: change,
		Motion: *m,
		Vote:   s.motions.VoteState(),
		Result: result,
	})
}

func documentChanged(s *state, change string, res *domain.Resolution, clauseID string, a *domain.Amendment) {
	payload := domain.DocumentChangedPayload{
		Change:     change,
		ClauseID:   clauseID,
		Resolution: copyResolution(res),
	}
	if a != nil {
		cp := *a
		payload.Amendment = &cp
	}
	s.notify(domain.EventTypeDocumentChanged, payload)
}

func timerChanged(s *state, reason string) {
	s.notify(domain.EventTypeTimerChanged, domain.TimerChangedPayload{Reason: reason, Timer: s.timer.State()})
}

// presentAttendee returns id's attendee, refusing absent ones.
func presentAttendee(s *state, id string) (*Attendee, error) {
	a, err := s.roster.Get(id)
	if err != nil {
		return nil, err
	}
	if a.Status == domain.AttendanceAbsent {
		return nil, fmt.Errorf("%w: %s", domain.ErrAttendeeAbsent, id)
	}
	return a, nil
}

// RecordAttendance sets an attendee's roll-call status. Absent attendees leave the floor, and
// anyone who loses voting rights has their vote in the open round struck.
func (e *Engine) RecordAttendance(id string, status domain.AttendanceStatus) error {
	return e.external(func(s *state) error {
		changed, err := s.roster.Record(id, status)
		if err != nil || !changed {
			return err
		}
		s.notify(domain.EventTypeAttendanceChanged, domain.AttendanceChangedPayload{AttendeeID: id, Status: status})
		if status != domain.AttendancePresentAndVoting {
			if counts, ok := s.motions.Retract(id); ok {
				vote := s.motions.VoteState()
				s.notify(domain.EventTypeVoteRecorded, domain.VoteRecordedPayload{
					MotionID:   vote.MotionID,
					Round:      vote.Round,
					AttendeeID: id,
					Counts:     counts,
					Retracted:  true,
				})
			}
		}
		if status == domain.AttendanceAbsent {
			removed := s.queue.Remove(id)
			lowered := s.queue.ClearPlacard(id)
			if removed || lowered {
				queueChanged(s, "absent", id)
			}
		}
		return nil
	})
}

// CompleteRollCall opens debate once quorum is met.
func (e *Engine) CompleteRollCall() error {
	return e.external(func(s *state) error {
		if s.phase != domain.PhaseRollCall {
			return fmt.Errorf("%w: roll call already complete", domain.ErrIllegalTransition)
		}
		quorum := e.rules.Quorum
		if quorum < 1 {
			quorum = 1
		}
		if voters := s.roster.Voters(); voters < quorum {
			return fmt.Errorf("%w: quorum not met (%d of %d present and voting)", domain.ErrIllegalTransition, voters, quorum)
		}
		return e.transition(s, TriggerRollCallComplete, 0, 0)
	})
}

// Enqueue appends a speaker to the speakers list. It reports false for a duplicate.
func (e *Engine) Enqueue(id string) (bool, error) {
	added := false
	err := e.external(func(s *state) error {
		if _, err := presentAttendee(s, id); err != nil {
			return err
		}
		if added = s.queue.Enqueue(id); added {
			queueChanged(s, "enqueued", id)
		}
		return nil
	})
	return added, err
}

// DequeueNext removes the head of the speakers list.
func (e *Engine) DequeueNext() (string, bool, error) {
	var id string
	var ok bool
	err := e.external(func(s *state) error {
		if id, ok = s.queue.DequeueNext(); ok {
			queueChanged(s, "dequeued", id)
		}
		return nil
	})
	return id, ok, err
}

// Reorder replaces the speakers list order without changing its membership.
func (e *Engine) Reorder(order []string) error {
	return e.external(func(s *state) error {
		if err := s.queue.Reorder(order); err != nil {
			return err
		}
		queueChanged(s, "reordered", "")
		return nil
	})
}

// RemoveSpeaker drops an attendee from the speakers list.
func (e *Engine) RemoveSpeaker(id string) error {
	return e.external(func(s *state) error {
		if _, err := s.roster.Get(id); err != nil {
			return err
		}
		if s.queue.Remove(id) {
			queueChanged(s, "removed", id)
		}
		return nil
	})
}

// Recognize gives an attendee the next turn by placing it at the head of the speakers list.
func (e *Engine) Recognize(id string) error {
	return e.external(func(s *state) error {
		if _, err := presentAttendee(s, id); err != nil {
			return err
		}
		if head, ok := s.queue.Head(); ok && head == id {
			return nil
		}
		s.queue.Promote(id)
		queueChanged(s, "recognized", id)
		return nil
	})
}

// RaisePlacard records an attendee's request for the floor.
func (e *Engine) RaisePlacard(id string) error {
	return e.external(func(s *state) error {
		if _, err := presentAttendee(s, id); err != nil {
			return err
		}
		if s.queue.RaisePlacard(id) {
			queueChanged(s, "placard_raised", id)
		}
		return nil
	})
}

// ClearPlacard lowers an attendee's placard.
func (e *Engine) ClearPlacard(id string) error {
	return e.external(func(s *state) error {
		if _, err := s.roster.Get(id); err != nil {
			return err
		}
		if s.queue.ClearPlacard(id) {
			queueChanged(s, "placard_cleared", id)
		}
		return nil
	})
}

// CurrentMotion returns the motion on the floor, if any.
func (e *Engine) CurrentMotion() (domain.Motion, bool) {
	m := e.st.motions.Current()
	if m == nil {
		return domain.Motion{}, false
	}
	return *m, true
}

// Propose puts a motion on the floor.
func (e *Engine) Propose(kind domain.MotionKind, topic domain.MotionTopic, proposer string) (domain.Motion, error) {
	var out domain.Motion
	err := e.external(func(s *state) error {
		if proposer != "" {
			if _, err := presentAttendee(s, proposer); err != nil {
				return err
			}
		}
		if topic.Type == "" {
			topic.Type = domain.MotionTypeGeneral
		}
		if kind == "" {
			kind = defaultKind(topic.Type)
		}
		if err := e.validateMotion(s, kind, topic); err != nil {
			return err
		}
		m, err := s.motions.Propose(kind, topic, proposer)
		if err != nil {
			return err
		}
		motionChanged(s, "proposed", m, nil)
		out = *m
		return nil
	})
	return out, err
}

func defaultKind(t domain.MotionType) domain.MotionKind {
	if t == domain.MotionTypeResolutionVote || t == domain.MotionTypeAmendment {
		return domain.MotionKindSubstantive
	}
	return domain.MotionKindProcedural
}

func (e *Engine) validateMotion(s *state, kind domain.MotionKind, topic domain.MotionTopic) error {
	if s.phase == domain.PhaseRollCall || s.phase == domain.PhaseUnmod {
		return fmt.Errorf("%w: motions are not in order during %s", domain.ErrWrongPhase, s.phase)
	}
	maxCaucus := int(e.rules.MaxCaucus() / time.Second)
	switch topic.Type {
	case domain.MotionTypeModeratedCaucus, domain.MotionTypeUnmoderatedCaucus:
		if kind != domain.MotionKindProcedural {
			return fmt.Errorf("%w: caucus motions are procedural", domain.ErrInvalidArgument)
		}
		if topic.TotalSeconds <= 0 || topic.TotalSeconds > maxCaucus {
			return fmt.Errorf("%w: caucus length must be between 1 and %d seconds", domain.ErrInvalidArgument, maxCaucus)
		}
		trigger := TriggerUnmoderated
		if topic.Type == domain.MotionTypeModeratedCaucus {
			trigger = TriggerModeratedCaucus
			if topic.SpeakerSeconds <= 0 || topic.SpeakerSeconds > topic.TotalSeconds {
				return fmt.Errorf("%w: speaking time must be between 1 and %d seconds", domain.ErrInvalidArgument, topic.TotalSeconds)
			}
		}
		if _, err := NextPhase(s.phase, trigger); err != nil {
			return err
		}
	case domain.MotionTypeResolutionVote:
		if kind != domain.MotionKindSubstantive {
			return fmt.Errorf("%w: resolution votes are substantive", domain.ErrInvalidArgument)
		}
		if s.phase != domain.PhaseVoting {
			return fmt.Errorf("%w: resolutions are voted on during %s", domain.ErrWrongPhase, domain.PhaseVoting)
		}
		res, err := s.docs.Get(topic.ResolutionID)
		if err != nil {
			return err
		}
		if res.Status != domain.ResolutionStatusDraft {
			return fmt.Errorf("%w: resolution %s is %s", domain.ErrInvalidArgument, res.ID, res.Status)
		}
	case domain.MotionTypeAmendment:
		return fmt.Errorf("%w: amendments are moved with amend_clause", domain.ErrInvalidArgument)
	case domain.MotionTypeGeneral:
	default:
		return fmt.Errorf("%w: motion type %q", domain.ErrInvalidArgument, topic.Type)
	}
	return nil
}

// WithdrawMotion takes a pending motion off the floor without a vote.
func (e *Engine) WithdrawMotion() (domain.Motion, error) {
	var out domain.Motion
	err := e.external(func(s *state) error {
		m, ok := s.motions.Withdraw()
		if !ok {
			return fmt.Errorf("%w: no pending motion", domain.ErrUnknownMotion)
		}
		if err := e.settleMotionDocuments(s, m, false, false); err != nil {
			return err
		}
		motionChanged(s, "withdrawn", m, nil)
		out = *m
		return e.settleLapse(s)
	})
	return out, err
}

// OpenVote opens the voting round on a pending motion.
func (e *Engine) OpenVote(motionID string) error {
	return e.external(func(s *state) error {
		m, err := s.motions.Get(motionID)
		if err != nil {
			return err
		}
		if s.phase == domain.PhaseRollCall || s.phase == domain.PhaseUnmod {
			return fmt.Errorf("%w: no votes during %s", domain.ErrWrongPhase, s.phase)
		}
		if m.Topic.Type == domain.MotionTypeResolutionVote && s.phase != domain.PhaseVoting {
			return fmt.Errorf("%w: resolutions are voted on during %s", domain.ErrWrongPhase, domain.PhaseVoting)
		}
		m, err = s.motions.OpenVote(motionID)
		if err != nil {
			return err
		}
		motionChanged(s, "vote_opened", m, nil)
		return nil
	})
}

// VoteOnResolution moves a draft resolution to a substantive vote and opens the round.
func (e *Engine) VoteOnResolution(resolutionID, proposer string) (domain.Motion, error) {
	var out domain.Motion
	err := e.external(func(s *state) error {
		topic := domain.MotionTopic{Type: domain.MotionTypeResolutionVote, ResolutionID: resolutionID}
		if err := e.validateMotion(s, domain.MotionKindSubstantive, topic); err != nil {
			return err
		}
		m, err := s.motions.Propose(domain.MotionKindSubstantive, topic, proposer)
		if err != nil {
			return err
		}
		motionChanged(s, "proposed", m, nil)
		if m, err = s.motions.OpenVote(m.ID); err != nil {
			return err
		}
		motionChanged(s, "vote_opened", m, nil)
		out = *m
		return nil
	})
	return out, err
}

// CastVote records a vote in the open round. Re-casting overwrites.
func (e *Engine) CastVote(attendeeID string, choice domain.VoteChoice) error {
	return e.external(func(s *state) error {
		return castVote(s, attendeeID, choice)
	})
}

func castVote(s *state, attendeeID string, choice domain.VoteChoice) error {
	if !s.motions.VoteOpen() {
		return fmt.Errorf("%w: no vote is open", domain.ErrWrongPhase)
	}
	a, err := s.roster.Get(attendeeID)
	if err != nil {
		return err
	}
	if !a.CanVote() {
		return fmt.Errorf("%w: %s is %s", domain.ErrInvalidVoter, a.ID, a.Status)
	}
	counts, err := s.motions.Cast(a.ID, choice)
	if err != nil {
		return err
	}
	vote := s.motions.VoteState()
	s.notify(domain.EventTypeVoteRecorded, domain.VoteRecordedPayload{
		MotionID:   vote.MotionID,
		Round:      vote.Round,
		AttendeeID: a.ID,
		Choice:     choice,
		Counts:     counts,
	})
	return nil
}

// CloseVote tallies the open round and enacts the motion's effect.
func (e *Engine) CloseVote() (domain.VoteResult, error) {
	var out domain.VoteResult
	err := e.external(func(s *state) error {
		m, result, err := s.motions.Close(e.rules.SubstantiveMajority)
		if err != nil {
			return err
		}
		out = result
		motionChanged(s, "vote_closed", m, &result)
		if err := e.enact(s, m, result.Passed); err != nil {
			return err
		}
		return e.settleLapse(s)
	})
	return out, err
}

func (e *Engine) enact(s *state, m *domain.Motion, passed bool) error {
	if err := e.settleMotionDocuments(s, m, passed, true); err != nil {
		return err
	}
	if !passed {
		return nil
	}
	total := time.Duration(m.Topic.TotalSeconds) * time.Second
	switch m.Topic.Type {
	case domain.MotionTypeModeratedCaucus:
		return e.transition(s, TriggerModeratedCaucus, total, time.Duration(m.Topic.SpeakerSeconds)*time.Second)
	case domain.MotionTypeUnmoderatedCaucus:
		return e.transition(s, TriggerUnmoderated, total, 0)
	}
	return nil
}

// settleMotionDocuments resolves the document a motion was about. Withdrawn resolution votes leave the draft alone.
func (e *Engine) settleMotionDocuments(s *state, m *domain.Motion, passed, voted bool) error {
	switch m.Topic.Type {
	case domain.MotionTypeAmendment:
		a, err := s.docs.Settle(m.Topic.AmendmentID, passed)
		if err != nil {
			return err
		}
		res, err := s.docs.Get(a.ResolutionID)
		if err != nil {
			return err
		}
		change := "amendment_rejected"
		if passed {
			change = "clause_amended"
		}
		documentChanged(s, change, res, a.ClauseID, a)
	case domain.MotionTypeResolutionVote:
		if !voted {
			return nil
		}
		res, err := s.docs.SetOutcome(m.Topic.ResolutionID, passed)
		if err != nil {
			return err
		}
		documentChanged(s, "outcome", res, "", nil)
	}
	return nil
}

// CloseDebate moves the committee into voting procedure.
func (e *Engine) CloseDebate() error {
	return e.external(func(s *state) error {
		if m := s.motions.Current(); m != nil {
			return fmt.Errorf("%w: motion %s is on the floor", domain.ErrConflictingMotion, m.ID)
		}
		return e.transition(s, TriggerCloseDebate, 0, 0)
	})
}

// AnnounceResult reads the last tally into the record and resumes debate once voting procedure is done.
func (e *Engine) AnnounceResult() (domain.VoteResult, error) {
	var out domain.VoteResult
	err := e.external(func(s *state) error {
		if s.motions.VoteOpen() {
			return fmt.Errorf("%w: the vote is still open", domain.ErrConflictingMotion)
		}
		last := s.motions.Last()
		if last == nil {
			return fmt.Errorf("%w: nothing has been tallied", domain.ErrNoOpenVote)
		}
		m, err := s.motions.Get(last.MotionID)
		if err != nil {
			return err
		}
		e.appendTranscript(s, chairID, domain.EntryKindAnnouncement, announcement(m, *last))
		out = *last
		if s.phase == domain.PhaseVoting && s.motions.Current() == nil && s.docs.Drafts() == 0 {
			return e.transition(s, TriggerVoteConcluded, 0, 0)
		}
		return nil
	})
	return out, err
}

func announcement(m *domain.Motion, r domain.VoteResult) string {
	verdict := "fails"
	if r.Passed {
		verdict = "passes"
	}
	subject := "The motion"
	switch m.Topic.Type {
	case domain.MotionTypeResolutionVote:
		subject = "Resolution " + m.Topic.ResolutionID
	case domain.MotionTypeAmendment:
		subject = "Amendment " + m.Topic.AmendmentID
	default:
		if d := strings.TrimSpace(m.Topic.Description); d != "" {
			subject = "The motion for " + d
		}
	}
	return fmt.Sprintf("%s %s with %d in favour, %d against and %d abstaining.",
		subject, verdict, r.Counts.Yes, r.Counts.No, r.Counts.Abstain)
}

// CreateResolution starts a draft resolution.
func (e *Engine) CreateResolution(title string, sponsors, signatories []string) (domain.Resolution, error) {
	var out domain.Resolution
	err := e.external(func(s *state) error {
		for _, id := range append(append([]string{}, sponsors...), signatories...) {
			if _, err := s.roster.Get(id); err != nil {
				return err
			}
		}
		res, err := s.docs.CreateResolution(title, sponsors, signatories)
		if err != nil {
			return err
		}
		documentChanged(s, "created", res, "", nil)
		out = copyResolution(res)
		return nil
	})
	return out, err
}

// AddClause appends a clause to a draft resolution.
func (e *Engine) AddClause(resolutionID string, kind domain.ClauseKind, text string) (domain.Clause, error) {
	var out domain.Clause
	err := e.external(func(s *state) error {
		c, err := s.docs.AddClause(resolutionID, kind, text)
		if err != nil {
			return err
		}
		out = *c
		res, err := s.docs.Get(resolutionID)
		if err != nil {
			return err
		}
		documentChanged(s, "clause_added", res, out.ID, nil)
		return nil
	})
	return out, err
}

// AmendClause applies a friendly amendment, or moves an unfriendly one as a substantive motion.
func (e *Engine) AmendClause(clauseID, text string, friendly bool, proposer string) (domain.Amendment, *domain.Motion, error) {
	var out domain.Amendment
	var motion *domain.Motion
	err := e.external(func(s *state) error {
		if !friendly {
			if !floorOpen(s.phase) {
				return fmt.Errorf("%w: amendments are debated during %s or %s", domain.ErrWrongPhase, domain.PhaseGSL, domain.PhaseMod)
			}
			if proposer != "" {
				if _, err := presentAttendee(s, proposer); err != nil {
					return err
				}
			}
		}
		a, err := s.docs.Amend(clauseID, text, friendly)
		if err != nil {
			return err
		}
		if !friendly {
			m, err := s.motions.Propose(domain.MotionKindSubstantive, domain.MotionTopic{
				Type:         domain.MotionTypeAmendment,
				Description:  fmt.Sprintf("amend %s", clauseID),
				ResolutionID: a.ResolutionID,
				AmendmentID:  a.ID,
			}, proposer)
			if err != nil {
				return err
			}
			a.MotionID = m.ID
			cp := *m
			motion = &cp
		}
		res, err := s.docs.Get(a.ResolutionID)
		if err != nil {
			return err
		}
		change := "clause_amended"
		if !friendly {
			change = "amendment_proposed"
		}
		documentChanged(s, change, res, clauseID, a)
		if motion != nil {
			motionChanged(s, "proposed", motion, nil)
		}
		out = *a
		return nil
	})
	return out, motion, err
}

// ApplyAmendment applies an amendment directly. Unfriendly amendments are refused until their vote passes.
func (e *Engine) ApplyAmendment(amendmentID string) (domain.Amendment, error) {
	var out domain.Amendment
	err := e.external(func(s *state) error {
		before, err := s.docs.GetAmendment(amendmentID)
		if err != nil {
			return err
		}
		wasApplied := before.Status == domain.AmendmentStatusApplied
		a, err := s.docs.Apply(amendmentID)
		if err != nil {
			return err
		}
		out = *a
		if wasApplied {
			return nil
		}
		res, err := s.docs.Get(a.ResolutionID)
		if err != nil {
			return err
		}
		documentChanged(s, "clause_amended", res, a.ClauseID, a)
		return nil
	})
	return out, err
}

// PauseTimer freezes the running countdowns.
func (e *Engine) PauseTimer() error {
	return e.external(func(s *state) error {
		if err := s.timer.Pause(); err != nil {
			return err
		}
		timerChanged(s, "paused")
		return nil
	})
}

// ResumeTimer unfreezes the running countdowns.
func (e *Engine) ResumeTimer() error {
	return e.external(func(s *state) error {
		if err := s.timer.Resume(); err != nil {
			return err
		}
		timerChanged(s, "resumed")
		return nil
	})
}

// ExtendTimer adds time to the running caucus.
func (e *Engine) ExtendTimer(delta time.Duration) error {
	return e.external(func(s *state) error {
		if err := s.timer.Extend(delta); err != nil {
			return err
		}
		timerChanged(s, "extended")
		return nil
	})
}
