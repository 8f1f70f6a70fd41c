package engine

import (
	"fmt"

	"github.com/xiaot623/caucus/internal/domain"
)

// Trigger is the procedural event that drives a phase transition.
type Trigger string

const (
	TriggerRollCallComplete Trigger = "roll_call_complete"
	TriggerModeratedCaucus  Trigger = "moderated_caucus_passed"
	TriggerUnmoderated      Trigger = "unmoderated_caucus_passed"
	TriggerTimeExpired      Trigger = "time_expired"
	TriggerCloseDebate      Trigger = "close_debate"
	TriggerVoteConcluded    Trigger = "vote_concluded"
)

type edge struct {
	from    domain.Phase
	trigger Trigger
}

// transitions is the complete set of legal phase changes.
var transitions = map[edge]domain.Phase{
	{domain.PhaseRollCall, TriggerRollCallComplete}: domain.PhaseGSL,
	{domain.PhaseGSL, TriggerModeratedCaucus}:        domain.PhaseMod,
	{domain.PhaseMod, TriggerTimeExpired}:            domain.PhaseGSL,
	{domain.PhaseGSL, TriggerUnmoderated}:            domain.PhaseUnmod,
	{domain.PhaseMod, TriggerUnmoderated}:            domain.PhaseUnmod,
	{domain.PhaseUnmod, TriggerTimeExpired}:          domain.PhaseGSL,
	{domain.PhaseGSL, TriggerCloseDebate}:            domain.PhaseVoting,
	{domain.PhaseMod, TriggerCloseDebate}:            domain.PhaseVoting,
	{domain.PhaseVoting, TriggerVoteConcluded}:       domain.PhaseGSL,
}

// NextPhase returns the phase reached from `from` on trigger, or ErrIllegalTransition.
func NextPhase(from domain.Phase, trigger Trigger) (domain.Phase, error) {
	to, ok := transitions[edge{from, trigger}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", domain.ErrIllegalTransition, from, trigger)
	}
	return to, nil
}

// floorOpen reports whether placards and the speakers list are served in phase p.
func floorOpen(p domain.Phase) bool {
	return p == domain.PhaseGSL || p == domain.PhaseMod
}
