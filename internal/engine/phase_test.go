package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xiaot623/caucus/internal/domain"
)

func TestNextPhase(t *testing.T) {
	legal := []struct {
		from    domain.Phase
		trigger Trigger
		to      domain.Phase
	}{
		{domain.PhaseRollCall, TriggerRollCallComplete, domain.PhaseGSL},
		{domain.PhaseGSL, TriggerModeratedCaucus, domain.PhaseMod},
		{domain.PhaseMod, TriggerTimeExpired, domain.PhaseGSL},
		{domain.PhaseGSL, TriggerUnmoderated, domain.PhaseUnmod},
		{domain.PhaseMod, TriggerUnmoderated, domain.PhaseUnmod},
		{domain.PhaseUnmod, TriggerTimeExpired, domain.PhaseGSL},
		{domain.PhaseGSL, TriggerCloseDebate, domain.PhaseVoting},
		{domain.PhaseMod, TriggerCloseDebate, domain.PhaseVoting},
		{domain.PhaseVoting, TriggerVoteConcluded, domain.PhaseGSL},
	}
	for _, tc := range legal {
		got, err := NextPhase(tc.from, tc.trigger)
		assert.NoError(t, err, "%s on %s", tc.from, tc.trigger)
		assert.Equal(t, tc.to, got)
	}

	illegal := []struct {
		from    domain.Phase
		trigger Trigger
	}{
		{domain.PhaseRollCall, TriggerCloseDebate},
		{domain.PhaseUnmod, TriggerCloseDebate},
		{domain.PhaseVoting, TriggerModeratedCaucus},
		{domain.PhaseMod, TriggerModeratedCaucus},
		{domain.PhaseGSL, TriggerTimeExpired},
	}
	for _, tc := range illegal {
		got, err := NextPhase(tc.from, tc.trigger)
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
		assert.Equal(t, tc.from, got)
	}
}
