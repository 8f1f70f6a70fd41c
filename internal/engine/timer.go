package engine

import (
	"fmt"
	"time"

	"github.com/xiaot623/caucus/internal/domain"
)

// Timer tracks the caucus countdown and the current speaker's countdown.
// Countdowns only decrease while unpaused and never go below zero.
type Timer struct {
	total         time.Duration
	speaker       time.Duration
	perSpeaker    time.Duration
	totalActive   bool
	speakerActive bool
	paused        bool

	// Expiries reached by Tick and not yet consumed by Expire.
	pending []domain.Expiry
}

// Start arms the caucus countdown. A zero total leaves only per-speaker timing.
func (t *Timer) Start(total, perSpeaker time.Duration) error {
	if total < 0 || perSpeaker < 0 {
		return fmt.Errorf("%w: negative duration", domain.ErrInvalidTimerOperation)
	}
	t.total = total
	t.totalActive = total > 0
	t.perSpeaker = perSpeaker
	t.speaker = 0
	t.speakerActive = false
	t.paused = false
	t.pending = nil
	return nil
}

// Stop disarms both countdowns.
func (t *Timer) Stop() {
	*t = Timer{}
}

// StartSpeaker restarts the per-speaker countdown. It reports whether a countdown was armed.
func (t *Timer) StartSpeaker() bool {
	return t.StartSpeakerFor(t.perSpeaker)
}

// StartSpeakerFor arms the per-speaker countdown for d, regardless of the phase's speaking time.
func (t *Timer) StartSpeakerFor(d time.Duration) bool {
	t.dropPending(domain.ExpirySpeaker)
	if d <= 0 {
		t.speaker = 0
		t.speakerActive = false
		return false
	}
	t.speaker = d
	t.speakerActive = true
	return true
}

// StopSpeaker disarms the per-speaker countdown.
func (t *Timer) StopSpeaker() {
	t.speaker = 0
	t.speakerActive = false
	t.dropPending(domain.ExpirySpeaker)
}

// Active reports whether any countdown is armed.
func (t *Timer) Active() bool {
	return t.totalActive || t.speakerActive
}

// Paused reports whether the countdowns are frozen.
func (t *Timer) Paused() bool {
	return t.paused
}

// Pause freezes both countdowns.
func (t *Timer) Pause() error {
	if !t.Active() {
		return fmt.Errorf("%w: no timer is running", domain.ErrInvalidTimerOperation)
	}
	t.paused = true
	return nil
}

// Resume unfreezes both countdowns.
func (t *Timer) Resume() error {
	if !t.Active() {
		return fmt.Errorf("%w: no timer is running", domain.ErrInvalidTimerOperation)
	}
	t.paused = false
	return nil
}

// Extend adds delta to the caucus countdown.
func (t *Timer) Extend(delta time.Duration) error {
	if delta <= 0 {
		return fmt.Errorf("%w: extension must be positive", domain.ErrInvalidTimerOperation)
	}
	if !t.totalActive {
		return fmt.Errorf("%w: no caucus timer is running", domain.ErrInvalidTimerOperation)
	}
	t.total += delta
	return nil
}

// Tick advances the countdowns by elapsed and reports whether anything changed.
func (t *Timer) Tick(elapsed time.Duration) bool {
	if elapsed <= 0 || t.paused || !t.Active() {
		return false
	}
	if t.totalActive {
		t.total -= elapsed
		if t.total <= 0 {
			t.total = 0
			t.totalActive = false
			t.pending = append(t.pending, domain.ExpiryTotal)
		}
	}
	if t.speakerActive {
		t.speaker -= elapsed
		if t.speaker <= 0 {
			t.speaker = 0
			t.speakerActive = false
			t.pending = append(t.pending, domain.ExpirySpeaker)
		}
	}
	return true
}

// Expire returns the expiries reached since the last call. Each is reported once.
func (t *Timer) Expire() []domain.Expiry {
	out := t.pending
	t.pending = nil
	return out
}

// State returns the public view of the timer.
func (t *Timer) State() domain.TimerState {
	return domain.TimerState{
		TotalRemainingMs:   t.total.Milliseconds(),
		SpeakerRemainingMs: t.speaker.Milliseconds(),
		PerSpeakerMs:       t.perSpeaker.Milliseconds(),
		TotalActive:        t.totalActive,
		SpeakerActive:      t.speakerActive,
		Paused:             t.paused,
	}
}

func (t *Timer) clone() Timer {
	c := *t
	c.pending = append([]domain.Expiry(nil), t.pending...)
	return c
}

func (t *Timer) dropPending(e domain.Expiry) {
	kept := t.pending[:0]
	for _, p := range t.pending {
		if p != e {
			kept = append(kept, p)
		}
	}
	t.pending = kept
}
