package service

import (
	"context"
	"errors"
	"time"

	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/engine"
)

// RunTimerDriver ticks every live session until ctx is done.
func (s *Service) RunTimerDriver(ctx context.Context) {
	interval := 250 * time.Millisecond
	if s.config != nil && s.config.TimerTick > 0 {
		interval = s.config.TimerTick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := s.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			s.TickAll(ctx, now.Sub(last))
			last = now
		}
	}
}

// TickAll advances the clock of every live session by elapsed.
func (s *Service) TickAll(ctx context.Context, elapsed time.Duration) {
	for id := range s.liveSessions() {
		s.tick(ctx, id, elapsed)
	}
}

func (s *Service) tick(ctx context.Context, sessionID string, elapsed time.Duration) {
	_, err := s.apply(ctx, sessionID, func(eng *engine.Engine) error {
		stale, err := eng.Tick(elapsed)
		for _, exp := range stale {
			s.logger.Debug("discarded stale expiry", "session_id", sessionID, "expiry", exp, "phase", eng.Phase())
		}
		return err
	})
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		s.logger.Warn("timer tick failed", "session_id", sessionID, "error", err)
	}
}
