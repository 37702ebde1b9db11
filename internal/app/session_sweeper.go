package app

import (
	"context"
	"fmt"
	"time"

	"medreminder/internal/domain"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule runs the expired-session sweep hourly.
const DefaultSweepSchedule = "@every 1h"

const sweepTimeout = 30 * time.Second

// SessionSweeper periodically deletes expired sessions.
type SessionSweeper struct {
	sessions domain.SessionRepository
	cron     *cron.Cron
	log      zerolog.Logger
}

// NewSessionSweeper schedules the sweep with a cron spec such as
// "@every 1h" or "0 3 * * *".
func NewSessionSweeper(sessions domain.SessionRepository, spec string, log zerolog.Logger) (*SessionSweeper, error) {
	s := &SessionSweeper{
		sessions: sessions,
		cron:     cron.New(),
		log:      log.With().Str("component", "session_sweeper").Logger(),
	}
	if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
		return nil, fmt.Errorf("session sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *SessionSweeper) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *SessionSweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep deletes expired sessions once.
func (s *SessionSweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("delete expired sessions")
		return
	}
	s.log.Debug().Int64("deleted", n).Msg("expired sessions swept")
}
