// Package services – scheduled maintenance.
//
// The Sweeper bundles the periodic jobs the bot schedules with cron: ticking
// down listing publication days, evicting wizard sessions nobody finished,
// and purging old transport dedup records. Unattended wizard sessions are a
// resource leak if never swept; the wizard itself runs no timers.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/carbazar/go-car-market/internal/intake"
	"github.com/carbazar/go-car-market/internal/repo"
)

// Sweeper runs the recurring maintenance jobs.
type Sweeper struct {
	Coord  *repo.Coordinator
	Intake *intake.Manager
	Log    zerolog.Logger

	// IntakeTTL is how long an idle wizard session survives (default 24h).
	IntakeTTL time.Duration
	// DedupTTL is how long processed-update records are kept (default 72h).
	DedupTTL time.Duration
}

// NewSweeper constructs a Sweeper with default retention periods.
func NewSweeper(coord *repo.Coordinator, m *intake.Manager, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		Coord:     coord,
		Intake:    m,
		Log:       log,
		IntakeTTL: 24 * time.Hour,
		DedupTTL:  72 * time.Hour,
	}
}

// TickAds decrements the remaining days of active listings and deactivates
// the expired ones. Scheduled daily.
func (s *Sweeper) TickAds(ctx context.Context) {
	expired, err := repo.TickDayCounts(ctx, s.Coord.DB())
	if err != nil {
		s.Log.Error().Err(err).Msg("ticking listing day counts")
		return
	}
	if expired > 0 {
		s.Log.Info().Int64("expired", expired).Msg("deactivated expired listings")
	}
}

// EvictIntake drops wizard sessions idle past IntakeTTL.
func (s *Sweeper) EvictIntake() {
	if n := s.Intake.EvictStale(s.IntakeTTL); n > 0 {
		s.Log.Info().Int("evicted", n).Msg("evicted stale wizard sessions")
	}
}

// PurgeDedup removes processed-update records older than DedupTTL.
func (s *Sweeper) PurgeDedup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.DedupTTL)
	n, err := repo.PurgeProcessedUpdates(ctx, s.Coord.DB(), cutoff)
	if err != nil {
		s.Log.Error().Err(err).Msg("purging processed updates")
		return
	}
	if n > 0 {
		s.Log.Debug().Int64("purged", n).Msg("purged processed updates")
	}
}
