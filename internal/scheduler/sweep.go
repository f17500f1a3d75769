package scheduler

import (
	"context"
	"time"

	"visitbot/internal/i18n"
)

// discoverNew picks up monitorings created since the last checkpoint and arms
// jobs for them. The checkpoint is advanced to "now" before the query results
// are used: a record created while the query runs is seen either by this
// cycle or the next, never missed.
func (s *Service) discoverNew(ctx context.Context) {
	s.cmu.Lock()
	since := s.lastChecked
	s.lastChecked = time.Now()
	s.cmu.Unlock()

	ms, err := s.store.ActiveMonitoringsCreatedSince(ctx, since)
	if err != nil {
		s.log.Warn().Time("since", since).Err(err).Msg("discovery query failed")
		return
	}
	if len(ms) == 0 {
		return
	}
	s.log.Info().Int("count", len(ms)).Time("since", since).Msg("new monitorings discovered")
	s.ActivateAll(ms)
}

// sweepExpired retires every registered job whose date range upper bound has
// passed, telling the owner the monitoring ended without a result.
func (s *Service) sweepExpired(ctx context.Context) {
	now := time.Now()
	for _, m := range s.snapshot() {
		if !m.Expired(now) {
			continue
		}
		s.log.Info().Str("monitoring", m.ID).Int64("account", m.AccountID).
			Time("date_to", m.Criteria.DateTo).Msg("monitoring expired")
		if err := s.Deactivate(ctx, m.AccountID, m.ID); err != nil {
			s.log.Error().Str("monitoring", m.ID).Err(err).Msg("expiry deactivation failed")
			continue
		}
		msgs := i18n.For(m.Language)
		if err := s.notifier.Send(ctx, m.Destination, msgs.Expired(m.ServiceName)); err != nil {
			s.log.Warn().Str("monitoring", m.ID).Err(err).Msg("expiry notification failed")
		}
	}
}
