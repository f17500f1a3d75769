package scheduler

import (
	"context"
	"errors"
	"time"

	"visitbot/internal/gateway"
	"visitbot/internal/i18n"
	"visitbot/internal/monitor"
)

// runTick executes one search-and-act cycle for a monitoring and re-arms the
// job afterwards. Rearming after execution is what keeps ticks for the same
// job from ever overlapping.
func (s *Service) runTick(ctx context.Context, id string) {
	s.mu.Lock()
	j, ok := s.reg[id]
	if !ok || j.cancelled {
		s.mu.Unlock()
		return
	}
	m := j.m
	s.mu.Unlock()

	defer s.rearm(id)
	s.execute(ctx, m)
}

func (s *Service) execute(ctx context.Context, m monitor.Monitoring) {
	terms, err := s.gw.Search(ctx, m.AccountID, m.Criteria)
	if errors.Is(err, gateway.ErrInvalidCredentials) {
		s.handleAuthFailure(ctx, m)
		return
	}
	if err != nil {
		// Transient: leave the job scheduled, the next natural tick retries.
		s.log.Warn().Str("monitoring", m.ID).Int64("account", m.AccountID).Err(err).
			Msg("slot search failed")
		return
	}

	matched := filterTerms(m.Criteria, terms, time.Now())
	if len(matched) == 0 {
		return
	}

	if m.Autobook {
		if s.booker == nil {
			s.log.Error().Str("monitoring", m.ID).Msg("autobook set but no booker wired")
			return
		}
		// Earliest by the gateway's own ordering.
		if err := s.booker.Book(ctx, m, matched[0]); err != nil {
			s.log.Warn().Str("monitoring", m.ID).Err(err).Msg("autobook failed; will retry next tick")
		}
		return
	}

	// One-shot notification: deactivate before composing so no concurrent
	// tick can be scheduled for this record again.
	if err := s.Deactivate(ctx, m.AccountID, m.ID); err != nil {
		s.log.Error().Str("monitoring", m.ID).Err(err).Msg("deactivate before notify failed")
		return
	}
	msgs := i18n.For(m.Language)
	if err := s.notifier.Send(ctx, m.Destination, msgs.Matches(m.ServiceName, matched)); err != nil {
		s.log.Warn().Str("monitoring", m.ID).Err(err).Msg("match notification failed")
	}
}

// handleAuthFailure tells the user once and retires every active monitoring
// of the account: one bad credential invalidates all of its pending searches.
// The set is read fresh from the store, not from the registry snapshot, so a
// record created after this job was scheduled is still caught.
func (s *Service) handleAuthFailure(ctx context.Context, m monitor.Monitoring) {
	s.log.Warn().Int64("account", m.AccountID).Str("monitoring", m.ID).
		Msg("credentials rejected; disabling all monitorings for account")

	msgs := i18n.For(m.Language)
	if err := s.notifier.Send(ctx, m.Destination, msgs.InvalidCredentials()); err != nil {
		s.log.Warn().Int64("account", m.AccountID).Err(err).Msg("auth-failure notification failed")
	}

	all, err := s.store.ActiveMonitoringsByAccount(ctx, m.AccountID)
	if err != nil {
		s.log.Error().Int64("account", m.AccountID).Err(err).
			Msg("could not list account monitorings; deactivating only the current one")
		all = []monitor.Monitoring{m}
	}
	for _, am := range all {
		if err := s.Deactivate(ctx, am.AccountID, am.ID); err != nil {
			s.log.Error().Str("monitoring", am.ID).Err(err).Msg("cascading deactivation failed")
		}
	}
}

// filterTerms keeps terms inside the monitoring's effective date range and
// clock window. The gateway already searches the clamped range; filtering
// again here keeps the invariant even if a gateway returns extras.
func filterTerms(c monitor.Criteria, terms []monitor.Term, now time.Time) []monitor.Term {
	from, to := c.Window(now)
	var out []monitor.Term
	for _, t := range terms {
		if t.StartAt.Before(from) {
			continue
		}
		if !to.IsZero() && t.StartAt.After(to) {
			continue
		}
		if !monitor.InTimeWindow(t.StartAt, c.TimeFrom, c.TimeTo) {
			continue
		}
		out = append(out, t)
	}
	return out
}
