package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visitbot/internal/gateway"
	"visitbot/internal/i18n"
	"visitbot/internal/monitor"
)

// ErrStaleSlot is returned by BookByScheduleAndTime when the requested slot
// is no longer offered by a fresh search. The user has already been told.
var ErrStaleSlot = errors.New("slot no longer available")

// CapacityError rejects creation over the per-account cap. Message is
// localized for the requesting user and safe to send as-is.
type CapacityError struct {
	Max     int
	Message string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("monitoring limit of %d reached", e.Max)
}

// Create persists a new monitoring, enforcing the per-account cap on active
// records. Nothing is persisted on rejection. The record becomes a live job
// on the next discovery cycle (or via ActivateAll).
func (s *Service) Create(ctx context.Context, m monitor.Monitoring) (monitor.Monitoring, error) {
	if err := m.Validate(); err != nil {
		return monitor.Monitoring{}, err
	}
	n, err := s.store.CountActiveMonitorings(ctx, m.AccountID)
	if err != nil {
		return monitor.Monitoring{}, err
	}
	if n >= s.cfg.MaxPerAccount {
		return monitor.Monitoring{}, &CapacityError{
			Max:     s.cfg.MaxPerAccount,
			Message: i18n.For(m.Language).LimitExceeded(s.cfg.MaxPerAccount),
		}
	}
	if m.ID == "" {
		m.ID = monitor.NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.Active = true
	if err := s.store.SaveMonitoring(ctx, m); err != nil {
		return monitor.Monitoring{}, err
	}
	s.log.Info().Str("monitoring", m.ID).Int64("account", m.AccountID).
		Str("service", m.ServiceName).Bool("autobook", m.Autobook).Msg("monitoring created")
	return m, nil
}

func (s *Service) ListActive(ctx context.Context, accountID int64) ([]monitor.Monitoring, error) {
	return s.store.ActiveMonitoringsByAccount(ctx, accountID)
}

func (s *Service) ListPage(ctx context.Context, accountID int64, start, count int) ([]monitor.Monitoring, error) {
	return s.store.MonitoringsPage(ctx, accountID, start, count)
}

func (s *Service) CountAll(ctx context.Context, accountID int64) (int, error) {
	return s.store.CountAllMonitorings(ctx, accountID)
}

// BookByScheduleAndTime books a previously-shown slot on demand instead of
// waiting for the next tick. The search is re-run and the term located by
// exact (scheduleID, startAt) match; a slot that went stale yields a
// localized "outdated" message and ErrStaleSlot, nothing is booked.
func (s *Service) BookByScheduleAndTime(ctx context.Context, accountID int64, id string, scheduleID int64, startAt time.Time) error {
	m, err := s.store.FindMonitoring(ctx, accountID, id)
	if err != nil {
		return err
	}

	terms, err := s.gw.Search(ctx, accountID, m.Criteria)
	if errors.Is(err, gateway.ErrInvalidCredentials) {
		s.handleAuthFailure(ctx, m)
		return err
	}
	if err != nil {
		return err
	}

	for _, t := range terms {
		if t.ScheduleID == scheduleID && t.StartAt.Equal(startAt) {
			if s.booker == nil {
				return errors.New("no booker wired")
			}
			return s.booker.Book(ctx, m, t)
		}
	}

	msgs := i18n.For(m.Language)
	if err := s.notifier.Send(ctx, m.Destination, msgs.Outdated()); err != nil {
		s.log.Warn().Str("monitoring", m.ID).Err(err).Msg("outdated-slot notification failed")
	}
	return ErrStaleSlot
}
