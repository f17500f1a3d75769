// Package booking finalizes a reservation for a matched term on behalf of a
// monitoring, with an update-existing fallback when the account already holds
// a reservation for the service.
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"visitbot/internal/gateway"
	"visitbot/internal/i18n"
	"visitbot/internal/monitor"
	"visitbot/internal/notify"
)

// Deactivator retires a monitoring once its goal is reached.
// The scheduler implements this.
type Deactivator interface {
	Deactivate(ctx context.Context, accountID int64, id string) error
}

type Coordinator struct {
	gw       gateway.Gateway
	notifier *notify.Service
	jobs     Deactivator
	log      zerolog.Logger
}

func New(gw gateway.Gateway, notifier *notify.Service, jobs Deactivator, log zerolog.Logger) *Coordinator {
	return &Coordinator{gw: gw, notifier: notifier, jobs: jobs, log: log}
}

// Book attempts to finalize a reservation for the exact term.
//
// On gateway.ErrAlreadyBooked with RebookIfExists set, the existing
// reservation is replaced instead. Any other failure leaves the monitoring
// active so it keeps trying on later ticks. On success the user is told and
// the monitoring is retired.
func (c *Coordinator) Book(ctx context.Context, m monitor.Monitoring, t monitor.Term) error {
	err := c.gw.Reserve(ctx, m.AccountID, t)
	if errors.Is(err, gateway.ErrAlreadyBooked) && m.RebookIfExists {
		c.log.Info().Str("monitoring", m.ID).Int64("schedule", t.ScheduleID).
			Msg("reservation exists; replacing it")
		err = c.gw.UpdateReservation(ctx, m.AccountID, t)
	}
	if err != nil {
		c.log.Warn().Str("monitoring", m.ID).Int64("schedule", t.ScheduleID).Err(err).
			Msg("booking attempt failed; monitoring stays active")
		return fmt.Errorf("book %s: %w", m.ID, err)
	}

	msgs := i18n.For(m.Language)
	if err := c.notifier.Send(ctx, m.Destination, msgs.Booked(t, m.ServiceName)); err != nil {
		// The reservation stands; the user just missed the message.
		c.log.Warn().Str("monitoring", m.ID).Err(err).Msg("booked but could not notify")
	}
	if err := c.jobs.Deactivate(ctx, m.AccountID, m.ID); err != nil {
		return fmt.Errorf("deactivate after booking %s: %w", m.ID, err)
	}
	c.log.Info().Str("monitoring", m.ID).Int64("schedule", t.ScheduleID).
		Time("start_at", t.StartAt).Msg("reservation booked")
	return nil
}
