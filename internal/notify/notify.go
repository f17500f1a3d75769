// Package notify delivers user-facing messages over a chat adapter.
// Sends are rate limited so a burst of matching monitorings cannot trip
// the messaging platform's flood control.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"visitbot/internal/monitor"
)

// Sender is the outbound chat transport (implemented by transport/telegram).
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Config controls the notifier.
type Config struct {
	RatePerSec int // default 3
}

type Service struct {
	senders map[string]Sender
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New builds a notifier routing by destination system. The "telegram" sender
// is the default when a destination has no system set.
func New(cfg Config, senders map[string]Sender, log zerolog.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 3
	}
	return &Service{
		senders: senders,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Send delivers text to the destination. Failures are logged and returned;
// the caller decides whether they matter.
func (s *Service) Send(ctx context.Context, dest monitor.Destination, text string) error {
	system := dest.System
	if system == "" {
		system = "telegram"
	}
	sender, ok := s.senders[system]
	if !ok {
		return fmt.Errorf("no sender for system %q", system)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := sender.Send(ctx, dest.ChatID, text); err != nil {
		s.log.Warn().Str("system", system).Int64("chat_id", dest.ChatID).Err(err).Msg("notification send failed")
		return err
	}
	s.log.Debug().Str("system", system).Int64("chat_id", dest.ChatID).Msg("notification sent")
	return nil
}
