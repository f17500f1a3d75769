// Package gateway talks to the external reservation service: slot search,
// reservation creation and replacement. Failures are classified so the
// scheduler can tell a bad credential from a transient outage.
package gateway

import (
	"context"
	"errors"

	"visitbot/internal/monitor"
)

var (
	// ErrInvalidCredentials means the account's session was rejected.
	// The scheduler reacts by disabling every monitoring of the account.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadyBooked means the service refused the reservation because one
	// already exists for this service. Only meaningful in the booking path.
	ErrAlreadyBooked = errors.New("service already booked")
)

// Gateway is the reservation-service surface consumed by the scheduler and
// the booking coordinator.
type Gateway interface {
	Search(ctx context.Context, accountID int64, c monitor.Criteria) ([]monitor.Term, error)
	Reserve(ctx context.Context, accountID int64, t monitor.Term) error
	UpdateReservation(ctx context.Context, accountID int64, t monitor.Term) error
}

// SessionProvider hands out valid access credentials per account,
// re-authenticating as needed. Invalidate drops a cached credential after
// the service rejected it.
type SessionProvider interface {
	Token(ctx context.Context, accountID int64) (string, error)
	Invalidate(accountID int64)
}
