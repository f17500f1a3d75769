// Package monitor holds the domain model shared by the scheduler, the store
// and the booking coordinator: a Monitoring is a saved recurring slot search
// with an optional auto-booking directive, a Term is one concrete bookable
// slot returned by the reservation service.
package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Destination identifies where user-facing messages for a monitoring go.
type Destination struct {
	System string // messaging system, e.g. "telegram"
	ChatID int64
}

// Criteria is the saved search filter for a monitoring.
type Criteria struct {
	CityID    int
	ClinicID  int
	ServiceID int
	DoctorID  int
	PayerID   int

	DateFrom time.Time
	DateTo   time.Time

	// Clock window in "HH:MM" local time. Empty means unbounded on that side.
	TimeFrom string
	TimeTo   string

	// OffsetHours pushes the search lower bound into the future,
	// so a user can skip slots they could never reach in time.
	OffsetHours int
}

// Window returns the effective search range: the lower bound is clamped to
// now+offset so past (or unreachable) slots are never requested.
func (c Criteria) Window(now time.Time) (from, to time.Time) {
	from = c.DateFrom
	if min := now.Add(time.Duration(c.OffsetHours) * time.Hour); from.Before(min) {
		from = min
	}
	return from, c.DateTo
}

// Monitoring is a saved recurring search plus its booking directives.
type Monitoring struct {
	ID          string
	AccountID   int64
	UserID      int64
	Destination Destination
	Criteria    Criteria

	Autobook       bool
	RebookIfExists bool
	Active         bool

	// ServiceName is the human-readable service label used in messages.
	ServiceName string
	// Language selects the message bundle for this user ("en", "pl", ...).
	Language string

	CreatedAt time.Time
}

// NewID returns a fresh monitoring record id.
func NewID() string { return uuid.NewString() }

// Expired reports whether the monitoring's date range upper bound has passed.
func (m Monitoring) Expired(now time.Time) bool {
	return !m.Criteria.DateTo.IsZero() && m.Criteria.DateTo.Before(now)
}

func (m Monitoring) Validate() error {
	if m.AccountID == 0 {
		return errors.New("account id required")
	}
	if m.Destination.ChatID == 0 {
		return errors.New("chat destination required")
	}
	if m.Criteria.DateTo.IsZero() {
		return errors.New("date_to required")
	}
	if !m.Criteria.DateFrom.IsZero() && !m.Criteria.DateTo.After(m.Criteria.DateFrom) {
		return fmt.Errorf("date_to %s must be after date_from %s",
			m.Criteria.DateTo.Format("2006-01-02"), m.Criteria.DateFrom.Format("2006-01-02"))
	}
	return nil
}

// Term is one bookable slot as returned by the reservation service.
// Transient: never persisted.
type Term struct {
	ScheduleID int64
	StartAt    time.Time

	ClinicID   int
	DoctorID   int
	RoomID     int
	DoctorName string
	ClinicName string
}

// InTimeWindow reports whether t's clock time falls inside the [from, to]
// window: equal to either bound passes, otherwise strictly between.
// Empty bounds never filter.
func InTimeWindow(t time.Time, from, to string) bool {
	if from == "" && to == "" {
		return true
	}
	clock := t.Format("15:04")
	if clock == from || clock == to {
		return true
	}
	if from != "" && clock <= from {
		return false
	}
	if to != "" && clock >= to {
		return false
	}
	return true
}
