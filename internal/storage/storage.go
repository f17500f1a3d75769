// Package storage persists monitoring records. It is the system of record:
// the scheduler's in-memory registry is rebuilt from here on every start.
package storage

import (
	"context"
	"errors"
	"time"

	"visitbot/internal/monitor"
)

var ErrNotFound = errors.New("monitoring not found")

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Store is the persistence API consumed by the scheduler.
type Store interface {
	ActiveMonitorings(ctx context.Context) ([]monitor.Monitoring, error)
	ActiveMonitoringsByAccount(ctx context.Context, accountID int64) ([]monitor.Monitoring, error)
	ActiveMonitoringsCreatedSince(ctx context.Context, t time.Time) ([]monitor.Monitoring, error)
	MonitoringsPage(ctx context.Context, accountID int64, start, count int) ([]monitor.Monitoring, error)
	CountAllMonitorings(ctx context.Context, accountID int64) (int, error)
	CountActiveMonitorings(ctx context.Context, accountID int64) (int, error)
	FindMonitoring(ctx context.Context, accountID int64, id string) (monitor.Monitoring, error)
	SaveMonitoring(ctx context.Context, m monitor.Monitoring) error
	Close() error
}
