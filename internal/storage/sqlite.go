package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"visitbot/internal/monitor"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open initializes the sqlite store, creating the database file and running
// migrations as needed.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const monitoringCols = `id, account_id, user_id, dest_system, dest_chat_id,
city_id, clinic_id, service_id, doctor_id, payer_id,
date_from, date_to, time_from, time_to, offset_hours,
autobook, rebook, active, service_name, language, created_at`

func (s *sqliteStore) SaveMonitoring(ctx context.Context, m monitor.Monitoring) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO monitorings(`+monitoringCols+`)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
    autobook=excluded.autobook,
    rebook=excluded.rebook,
    active=excluded.active,
    service_name=excluded.service_name,
    language=excluded.language`,
		m.ID, m.AccountID, m.UserID, m.Destination.System, m.Destination.ChatID,
		m.Criteria.CityID, m.Criteria.ClinicID, m.Criteria.ServiceID, m.Criteria.DoctorID, m.Criteria.PayerID,
		m.Criteria.DateFrom.Format(time.RFC3339Nano), m.Criteria.DateTo.Format(time.RFC3339Nano),
		m.Criteria.TimeFrom, m.Criteria.TimeTo, m.Criteria.OffsetHours,
		boolInt(m.Autobook), boolInt(m.RebookIfExists), boolInt(m.Active),
		m.ServiceName, m.Language, m.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) FindMonitoring(ctx context.Context, accountID int64, id string) (monitor.Monitoring, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+monitoringCols+` FROM monitorings WHERE account_id=? AND id=?`, accountID, id)
	m, err := scanMonitoring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return monitor.Monitoring{}, ErrNotFound
	}
	return m, err
}

func (s *sqliteStore) ActiveMonitorings(ctx context.Context) ([]monitor.Monitoring, error) {
	return s.queryMonitorings(ctx,
		`SELECT `+monitoringCols+` FROM monitorings WHERE active=1 ORDER BY created_at`)
}

func (s *sqliteStore) ActiveMonitoringsByAccount(ctx context.Context, accountID int64) ([]monitor.Monitoring, error) {
	return s.queryMonitorings(ctx,
		`SELECT `+monitoringCols+` FROM monitorings WHERE active=1 AND account_id=? ORDER BY created_at`, accountID)
}

func (s *sqliteStore) ActiveMonitoringsCreatedSince(ctx context.Context, t time.Time) ([]monitor.Monitoring, error) {
	return s.queryMonitorings(ctx,
		`SELECT `+monitoringCols+` FROM monitorings WHERE active=1 AND created_at > ? ORDER BY created_at`,
		t.Format(time.RFC3339Nano))
}

func (s *sqliteStore) MonitoringsPage(ctx context.Context, accountID int64, start, count int) ([]monitor.Monitoring, error) {
	if count <= 0 {
		return nil, nil
	}
	if start < 0 {
		start = 0
	}
	return s.queryMonitorings(ctx,
		`SELECT `+monitoringCols+` FROM monitorings WHERE account_id=? ORDER BY created_at LIMIT ? OFFSET ?`,
		accountID, count, start)
}

func (s *sqliteStore) CountAllMonitorings(ctx context.Context, accountID int64) (int, error) {
	return s.countMonitorings(ctx, `SELECT COUNT(*) FROM monitorings WHERE account_id=?`, accountID)
}

func (s *sqliteStore) CountActiveMonitorings(ctx context.Context, accountID int64) (int, error) {
	return s.countMonitorings(ctx, `SELECT COUNT(*) FROM monitorings WHERE active=1 AND account_id=?`, accountID)
}

func (s *sqliteStore) countMonitorings(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *sqliteStore) queryMonitorings(ctx context.Context, q string, args ...any) ([]monitor.Monitoring, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []monitor.Monitoring
	for rows.Next() {
		m, err := scanMonitoring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonitoring(row rowScanner) (monitor.Monitoring, error) {
	var (
		m                           monitor.Monitoring
		dateFrom, dateTo, createdAt string
		autobook, rebook, active    int
	)
	err := row.Scan(
		&m.ID, &m.AccountID, &m.UserID, &m.Destination.System, &m.Destination.ChatID,
		&m.Criteria.CityID, &m.Criteria.ClinicID, &m.Criteria.ServiceID, &m.Criteria.DoctorID, &m.Criteria.PayerID,
		&dateFrom, &dateTo, &m.Criteria.TimeFrom, &m.Criteria.TimeTo, &m.Criteria.OffsetHours,
		&autobook, &rebook, &active, &m.ServiceName, &m.Language, &createdAt,
	)
	if err != nil {
		return monitor.Monitoring{}, err
	}
	if m.Criteria.DateFrom, err = time.Parse(time.RFC3339Nano, dateFrom); err != nil {
		return monitor.Monitoring{}, fmt.Errorf("date_from: %w", err)
	}
	if m.Criteria.DateTo, err = time.Parse(time.RFC3339Nano, dateTo); err != nil {
		return monitor.Monitoring{}, fmt.Errorf("date_to: %w", err)
	}
	if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return monitor.Monitoring{}, fmt.Errorf("created_at: %w", err)
	}
	m.Autobook = autobook != 0
	m.RebookIfExists = rebook != 0
	m.Active = active != 0
	return m, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
