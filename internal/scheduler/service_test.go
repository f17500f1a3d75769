package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"visitbot/internal/monitor"
	"visitbot/internal/notify"
	"visitbot/internal/storage"
)

// ---- fakes ----

type fakeStore struct {
	mu   sync.Mutex
	recs map[string]monitor.Monitoring
}

func newFakeStore(ms ...monitor.Monitoring) *fakeStore {
	s := &fakeStore{recs: map[string]monitor.Monitoring{}}
	for _, m := range ms {
		s.recs[m.ID] = m
	}
	return s
}

func (s *fakeStore) list(filter func(monitor.Monitoring) bool) []monitor.Monitoring {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []monitor.Monitoring
	for _, m := range s.recs {
		if filter(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *fakeStore) ActiveMonitorings(context.Context) ([]monitor.Monitoring, error) {
	return s.list(func(m monitor.Monitoring) bool { return m.Active }), nil
}

func (s *fakeStore) ActiveMonitoringsByAccount(_ context.Context, accountID int64) ([]monitor.Monitoring, error) {
	return s.list(func(m monitor.Monitoring) bool { return m.Active && m.AccountID == accountID }), nil
}

func (s *fakeStore) ActiveMonitoringsCreatedSince(_ context.Context, t time.Time) ([]monitor.Monitoring, error) {
	return s.list(func(m monitor.Monitoring) bool { return m.Active && m.CreatedAt.After(t) }), nil
}

func (s *fakeStore) MonitoringsPage(_ context.Context, accountID int64, start, count int) ([]monitor.Monitoring, error) {
	all := s.list(func(m monitor.Monitoring) bool { return m.AccountID == accountID })
	if start >= len(all) {
		return nil, nil
	}
	end := start + count
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *fakeStore) CountAllMonitorings(_ context.Context, accountID int64) (int, error) {
	return len(s.list(func(m monitor.Monitoring) bool { return m.AccountID == accountID })), nil
}

func (s *fakeStore) CountActiveMonitorings(_ context.Context, accountID int64) (int, error) {
	return len(s.list(func(m monitor.Monitoring) bool { return m.Active && m.AccountID == accountID })), nil
}

func (s *fakeStore) FindMonitoring(_ context.Context, accountID int64, id string) (monitor.Monitoring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.recs[id]
	if !ok || m.AccountID != accountID {
		return monitor.Monitoring{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) SaveMonitoring(_ context.Context, m monitor.Monitoring) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[m.ID] = m
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) get(id string) monitor.Monitoring {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs[id]
}

type fakeGateway struct {
	searchFunc func(accountID int64, c monitor.Criteria) ([]monitor.Term, error)
}

func (g *fakeGateway) Search(_ context.Context, accountID int64, c monitor.Criteria) ([]monitor.Term, error) {
	if g.searchFunc == nil {
		return nil, nil
	}
	return g.searchFunc(accountID, c)
}

func (g *fakeGateway) Reserve(context.Context, int64, monitor.Term) error           { return nil }
func (g *fakeGateway) UpdateReservation(context.Context, int64, monitor.Term) error { return nil }

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeBooker struct {
	mu     sync.Mutex
	booked []monitor.Term
	err    error
}

func (b *fakeBooker) Book(_ context.Context, _ monitor.Monitoring, t monitor.Term) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.booked = append(b.booked, t)
	return b.err
}

// ---- helpers ----

// quiet config: timers are armed hours out so ticks never fire on their own.
func testConfig() Config {
	return Config{
		Workers:         2,
		PeriodBase:      time.Hour,
		PeriodJitter:    time.Hour,
		MaxInitialDelay: time.Hour,
		MaxPerAccount:   10,
	}
}

func newTestService(st *fakeStore, gw *fakeGateway, snd *fakeSender) *Service {
	notifier := notify.New(notify.Config{RatePerSec: 1000},
		map[string]notify.Sender{"telegram": snd}, zerolog.Nop())
	return New(testConfig(), st, gw, notifier, zerolog.Nop())
}

func activeMonitoring(id string, accountID int64) monitor.Monitoring {
	return monitor.Monitoring{
		ID:          id,
		AccountID:   accountID,
		UserID:      accountID,
		Destination: monitor.Destination{System: "telegram", ChatID: accountID},
		Criteria: monitor.Criteria{
			ServiceID: 101,
			DateFrom:  time.Now().Add(-time.Hour),
			DateTo:    time.Now().Add(14 * 24 * time.Hour),
		},
		Active:      true,
		ServiceName: "Cardiology consult",
		Language:    "en",
		CreatedAt:   time.Now().Add(-time.Minute),
	}
}

// cancelAll stops every armed timer; cleanup for services that never Started.
func (s *Service) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.reg {
		j.cancelled = true
		if j.timer != nil {
			j.timer.Stop()
		}
		delete(s.reg, id)
	}
}
