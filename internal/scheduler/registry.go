package scheduler

import (
	"context"
	"time"

	"visitbot/internal/monitor"
)

// job pairs a monitoring with its recurring timer handle. Owned exclusively
// by the registry; the timer and period are fixed at schedule time.
type job struct {
	m         monitor.Monitoring
	timer     *time.Timer
	period    time.Duration
	cancelled bool
}

// ActivateAll registers a recurring job for every active monitoring not
// already present in the registry. Idempotent per record id. Initial delay
// and period are rolled independently per job, once, so a fleet of
// monitorings spreads its load instead of ticking in lockstep.
func (s *Service) ActivateAll(ms []monitor.Monitoring) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range ms {
		if !m.Active {
			continue
		}
		if _, ok := s.reg[m.ID]; ok {
			continue
		}
		delay := s.randDuration(s.cfg.MaxInitialDelay)
		period := s.cfg.PeriodBase + s.randDuration(s.cfg.PeriodJitter)
		id := m.ID
		j := &job{m: m, period: period}
		j.timer = time.AfterFunc(delay, func() { s.fire(id) })
		s.reg[id] = j
		s.log.Debug().Str("monitoring", id).Int64("account", m.AccountID).
			Dur("delay", delay).Dur("period", period).Msg("job scheduled")
	}
}

// fire is the timer callback: it hands the tick to the worker pool. When the
// pool queue is full the tick is skipped and the job re-armed for the next
// period.
func (s *Service) fire(id string) {
	s.mu.Lock()
	j, ok := s.reg[id]
	if !ok || j.cancelled {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ok = s.enqueue(task{name: "tick:" + id, run: func(ctx context.Context) {
		s.runTick(ctx, id)
	}})
	if !ok {
		s.rearm(id)
	}
}

// rearm schedules the next tick unless the job was deactivated meanwhile.
func (s *Service) rearm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.reg[id]
	if !ok || j.cancelled {
		return
	}
	j.timer = time.AfterFunc(j.period, func() { s.fire(id) })
}

// Deactivate retires a monitoring: the registry entry (if any) is removed and
// its timer cancelled, then active=false is persisted. When the registry
// misses — job never scheduled, or the process restarted without it — the
// record is loaded straight from the store so the flag still lands.
//
// Safe to call from inside the job's own tick: timer.Stop never joins a
// running callback, it only prevents future ones.
func (s *Service) Deactivate(ctx context.Context, accountID int64, id string) error {
	s.mu.Lock()
	j, ok := s.reg[id]
	if ok {
		j.cancelled = true
		if j.timer != nil {
			j.timer.Stop()
		}
		delete(s.reg, id)
	}
	s.mu.Unlock()

	var m monitor.Monitoring
	if ok {
		m = j.m
	} else {
		var err error
		m, err = s.store.FindMonitoring(ctx, accountID, id)
		if err != nil {
			return err
		}
		if !m.Active {
			// Already retired; deactivation is idempotent.
			return nil
		}
	}
	m.Active = false
	if err := s.store.SaveMonitoring(ctx, m); err != nil {
		return err
	}
	s.log.Info().Str("monitoring", id).Int64("account", accountID).Msg("monitoring deactivated")
	return nil
}

// registered reports whether a live job exists for the id.
func (s *Service) registered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reg[id]
	return ok
}

// snapshot returns the monitorings currently held by the registry.
func (s *Service) snapshot() []monitor.Monitoring {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]monitor.Monitoring, 0, len(s.reg))
	for _, j := range s.reg {
		out = append(out, j.m)
	}
	return out
}
