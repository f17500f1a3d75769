// Package scheduler owns the live set of monitoring jobs: discovery of new
// records, jittered recurring slot searches, expiry sweeps and deactivation.
//
// Two kinds of background execution exist. A single cron entry drives the
// discovery+sweep cycle and never overlaps itself. Job ticks run on a bounded
// worker pool; ticks for different monitorings are concurrent, a tick for the
// same monitoring is only rescheduled after the previous one finished.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"visitbot/internal/gateway"
	"visitbot/internal/monitor"
	"visitbot/internal/notify"
	"visitbot/internal/storage"
)

// Config controls the scheduler service.
type Config struct {
	Workers   int // job tick pool size; default 10
	QueueSize int // default 256

	// Recurring tick period is rolled per job at schedule time:
	// uniform in [PeriodBase, PeriodBase+PeriodJitter).
	PeriodBase   time.Duration // default 30s
	PeriodJitter time.Duration // default 30s
	// First tick fires after a uniform delay in [0, MaxInitialDelay)
	// so many monitorings never hit the service in one burst.
	MaxInitialDelay time.Duration // default 30s

	SweepEvery    time.Duration // discovery+sweep interval; default 1m
	MaxPerAccount int           // active monitorings cap; default 10
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.PeriodBase <= 0 {
		c.PeriodBase = 30 * time.Second
	}
	if c.PeriodJitter <= 0 {
		c.PeriodJitter = 30 * time.Second
	}
	if c.MaxInitialDelay <= 0 {
		c.MaxInitialDelay = 30 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = time.Minute
	}
	if c.MaxPerAccount <= 0 {
		c.MaxPerAccount = 10
	}
	return c
}

// Booker finalizes a reservation for a matched term
// (implemented by booking.Coordinator).
type Booker interface {
	Book(ctx context.Context, m monitor.Monitoring, t monitor.Term) error
}

type task struct {
	name string
	run  func(ctx context.Context)
}

type Service struct {
	cfg      Config
	store    storage.Store
	gw       gateway.Gateway
	notifier *notify.Service
	booker   Booker
	log      zerolog.Logger

	// reg is the single piece of shared mutable state: monitoring id ->
	// running job. All mutation goes through Service methods; job callbacks
	// call back into the service rather than touching the map.
	mu  sync.Mutex
	reg map[string]*job

	// lastChecked is the discovery checkpoint. It is advanced before the
	// query results are used so records created mid-query are not missed.
	cmu         sync.Mutex
	lastChecked time.Time

	queue     chan task
	stopCh    chan struct{}
	workerWG  sync.WaitGroup
	cron      *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func New(cfg Config, store storage.Store, gw gateway.Gateway, notifier *notify.Service, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg.withDefaults(),
		store:    store,
		gw:       gw,
		notifier: notifier,
		log:      log,
		reg:      map[string]*job{},
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetBooker wires the booking coordinator. Must be called before Start;
// split from New because the coordinator needs the service as its Deactivator.
func (s *Service) SetBooker(b Booker) { s.booker = b }

// Start reloads every active monitoring from the store and re-arms its job,
// then starts the worker pool and the discovery/sweep cycle. Jobs are armed
// before the first discovery tick runs.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return nil
	}
	s.stopCh = make(chan struct{})
	s.queue = make(chan task, s.cfg.QueueSize)
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	stopCh := s.stopCh
	queue := s.queue
	runCtx := s.runCtx
	s.mu.Unlock()

	s.cmu.Lock()
	s.lastChecked = time.Now()
	s.cmu.Unlock()

	active, err := s.store.ActiveMonitorings(ctx)
	if err != nil {
		return fmt.Errorf("load active monitorings: %w", err)
	}
	s.ActivateAll(active)

	s.workerWG.Add(s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Int("worker", idx).Any("panic", r).
						Str("stack", string(debug.Stack())).Msg("panic in scheduler worker")
				}
			}()
			s.worker(runCtx, stopCh, queue)
		}()
	}

	// Single serialized entry: discovery, then sweep. SkipIfStillRunning
	// keeps a slow cycle from overlapping the next one.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = c.AddFunc("@every "+s.cfg.SweepEvery.String(), func() {
		s.discoverNew(runCtx)
		s.sweepExpired(runCtx)
	})
	if err != nil {
		return err
	}
	c.Start()
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	s.log.Info().Int("workers", s.cfg.Workers).Int("jobs", len(active)).
		Dur("sweep_every", s.cfg.SweepEvery).Msg("scheduler started")
	return nil
}

// Stop cancels all timers and drains the worker pool. In-flight ticks run to
// completion; only future ticks are prevented.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	cancel := s.runCancel
	c := s.cron
	s.stopCh = nil
	s.runCancel = nil
	s.cron = nil
	for id, j := range s.reg {
		j.cancelled = true
		if j.timer != nil {
			j.timer.Stop()
		}
		delete(s.reg, id)
	}
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Msg("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop cancelled; workers finish in background")
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			t.run(ctx)
		}
	}
}

func (s *Service) enqueue(t task) bool {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return false
	}
	select {
	case q <- t:
		return true
	default:
		s.log.Warn().Str("task", t.name).Int("queue_len", len(q)).Msg("scheduler queue full; tick skipped")
		return false
	}
}

func (s *Service) randDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return time.Duration(s.rnd.Int63n(int64(max)))
}
