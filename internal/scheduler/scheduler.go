// Package scheduler runs the reconciliation sweeps on cron schedules and on
// demand. Runs are not serialised: two sweeps may overlap.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // zoneinfo for minimal images

	"grocerystock/internal/config"
	"grocerystock/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper is implemented by *service.Service.
type Sweeper interface {
	LowStockSweep(ctx context.Context) (service.SweepReport, error)
	AutoReorderSweep(ctx context.Context) (service.SweepReport, error)
	SupplierRenewalSweep(ctx context.Context) (service.SweepReport, error)
}

type Scheduler struct {
	cron      *cron.Cron
	sweeper   Sweeper
	log       *zap.Logger
	kickDelay time.Duration
	jobs      map[string]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	kick    *time.Timer
	stopped bool
	running sync.WaitGroup
}

func New(cfg config.SchedulerConfig, sweeper Sweeper, log *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone %q: %w", cfg.Timezone, err)
	}
	cronLog := cronLogger{log: log.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
		sweeper:   sweeper,
		log:       log,
		kickDelay: cfg.KickDelay,
		jobs:      make(map[string]cron.EntryID),
		ctx:       ctx,
		cancel:    cancel,
	}

	schedules := []struct {
		name string
		expr string
		run  func(context.Context) (service.SweepReport, error)
	}{
		{"daily_low_stock", cfg.DailyLowStock, sweeper.LowStockSweep},
		{"hourly_low_stock", cfg.HourlyLowStock, sweeper.LowStockSweep},
		{"auto_renew", cfg.AutoRenew, sweeper.SupplierRenewalSweep},
		{"auto_reorder", cfg.AutoReorder, sweeper.AutoReorderSweep},
	}
	for _, job := range schedules {
		id, err := s.cron.AddFunc(job.expr, s.job(job.name, job.run))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s (%q): %w", job.name, job.expr, err)
		}
		s.jobs[job.name] = id
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for name, id := range s.jobs {
		s.log.Info("sweep scheduled", zap.String("job", name), zap.Time("next", s.cron.Entry(id).Next))
	}
}

// Stop halts the schedules, cancels in-flight sweeps and waits for them to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	if s.kick != nil {
		s.kick.Stop()
	}
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerAutoReorder runs the auto-reorder sweep once after the kick delay.
// Kicks arriving while one is pending are folded into it.
func (s *Scheduler) TriggerAutoReorder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.kick != nil {
		return
	}
	s.kick = time.AfterFunc(s.kickDelay, func() {
		s.mu.Lock()
		s.kick = nil
		s.mu.Unlock()
		s.job("kicked_auto_reorder", s.sweeper.AutoReorderSweep)()
	})
}

func (s *Scheduler) job(name string, run func(context.Context) (service.SweepReport, error)) func() {
	return func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.running.Add(1)
		s.mu.Unlock()
		defer s.running.Done()

		report, err := run(s.ctx)
		if err != nil {
			s.log.Error("scheduled sweep failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Debug("scheduled sweep finished",
			zap.String("job", name),
			zap.Int("orders", report.Orders),
			zap.Int("failures", report.Failures),
		)
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
