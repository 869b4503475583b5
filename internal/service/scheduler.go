package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/castpost/castpost-api/internal/publish"
)

// SchedulerConfig controls the due-task scan.
type SchedulerConfig struct {
	// CronSpec is the scan cadence in cron syntax. Defaults to every minute.
	CronSpec string

	// BatchSize caps the tasks dispatched per scan.
	BatchSize int

	// ScanTimeout bounds one scan pass, including all dispatch work.
	ScanTimeout time.Duration
}

// Scheduler periodically scans for scheduled tasks whose time has come and
// hands them to the dispatch service. The dispatch claim makes overlapping
// scans (or scans on multiple instances) safe.
type Scheduler struct {
	cron     *cron.Cron
	dispatch *DispatchService
	config   SchedulerConfig
	clock    publish.Clock
	logger   *slog.Logger
}

// NewScheduler creates a scheduler around the dispatch service. clock may be
// nil, in which case the system clock is used.
func NewScheduler(dispatch *DispatchService, config SchedulerConfig, clock publish.Clock, log *slog.Logger) (*Scheduler, error) {
	if config.CronSpec == "" {
		config.CronSpec = "* * * * *"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = 5 * time.Minute
	}
	if clock == nil {
		clock = publish.SystemClock{}
	}

	s := &Scheduler{
		cron:     cron.New(),
		dispatch: dispatch,
		config:   config,
		clock:    clock,
		logger:   log,
	}

	if _, err := s.cron.AddFunc(config.CronSpec, s.scanOnce); err != nil {
		return nil, fmt.Errorf("invalid scheduler cron spec %q: %w", config.CronSpec, err)
	}

	return s, nil
}

// Start begins the periodic scan. It returns immediately; scans run on the
// cron's own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", slog.String("cron_spec", s.config.CronSpec))
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// ScanOnce runs a single due-task scan. Exposed so operators (and tests) can
// trigger a scan outside the cron cadence.
func (s *Scheduler) ScanOnce(ctx context.Context) (int, error) {
	return s.dispatch.DispatchDue(ctx, s.clock.Now(), s.config.BatchSize)
}

func (s *Scheduler) scanOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ScanTimeout)
	defer cancel()

	dispatched, err := s.ScanOnce(ctx)
	if err != nil {
		s.logger.Error("due task scan failed", slog.Any("error", err))
		return
	}

	if dispatched > 0 {
		s.logger.Info("due tasks dispatched", slog.Int("count", dispatched))
	}
}
