package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"

	"github.com/rl1809/crm/internal/platform/logger"
)

// Scheduler runs jobs on cron schedules. Specs take an optional leading
// seconds field or a descriptor such as "@every 5m".
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add in RunNow against the Wait in Stop.
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(timeout time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
		log:     log.With("component", "scheduler"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under spec. An empty spec leaves the job unscheduled.
func (s *Scheduler) Add(spec string, job Job) error {
	if spec == "" {
		s.log.Info("job disabled", "job", job.Name())
		return nil
	}
	if err := s.cron.AddFunc(spec, func() { s.RunNow(s.ctx, job) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name(), spec, err)
	}
	s.log.Info("job scheduled", "job", job.Name(), "schedule", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cron.Stop()

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// RunNow runs job once under the scheduler's timeout. Panics are logged.
// After Stop it does nothing.
func (s *Scheduler) RunNow(ctx context.Context, job Job) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.log.Debug("scheduler stopped, job skipped", "job", job.Name())
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", "job", job.Name(), "panic", r)
		}
	}()

	job.Run(ctx)
	s.log.Debug("job finished", "job", job.Name(), "duration", time.Since(start))
}
