package scheduler

import (
	"context"
	"sync"
	"time"

	"quickcart/internal/monitor"
	"quickcart/pkg/lock"
	"quickcart/pkg/log"
)

// Job is one recurring sweep. Run is invoked at most once per Interval
// per cluster: the scheduler takes a distributed lock named after the
// job before running, so only one process instance executes it.
type Job struct {
	Name     string
	Interval time.Duration
	LockTTL  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives the background sweeps: outbox dispatch, reservation
// expiry, auto-cancel, SLA tracking and the retention cleanups.
type Scheduler struct {
	locks   lock.Service
	metrics *monitor.Collector
	jobs    []Job
	wg      sync.WaitGroup
}

// New builds a scheduler. metrics may be nil; sweep timings are then
// not recorded.
func New(locks lock.Service, metrics *monitor.Collector) *Scheduler {
	return &Scheduler{locks: locks, metrics: metrics}
}

func (s *Scheduler) Register(job Job) {
	if job.LockTTL == 0 {
		job.LockTTL = job.Interval
	}
	s.jobs = append(s.jobs, job)
}

// Start launches one goroutine per job and returns. The jobs stop when
// ctx is cancelled; Wait blocks until they have all drained.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	log.WithComponent("scheduler").WithField("jobs", len(s.jobs)).Info("scheduler started")
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	logger := log.WithComponent("scheduler").WithField("job", job.Name)

	lockKey := "sweep:" + job.Name
	acquired, err := s.locks.Acquire(ctx, lockKey, job.LockTTL)
	if err != nil {
		logger.WithError(err).Warn("lock acquisition failed")
		return
	}
	if !acquired {
		// Another instance holds this sweep; skip the tick.
		return
	}
	defer func() {
		if err := s.locks.Release(ctx, lockKey); err != nil {
			logger.WithError(err).Warn("lock release failed")
		}
	}()

	start := time.Now()
	err = job.Run(ctx)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordSweep(job.Name, elapsed, err)
	}
	if err != nil {
		logger.WithError(err).WithField("elapsed", elapsed).Error("job failed")
		return
	}
	logger.WithField("elapsed", elapsed).Debug("job completed")
}
