// Package scheduler runs periodic jobs (database backup, cache cleanup) on
// cron schedules.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/aristath/portfolio/internal/utils"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is anything the scheduler can run on a cron schedule.
type Job interface {
	Run() error
	Name() string
}

// Scheduler wraps robfig/cron with job-level logging and a registry that
// supports ad hoc RunNow invocation outside the cron schedule.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	metrics map[string]*utils.PerformanceMetrics
}

// New builds a Scheduler. Jobs do not start running until Start is called.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		log:     log.With().Str("component", "scheduler").Logger(),
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		metrics: make(map[string]*utils.PerformanceMetrics),
	}
}

// AddJob registers job against spec, a standard 5-field cron expression.
func (s *Scheduler) AddJob(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	entryID, err := s.cron.AddFunc(spec, func() { s.runAndLog(job) })
	if err != nil {
		return fmt.Errorf("add job %q: %w", name, err)
	}
	s.jobs[name] = job
	s.entries[name] = entryID
	return nil
}

// RunNow executes the named job immediately, outside its cron schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such job: %q", name)
	}
	return job.Run()
}

func (s *Scheduler) runAndLog(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("job", job.Name()).Interface("panic", r).Msg("job panicked")
		}
	}()
	started := time.Now()
	err := job.Run()
	s.recordRun(job.Name(), time.Since(started))
	if err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
	}
}

// recordRun folds one run's duration into that job's running metrics.
func (s *Scheduler) recordRun(name string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metrics[name]
	if !ok {
		m = &utils.PerformanceMetrics{OperationName: name}
		s.metrics[name] = m
	}
	m.CallCount++
	m.TotalDuration += duration
	if m.MinDuration == 0 || duration < m.MinDuration {
		m.MinDuration = duration
	}
	if duration > m.MaxDuration {
		m.MaxDuration = duration
	}
	m.AvgDuration = m.TotalDuration / time.Duration(m.CallCount)
}

// LogMetrics reports the accumulated call count/duration summary for every
// job that has run at least once, for an operator to check scheduler health.
func (s *Scheduler) LogMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.metrics {
		m.LogMetrics(s.log)
	}
}

// Start begins executing registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
