// Package cron runs the garden's housekeeping jobs on robfig/cron schedules.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"kubegarden/api/logger"
)

var ErrUnknownJob = errors.New("no such job")

// Job is a scheduled unit of work. It receives a context that is cancelled
// when the scheduler stops.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]entry
	stats   map[string]*JobInfo
}

type entry struct {
	id       cron.EntryID
	schedule string
}

// JobInfo describes a scheduled job and its last run.
type JobInfo struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Next      time.Time `json:"next"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"lastRun,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:     ctx,
		cancel:  cancel,
		timeout: 5 * time.Minute,
		entries: make(map[string]entry),
		stats:   make(map[string]*JobInfo),
	}
}

// Every schedules job under name using a standard five-field cron
// expression or a descriptor such as "@every 30s". An empty schedule
// disables the job. Scheduling the same name again replaces it.
func (s *Scheduler) Every(schedule, name string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[name]; ok {
		s.cron.Remove(e.id)
		delete(s.entries, name)
	}
	if schedule == "" {
		return nil
	}

	id, err := s.cron.AddFunc(schedule, func() { s.execute(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s with %q: %w", name, schedule, err)
	}
	s.entries[name] = entry{id: id, schedule: schedule}
	logger.GetLogger().Info("cron: scheduled job", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

// Trigger runs name once in the caller's goroutine. A run that is already
// in progress makes this a no-op.
func (s *Scheduler) Trigger(name string) (JobInfo, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	job := s.cron.Entry(e.id).Job
	if job == nil {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	job.Run()
	return s.info(name, e), nil
}

// Jobs lists scheduled jobs by name. Next is zero until Start.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	entries := make(map[string]entry, len(s.entries))
	for name, e := range s.entries {
		entries[name] = e
	}
	s.mu.Unlock()

	out := make([]JobInfo, 0, len(entries))
	for name, e := range entries {
		out = append(out, s.info(name, e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) info(name string, e entry) JobInfo {
	next := s.cron.Entry(e.id).Next
	s.mu.Lock()
	defer s.mu.Unlock()
	info := JobInfo{Name: name}
	if st, ok := s.stats[name]; ok {
		info = *st
	}
	info.Schedule = e.schedule
	info.Next = next
	return info
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.GetLogger().Info("cron: scheduler started")
}

func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.GetLogger().Info("cron: scheduler stopped")
}

func (s *Scheduler) execute(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)

	s.mu.Lock()
	st, ok := s.stats[name]
	if !ok {
		st = &JobInfo{Name: name}
		s.stats[name] = st
	}
	st.Runs++
	st.LastRun = start
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
	s.mu.Unlock()

	log := logger.GetLogger().With(zap.String("job", name), zap.Duration("took", time.Since(start)))
	if err != nil {
		log.Warn("cron: job failed", zap.Error(err))
		return
	}
	log.Debug("cron: job finished")
}
