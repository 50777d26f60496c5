// Package scheduler runs recurring network scans on cron schedules. Each
// job starts a scan through the coordinator and drains its event stream;
// a job whose previous run is still going is skipped, as is a tick that
// finds another scan in flight.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/netmap"
)

// ScanStarter starts scans. *coordinator.Coordinator implements it.
type ScanStarter interface {
	Start(ctx context.Context, req coordinator.ScanRequest) (<-chan coordinator.Event, error)
}

// EventHandler receives every event of every scheduled scan.
type EventHandler func(job Job, ev coordinator.Event)

// Result summarizes the last run of a job.
type Result struct {
	ScanID   string        `json:"scan_id"`
	Devices  int           `json:"devices"`
	Agents   int           `json:"agents"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
	Canceled bool          `json:"canceled,omitempty"`
}

// Job is a scheduled scan.
type Job struct {
	ID       uuid.UUID    `json:"id"`
	Name     string       `json:"name"`
	Schedule string       `json:"schedule"`
	Full     bool         `json:"full"`
	Ports    []uint16     `json:"ports,omitempty"`
	CronID   cron.EntryID `json:"-"`
	LastRun  time.Time    `json:"last_run,omitempty"`
	NextRun  time.Time    `json:"next_run,omitempty"`
	Running  bool         `json:"running"`
	Last     *Result      `json:"last_result,omitempty"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithEventHandler registers a handler for scan events.
func WithEventHandler(h EventHandler) Option {
	return func(s *Scheduler) { s.onEvent = h }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithLocation sets the time zone schedules are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// Scheduler manages scheduled scan jobs.
type Scheduler struct {
	starter  ScanStarter
	cron     *cron.Cron
	onEvent  EventHandler
	logger   *logging.Logger
	location *time.Location

	mu      sync.RWMutex
	jobs    map[uuid.UUID]*Job
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler that starts scans through starter.
func New(starter ScanStarter, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		starter:  starter,
		jobs:     make(map[uuid.UUID]*Job),
		ctx:      ctx,
		cancel:   cancel,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	s.logger = s.logger.WithComponent("watch")
	s.cron = cron.New(cron.WithLocation(s.location))
	return s
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler, cancels running scans and waits for their
// jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// AddScanJob schedules a scan. The schedule uses the standard five cron
// fields or a descriptor such as "@every 15m".
func (s *Scheduler) AddScanJob(name, schedule string, full bool, ports []uint16) (uuid.UUID, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return uuid.Nil, errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("invalid cron schedule %q", schedule), "schedule", schedule)
	}

	job := &Job{
		ID:       uuid.New(),
		Name:     name,
		Schedule: schedule,
		Full:     full,
		Ports:    append([]uint16(nil), ports...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := job.ID
	cronID, err := s.cron.AddFunc(schedule, func() { s.RunJob(id) })
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	job.CronID = cronID
	s.jobs[job.ID] = job

	s.logger.Info("Added scan job", "job", name, "schedule", schedule, "full", full)
	return job.ID, nil
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return errors.NewScanError(errors.CodeNotFound, "job not found")
	}
	s.cron.Remove(job.CronID)
	delete(s.jobs, jobID)

	s.logger.Info("Removed scan job", "job", job.Name)
	return nil
}

// GetJobs returns snapshots of all jobs ordered by name.
func (s *Scheduler) GetJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		if entry := s.cron.Entry(job.CronID); entry.Valid() {
			snapshot.NextRun = entry.Next
		}
		if job.Last != nil {
			last := *job.Last
			snapshot.Last = &last
		}
		jobs = append(jobs, snapshot)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// RunJob runs a job now and returns when its scan has finished. Cron
// ticks call it; it may also be called directly for an immediate run.
func (s *Scheduler) RunJob(jobID uuid.UUID) {
	job, ok := s.prepareJobExecution(jobID)
	if !ok {
		return
	}

	start := time.Now()
	result := s.execute(job)
	result.Duration = time.Since(start)

	s.mu.Lock()
	if j, exists := s.jobs[jobID]; exists {
		j.Running = false
		j.Last = &result
	}
	s.mu.Unlock()
}

// prepareJobExecution marks the job as running unless it already is.
func (s *Scheduler) prepareJobExecution(jobID uuid.UUID) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return Job{}, false
	}
	if job.Running {
		s.logger.Info("Scan job is already running, skipping", "job", job.Name)
		return Job{}, false
	}
	job.Running = true
	job.LastRun = time.Now()
	return *job, true
}

func (s *Scheduler) execute(job Job) Result {
	log := s.logger.WithFields("job", job.Name)

	events, err := s.starter.Start(s.ctx, coordinator.ScanRequest{Full: job.Full, Ports: job.Ports})
	if err != nil {
		if errors.IsCode(err, errors.CodeScanInProgress) {
			log.Info("Another scan is in progress, skipping")
			return Result{Skipped: true}
		}
		log.Error("Failed to start scan", "error", err)
		return Result{Err: err.Error()}
	}

	var result Result
	completed := false
	for ev := range events {
		result.ScanID = ev.ScanID
		if s.onEvent != nil {
			s.onEvent(job, ev)
		}
		if ev.Progress.Phase != netmap.PhaseComplete {
			continue
		}
		completed = true
		if ev.Err != nil {
			result.Err = ev.Err.Error()
			log.Error("Scheduled scan failed", "scan_id", ev.ScanID, "error", ev.Err)
			continue
		}
		result.Devices = len(ev.Devices)
		result.Agents = countAgents(ev.Devices)
		log.Info("Scheduled scan completed",
			"scan_id", ev.ScanID, "devices", result.Devices, "agents", result.Agents)
	}
	if !completed {
		result.Canceled = true
		log.Info("Scheduled scan cancelled", "scan_id", result.ScanID)
	}
	return result
}

func countAgents(devices []netmap.Device) int {
	n := 0
	for _, d := range devices {
		n += len(d.DetectedAgents)
	}
	return n
}
