// services/scheduler_service.go
package services

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	defaultPrimarySpec = "0 * * * *"    // hourly
	defaultBackupSpec  = "*/15 * * * *" // every 15 minutes, self-healing backup

	startRetries    = 3
	startRetryDelay = 2 * time.Second
	monitorInterval = 30 * time.Second
	tickTimeout     = 10 * time.Minute
)

// SchedulerStatus is the operator-facing snapshot of the scheduler.
type SchedulerStatus struct {
	IsRunning          bool       `json:"isRunning"`
	LastCheckTime      *time.Time `json:"lastCheckTime"`
	CheckCount         int64      `json:"checkCount"`
	SentRemindersCount int        `json:"sentRemindersCount"`
}

// SchedulerHealth is the liveness view derived from SchedulerStatus.
type SchedulerHealth struct {
	Status             string     `json:"status"`
	LastCheck          *time.Time `json:"lastCheck"`
	TimeSinceLastCheck string     `json:"timeSinceLastCheck"`
	IsProductionReady  bool       `json:"isProductionReady"`
}

// SchedulerService drives the reminder and expiry passes on two overlapping
// cadences and supervises its own cron lifecycle.
type SchedulerService struct {
	reminders *ReminderService
	log       *logrus.Logger

	primarySpec string
	backupSpec  string

	mu         sync.Mutex
	cronEngine *cron.Cron
	lastCheck  time.Time

	running    atomic.Bool
	stopped    atomic.Bool // intentional shutdown, monitor must not restart
	inProgress atomic.Bool // non-blocking tick guard
	checkCount atomic.Int64

	monitorOnce sync.Once
	stopOnce    sync.Once
	monitorStop chan struct{}
}

func NewSchedulerService(reminders *ReminderService, log *logrus.Logger) *SchedulerService {
	primary := os.Getenv("SCHEDULER_PRIMARY_SPEC")
	if primary == "" {
		primary = defaultPrimarySpec
	}
	backup := os.Getenv("SCHEDULER_BACKUP_SPEC")
	if backup == "" {
		backup = defaultBackupSpec
	}
	return &SchedulerService{
		reminders:   reminders,
		log:         log,
		primarySpec: primary,
		backupSpec:  backup,
		monitorStop: make(chan struct{}),
	}
}

// Start registers both cadences and starts the cron engine.
func (s *SchedulerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	engine := cron.New()
	if _, err := engine.AddFunc(s.primarySpec, s.runCheck); err != nil {
		return err
	}
	if _, err := engine.AddFunc(s.backupSpec, s.runCheck); err != nil {
		return err
	}
	engine.Start()

	s.cronEngine = engine
	s.stopped.Store(false)
	s.running.Store(true)
	s.log.Infof("Reminder scheduler started (primary %q, backup %q)", s.primarySpec, s.backupSpec)
	return nil
}

// StartWithRetry attempts startup a bounded number of times with a fixed
// delay, verifying the scheduler reports running after each attempt. It also
// launches the 30s self-healing monitor. On exhaustion the process keeps
// running degraded to manual-only checks.
func (s *SchedulerService) StartWithRetry() {
	for attempt := 1; attempt <= startRetries; attempt++ {
		if err := s.Start(); err != nil {
			s.log.Errorf("Scheduler start attempt %d/%d failed: %v", attempt, startRetries, err)
			time.Sleep(startRetryDelay)
			continue
		}
		time.Sleep(100 * time.Millisecond)
		if s.IsRunning() {
			s.monitorOnce.Do(func() { go s.monitor() })
			return
		}
		time.Sleep(startRetryDelay)
	}
	s.log.Errorf("Scheduler failed to start after %d attempts; reminders degraded to manual checks only", startRetries)
}

// Stop shuts the cron engine down and waits for in-flight jobs to finish.
// Safe to call more than once.
func (s *SchedulerService) Stop() {
	s.stopped.Store(true)
	s.stopOnce.Do(func() { close(s.monitorStop) })

	s.mu.Lock()
	engine := s.cronEngine
	s.cronEngine = nil
	s.mu.Unlock()

	if engine != nil {
		ctx := engine.Stop()
		<-ctx.Done()
	}
	s.running.Store(false)
	s.log.Info("Reminder scheduler stopped")
}

// monitor restarts the scheduler if it unexpectedly stops running.
func (s *SchedulerService) monitor() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.monitorStop:
			return
		case <-ticker.C:
			if s.stopped.Load() || s.IsRunning() {
				continue
			}
			s.log.Warn("Scheduler found stopped unexpectedly, restarting")
			for attempt := 1; attempt <= startRetries; attempt++ {
				if err := s.Start(); err == nil {
					break
				} else {
					s.log.Errorf("Scheduler restart attempt %d/%d failed: %v", attempt, startRetries, err)
					time.Sleep(startRetryDelay)
				}
			}
		}
	}
}

// runCheck executes one tick: a reminder pass then an expiry pass. The
// non-blocking guard skips the tick when the previous one is still running,
// so the hourly and 15-minute cadences never interleave against the same
// appointments.
func (s *SchedulerService) runCheck() {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.log.Info("Tick skipped: previous check still in progress")
		return
	}
	defer s.inProgress.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	s.checkCount.Add(1)
	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()

	if err := s.reminders.RunReminderPass(ctx); err != nil {
		s.log.Errorf("Reminder pass finished with error: %v", err)
	}
	if err := s.reminders.RunExpiryPass(ctx); err != nil {
		s.log.Errorf("Expiry pass finished with error: %v", err)
	}
}

// ManualCheck runs one tick on demand, for operational testing and backfill.
func (s *SchedulerService) ManualCheck() {
	s.log.Info("Manual check triggered")
	s.runCheck()
}

func (s *SchedulerService) IsRunning() bool {
	return s.running.Load()
}

func (s *SchedulerService) Status() SchedulerStatus {
	s.mu.Lock()
	last := s.lastCheck
	s.mu.Unlock()

	status := SchedulerStatus{
		IsRunning:          s.running.Load(),
		CheckCount:         s.checkCount.Load(),
		SentRemindersCount: s.reminders.SentRemindersCount(),
	}
	if !last.IsZero() {
		status.LastCheckTime = &last
	}
	return status
}

func (s *SchedulerService) Health() SchedulerHealth {
	st := s.Status()

	health := SchedulerHealth{
		Status:            "stopped",
		LastCheck:         st.LastCheckTime,
		IsProductionReady: st.IsRunning && st.CheckCount > 0,
	}
	if st.IsRunning {
		health.Status = "running"
	}
	if st.LastCheckTime != nil {
		health.TimeSinceLastCheck = time.Since(*st.LastCheckTime).Round(time.Second).String()
	}
	return health
}
