package scheduler

import (
	"fmt"
	"time"

	"jigtrack/config"
	"jigtrack/repository"
	"jigtrack/storage"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Scheduler drives the time-based maintenance work: shift closeouts, report
// retention, and disk-pressure cleanup. It polls once a minute and never
// lets a failing run take the host process down.
type Scheduler struct {
	repo   *repository.Repository
	store  *storage.Manager
	cfg    *config.Config
	logger cmtlog.Logger
	loc    *time.Location

	stopCh chan struct{}
	doneCh chan struct{}

	// fired de-duplicates minute-resolution triggers within a day.
	fired         map[string]string
	lastDiskCheck time.Time
}

// New builds a Scheduler. Call Start to begin the loop.
func New(repo *repository.Repository, store *storage.Manager, cfg *config.Config, logger cmtlog.Logger) *Scheduler {
	return &Scheduler{
		repo:   repo,
		store:  store,
		cfg:    cfg,
		logger: logger,
		loc:    cfg.Location(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		fired:  make(map[string]string),
	}
}

// Start launches the polling loop in its own goroutine.
func (s *Scheduler) Start() {
	go s.run()
	s.logger.Info("Scheduler started", "poll", "1m")
}

// Stop signals the loop to exit and waits for the current run to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.Tick(now.In(s.loc))
		}
	}
}

// Tick evaluates every trigger against the given instant. A panic anywhere
// in a run is recovered and logged so the next minute still fires.
func (s *Scheduler) Tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduler run panicked", "panic", fmt.Sprintf("%v", r))
		}
	}()

	s.runShiftTriggers(now)
	s.runRetention(now)
	s.checkDiskPressure(now, false)
}

// runShiftTriggers walks the configured triggers for now's weekday.
func (s *Scheduler) runShiftTriggers(now time.Time) {
	for _, trigger := range s.cfg.TriggersFor(now.Weekday()) {
		if closeAt, err := config.ParseClock(trigger.CloseAt); err == nil && closeAt.Matches(now) {
			key := fmt.Sprintf("close:%s:%s", trigger.Shift, trigger.CloseAt)
			if s.once(key, now) {
				s.closeOutShift(trigger, now)
			}
		}
		if purge, err := config.ParseClock(trigger.PurgeAt); err == nil && purge.Matches(now) {
			key := fmt.Sprintf("purge:%s:%s", trigger.Shift, trigger.PurgeAt)
			if s.once(key, now) {
				s.purgeShift(trigger, now)
			}
		}
	}
}

// once reports whether key has not yet fired today and marks it fired.
func (s *Scheduler) once(key string, now time.Time) bool {
	day := now.Format("2006-01-02")
	if s.fired[key] == day {
		return false
	}
	s.fired[key] = day
	return true
}

// shiftWindow is the validation time range a trigger operates on: from
// midnight of the target day up to the trigger instant. Night shifts whose
// work began the previous evening set WindowPreviousDay, pulling the start
// back a day so the whole shift is covered.
func shiftWindow(trigger config.ShiftTrigger, now time.Time, loc *time.Location) (time.Time, time.Time) {
	day := now
	if trigger.WindowPreviousDay {
		day = now.AddDate(0, 0, -1)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return start, now
}

func (s *Scheduler) closeOutShift(trigger config.ShiftTrigger, now time.Time) {
	start, end := shiftWindow(trigger, now, s.loc)
	marked, rerr := s.repo.CloseOutShift(trigger.Shift, start, end)
	if rerr != nil {
		s.logger.Error("Shift closeout failed", "shift", trigger.Shift, "err", rerr)
		return
	}
	s.logger.Info("Shift closed out", "shift", trigger.Shift, "marked_no_validated", marked)
}

func (s *Scheduler) purgeShift(trigger config.ShiftTrigger, now time.Time) {
	start, end := shiftWindow(trigger, now, s.loc)
	purged, rerr := s.repo.PurgeShiftValidations(trigger.Shift, start, end)
	if rerr != nil {
		s.logger.Error("Shift purge failed", "shift", trigger.Shift, "err", rerr)
		return
	}
	if purged == 0 {
		s.logger.Info("Shift purge found nothing to delete", "shift", trigger.Shift)
		return
	}
	s.logger.Info("Shift validations purged", "shift", trigger.Shift, "rows", purged)
}

// runRetention runs the daily artifact pass at the configured time.
func (s *Scheduler) runRetention(now time.Time) {
	clock, err := config.ParseClock(s.cfg.RetentionTime)
	if err != nil || !clock.Matches(now) {
		return
	}
	if !s.once("retention", now) {
		return
	}

	// Disk pressure shortens the cleanup threshold for this pass.
	s.checkDiskPressure(now, true)

	if s.store == nil {
		return
	}
	if _, err := s.store.CompressOldReports(s.cfg.Retention.CompressDays); err != nil {
		s.logger.Error("Report compression failed", "err", err)
	}
	if _, err := s.store.CleanupOldReports(s.cfg.Retention.CleanupDays); err != nil {
		s.logger.Error("Report cleanup failed", "err", err)
	}
	if _, err := s.store.CleanupOrphanedFiles(); err != nil {
		s.logger.Error("Orphan purge failed", "err", err)
	}
}

// checkDiskPressure runs aggressive cleanup when the reports volume crosses
// the warning threshold. Outside the daily pass it re-checks at most every
// twelve hours.
func (s *Scheduler) checkDiskPressure(now time.Time, force bool) {
	if s.store == nil {
		return
	}
	if !force && now.Sub(s.lastDiskCheck) < 12*time.Hour {
		return
	}
	s.lastDiskCheck = now

	usage, err := storage.DiskUsage(s.cfg.ReportsDir)
	if err != nil {
		s.logger.Error("Disk usage probe failed", "err", err)
		return
	}
	if usage.UsedPercent < s.cfg.Disk.WarningPercent {
		return
	}

	level := "warning"
	if usage.UsedPercent >= s.cfg.Disk.CriticalPercent {
		level = "critical"
	}
	s.logger.Error("Disk pressure detected, running aggressive cleanup",
		"used_pct", fmt.Sprintf("%.1f", usage.UsedPercent), "level", level)

	if _, err := s.store.CleanupOldReports(s.cfg.Retention.AggressiveCleanupDays); err != nil {
		s.logger.Error("Aggressive cleanup failed", "err", err)
	}
	if usage.UsedPercent >= s.cfg.Disk.CriticalPercent {
		if _, err := s.store.CleanupOrphanedFiles(); err != nil {
			s.logger.Error("Orphan purge failed", "err", err)
		}
	}
}
