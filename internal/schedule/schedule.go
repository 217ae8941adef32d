// Package schedule injects recurring system tasks: conversation
// archiving, message sync, database cleanup, and metadata refresh. The
// scheduler is just another task creator as far as the engine is
// concerned; the injected tasks flow through the normal dispatch path
// under the "system" context.
package schedule

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shayc/relay/pkg/models"
)

// SystemContext is the conversation reference on scheduler-created
// tasks.
const SystemContext = "system"

// TaskCreator is the slice of the task manager the scheduler needs.
type TaskCreator interface {
	CreateTask(ctx context.Context, kind models.TaskKind, input map[string]any, contextID, messageID string, priority int) (*models.Task, error)
}

// Config selects which jobs run and when.
type Config struct {
	// ArchiveEnabled turns on the daily conversation archive job.
	ArchiveEnabled bool
	// ArchiveTime is the daily archive time in "HH:MM" 24h format.
	ArchiveTime string
	// ArchiveAfterDays is passed to the archive job as its cutoff.
	ArchiveAfterDays int

	// SyncEnabled turns on the periodic message sync job.
	SyncEnabled bool
	// SyncInterval is the spacing between sync tasks.
	SyncInterval time.Duration

	// CleanupEnabled turns on the daily database cleanup job, which
	// runs one hour before the archive time.
	CleanupEnabled bool
	// RetentionDays is passed to the cleanup job.
	RetentionDays int

	// MetadataEnabled turns on the weekly metadata refresh, Sunday at
	// 04:00.
	MetadataEnabled bool
}

// DefaultConfig matches the default production schedule.
func DefaultConfig() Config {
	return Config{
		ArchiveEnabled:   true,
		ArchiveTime:      "03:00",
		ArchiveAfterDays: 90,
		SyncEnabled:      true,
		SyncInterval:     15 * time.Minute,
		CleanupEnabled:   true,
		RetentionDays:    30,
		MetadataEnabled:  true,
	}
}

// Scheduler fires the configured jobs on a one-minute check loop.
type Scheduler struct {
	tasks TaskCreator
	cfg   Config

	archiveHour, archiveMinute int

	lastSync     time.Time
	lastArchive  time.Time
	lastCleanup  time.Time
	lastMetadata time.Time
}

// New returns a Scheduler. The archive time string is validated here;
// a malformed value falls back to 03:00.
func New(tasks TaskCreator, cfg Config) *Scheduler {
	hour, minute, err := parseClock(cfg.ArchiveTime)
	if err != nil {
		log.Printf("[schedule] bad archive time %q, using 03:00: %v", cfg.ArchiveTime, err)
		hour, minute = 3, 0
	}
	return &Scheduler{
		tasks:         tasks,
		cfg:           cfg,
		archiveHour:   hour,
		archiveMinute: minute,
	}
}

func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock out of range: %q", s)
	}
	return hour, minute, nil
}

// Run blocks, checking the schedule every 30 seconds until the context
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("[schedule] started: archive %02d:%02d, sync every %s",
		s.archiveHour, s.archiveMinute, s.cfg.SyncInterval)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Check(ctx, now)
		}
	}
}

// Check fires any job due at the given instant. It is idempotent
// within a clock minute, so a fast caller cannot double-fire a daily
// job.
func (s *Scheduler) Check(ctx context.Context, now time.Time) {
	if s.cfg.SyncEnabled && s.cfg.SyncInterval > 0 && now.Sub(s.lastSync) >= s.cfg.SyncInterval {
		s.lastSync = now
		s.create(ctx, models.TaskKindMessageSync, map[string]any{
			"mode": "incremental",
		}, models.PriorityNormal)
	}

	if s.cfg.ArchiveEnabled && dueDaily(now, s.lastArchive, s.archiveHour, s.archiveMinute) {
		s.lastArchive = now
		s.create(ctx, models.TaskKindConversationArchive, map[string]any{
			"days_old": s.cfg.ArchiveAfterDays,
			"reason":   "scheduled auto-archive",
		}, models.PriorityBackground)
	}

	// Cleanup runs one hour ahead of the archive so deletions settle
	// before archiving starts.
	cleanupHour := (s.archiveHour + 23) % 24
	if s.cfg.CleanupEnabled && dueDaily(now, s.lastCleanup, cleanupHour, s.archiveMinute) {
		s.lastCleanup = now
		s.create(ctx, models.TaskKindDatabaseCleanup, map[string]any{
			"retention_days": s.cfg.RetentionDays,
		}, models.PriorityBackground)
	}

	if s.cfg.MetadataEnabled && now.Weekday() == time.Sunday && dueDaily(now, s.lastMetadata, 4, 0) {
		s.lastMetadata = now
		s.create(ctx, models.TaskKindMetadataUpdate, map[string]any{
			"batch_mode": true,
		}, models.PriorityLow)
	}
}

// dueDaily reports whether the clock job at hour:minute should fire:
// the current minute matches and it has not fired in this minute yet.
func dueDaily(now, last time.Time, hour, minute int) bool {
	if now.Hour() != hour || now.Minute() != minute {
		return false
	}
	return last.IsZero() || !sameMinute(now, last)
}

func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

func (s *Scheduler) create(ctx context.Context, kind models.TaskKind, input map[string]any, priority int) {
	task, err := s.tasks.CreateTask(ctx, kind, input, SystemContext, "", priority)
	if err != nil {
		log.Printf("[schedule] create %s task: %v", kind, err)
		return
	}
	log.Printf("[schedule] created %s task %d", kind, task.ID)
}
