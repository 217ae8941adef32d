package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/shayc/relay/internal/store"
	"github.com/shayc/relay/internal/transport"
	"github.com/shayc/relay/pkg/models"
)

// curatorKinds are the housekeeping kinds, normally injected by the
// scheduler under the system context.
var curatorKinds = map[models.TaskKind]bool{
	models.TaskKindConversationArchive: true,
	models.TaskKindMessageSync:         true,
	models.TaskKindDatabaseCleanup:     true,
	models.TaskKindMetadataUpdate:      true,
	models.TaskKindStatusUpdate:        true,
}

// CuratorStore is the slice of the store the curator needs.
type CuratorStore interface {
	DeleteOldTasks(olderThan time.Duration) (int64, error)
	Stats() (*store.TaskStats, error)
	ListByContext(contextID string, status models.TaskStatus, limit int) ([]*models.Task, error)
}

// DefaultRetention is how long terminal tasks are kept before cleanup
// deletes them.
const DefaultRetention = 30 * 24 * time.Hour

// Curator performs housekeeping: archiving conversations, syncing
// message history, pruning old tasks, and reporting engine status.
type Curator struct {
	store     CuratorStore
	bridge    transport.Bridge
	retention time.Duration
}

// NewCurator returns a Curator. retention <= 0 uses DefaultRetention.
func NewCurator(store CuratorStore, bridge transport.Bridge, retention time.Duration) *Curator {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Curator{store: store, bridge: bridge, retention: retention}
}

// Name implements Agent.
func (c *Curator) Name() string { return "curator" }

// CanHandle implements Agent.
func (c *Curator) CanHandle(kind models.TaskKind) bool {
	return curatorKinds[kind]
}

// Process implements Agent.
func (c *Curator) Process(ctx context.Context, task *models.Task) *Result {
	switch task.Kind {
	case models.TaskKindDatabaseCleanup:
		return c.cleanup()
	case models.TaskKindStatusUpdate:
		return c.statusUpdate(ctx, task)
	case models.TaskKindConversationArchive:
		return c.archive(task)
	case models.TaskKindMessageSync:
		return c.sync(task)
	case models.TaskKindMetadataUpdate:
		return c.metadata(task)
	default:
		return Fail(models.ErrorKindValidation,
			fmt.Sprintf("curator cannot handle kind %q", task.Kind))
	}
}

func (c *Curator) cleanup() *Result {
	retention := c.retention
	deleted, err := c.store.DeleteOldTasks(retention)
	if err != nil {
		return Fail(models.ErrorKindDependencyUnavailable,
			fmt.Sprintf("delete old tasks: %v", err))
	}
	return Succeed("", map[string]any{
		"deleted":        deleted,
		"retention_days": int(retention.Hours() / 24),
	})
}

func (c *Curator) statusUpdate(ctx context.Context, task *models.Task) *Result {
	stats, err := c.store.Stats()
	if err != nil {
		return Fail(models.ErrorKindDependencyUnavailable,
			fmt.Sprintf("read stats: %v", err))
	}

	summary := fmt.Sprintf("Engine status: %d tasks total, %d pending, %d in progress, %d completed, %d failed.",
		stats.Total,
		stats.ByStatus[models.TaskStatusPending],
		stats.ByStatus[models.TaskStatusInProgress],
		stats.ByStatus[models.TaskStatusCompleted],
		stats.ByStatus[models.TaskStatusFailed])

	// Status updates for a real conversation are delivered; system
	// tasks only record the summary.
	if c.bridge != nil && task.ContextID != "" && task.ContextID != "system" {
		if err := c.bridge.SendMessage(ctx, task.ContextID, summary); err != nil {
			return Fail(models.ErrorKindDependencyUnavailable,
				fmt.Sprintf("send status: %v", err))
		}
	}

	return Succeed(summary, map[string]any{
		"total":   stats.Total,
		"pending": stats.ByStatus[models.TaskStatusPending],
	})
}

func (c *Curator) archive(task *models.Task) *Result {
	contextID, _ := task.Input["target_context"].(string)
	data := map[string]any{
		"archived_at": time.Now().UTC().Format(time.RFC3339),
	}

	if contextID != "" {
		done, err := c.store.ListByContext(contextID, models.TaskStatusCompleted, 0)
		if err != nil {
			return Fail(models.ErrorKindDependencyUnavailable,
				fmt.Sprintf("list context %q: %v", contextID, err))
		}
		data["target_context"] = contextID
		data["archived_tasks"] = len(done)
	}

	return Succeed("", data)
}

func (c *Curator) sync(task *models.Task) *Result {
	since, _ := task.Input["since"].(string)
	data := map[string]any{
		"synced_at": time.Now().UTC().Format(time.RFC3339),
	}
	if since != "" {
		data["since"] = since
	}
	return Succeed("", data)
}

func (c *Curator) metadata(task *models.Task) *Result {
	scope, _ := task.Input["scope"].(string)
	if scope == "" {
		scope = "all"
	}
	return Succeed("", map[string]any{
		"scope":        scope,
		"refreshed_at": time.Now().UTC().Format(time.RFC3339),
	})
}
