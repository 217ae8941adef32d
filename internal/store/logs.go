package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shayc/relay/pkg/models"
)

// AppendLog records an immutable audit entry for a task event.
// There is no update or delete counterpart on purpose.
func (db *DB) AppendLog(entry *models.AgentLog) error {
	details, err := marshalPayload(entry.Details)
	if err != nil {
		return err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	// Duration entries always carry their measurement; zero is a valid
	// sub-millisecond elapsed time. Other actions leave the column NULL.
	var duration any
	if entry.DurationMS > 0 || entry.Action == models.LogActionDuration {
		duration = entry.DurationMS
	}

	res, err := db.Exec(`
		INSERT INTO agent_logs (task_id, agent_name, action, details, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.TaskID, entry.AgentName, string(entry.Action), details, duration,
		formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("append agent log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("agent log id: %w", err)
	}
	entry.ID = id
	return nil
}

// LogsForTask returns all audit entries for a task in insertion order.
func (db *DB) LogsForTask(taskID int64) ([]*models.AgentLog, error) {
	rows, err := db.Query(`
		SELECT id, task_id, agent_name, action, details, duration_ms, created_at
		FROM agent_logs WHERE task_id = ? ORDER BY id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("logs for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var entries []*models.AgentLog
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent log: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("logs for task %d: %w", taskID, err)
	}
	return entries, nil
}

func scanLog(s scanner) (*models.AgentLog, error) {
	var entry models.AgentLog
	var action, createdAt string
	var details sql.NullString
	var duration sql.NullInt64

	err := s.Scan(&entry.ID, &entry.TaskID, &entry.AgentName, &action,
		&details, &duration, &createdAt)
	if err != nil {
		return nil, err
	}

	entry.Action = models.LogAction(action)
	entry.Details = unmarshalPayload(details)
	entry.DurationMS = duration.Int64

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	entry.CreatedAt = created

	return &entry, nil
}
