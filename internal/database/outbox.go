package database

import (
	"context"
	"fmt"
	"time"

	"hotelbook/internal/models"

	"github.com/jmoiron/sqlx"
)

const outboxColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	return insertOutboxTask(ctx, db, task)
}

func insertOutboxTask(ctx context.Context, e sqlx.ExecerContext, task *models.OutboxTask) error {
	now := time.Now().UTC()
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	result, err := e.ExecContext(ctx, `
        INSERT INTO outbox_tasks (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingOutboxTasks returns pending tasks whose retry time has come,
// oldest first.
func (db *DB) GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error) {
	tasks := []models.OutboxTask{}
	err := db.SelectContext(ctx, &tasks, `
        SELECT `+outboxColumns+` FROM outbox_tasks
        WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
        ORDER BY created_at ASC, id ASC LIMIT ?`,
		models.TaskStatusPending, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox tasks: %w", err)
	}
	return tasks, nil
}

// UpdateOutboxTaskStatus records an attempt. A pending status with a retry
// time counts as a retry.
func (db *DB) UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	var query string
	var args []interface{}
	now := time.Now().UTC()

	switch status {
	case models.TaskStatusPending:
		query = `UPDATE outbox_tasks SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, id}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		query = `UPDATE outbox_tasks SET status = ?, last_error = ?, next_retry_at = NULL, processed_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, now, id}
	default:
		query = `UPDATE outbox_tasks SET status = ?, last_error = ? WHERE id = ?`
		args = []interface{}{status, lastError, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox task status: %w", err)
	}
	return nil
}
