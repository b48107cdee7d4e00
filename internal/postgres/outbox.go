package postgres

import (
	"context"
	"fmt"
	"time"

	"hotelbook/internal/models"

	"github.com/jackc/pgx/v5"
)

const outboxColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (s *Store) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	return insertOutboxTask(ctx, s.pool, task)
}

func insertOutboxTask(ctx context.Context, q querier, task *models.OutboxTask) error {
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	err := q.QueryRow(ctx, `
        INSERT INTO outbox_tasks (task_type, booking_id, payload, status, retry_count, last_error, next_retry_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, task.NextRetryAt,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return fmt.Errorf("create outbox task: %w", err)
	}
	return nil
}

func (s *Store) GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error) {
	rows, _ := s.pool.Query(ctx, `
        SELECT `+outboxColumns+` FROM outbox_tasks
        WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= now())
        ORDER BY created_at, id
        LIMIT $2`, models.TaskStatusPending, limit)
	tasks, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.OutboxTask])
	if err != nil {
		return nil, fmt.Errorf("get pending outbox tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	var err error
	switch status {
	case models.TaskStatusPending:
		_, err = s.pool.Exec(ctx, `
            UPDATE outbox_tasks SET status = $1, last_error = $2, next_retry_at = $3, retry_count = retry_count + 1
            WHERE id = $4`, status, lastError, nextRetryAt, id)
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		_, err = s.pool.Exec(ctx, `
            UPDATE outbox_tasks SET status = $1, last_error = $2, next_retry_at = NULL, processed_at = now()
            WHERE id = $3`, status, lastError, id)
	default:
		_, err = s.pool.Exec(ctx, `UPDATE outbox_tasks SET status = $1, last_error = $2 WHERE id = $3`, status, lastError, id)
	}
	if err != nil {
		return fmt.Errorf("update outbox task status: %w", err)
	}
	return nil
}
