package database

import (
	"context"
	"testing"
	"time"

	"hotelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.OutboxTask{TaskType: models.TaskConfirmationEmail, BookingID: 7, Payload: `{"email":"a@b.c"}`}
	require.NoError(t, db.CreateOutboxTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	later := &models.OutboxTask{TaskType: models.TaskLedgerAppend, BookingID: 7, Payload: "{}"}
	future := time.Now().Add(time.Hour).UTC()
	later.NextRetryAt = &future
	require.NoError(t, db.CreateOutboxTask(ctx, later))

	pending, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, task.ID, pending[0].ID)
	assert.Equal(t, `{"email":"a@b.c"}`, pending[0].Payload)

	t.Run("retry pushes task into the future", func(t *testing.T) {
		next := time.Now().Add(time.Minute).UTC()
		require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusPending, "smtp down", &next))

		pending, err := db.GetPendingOutboxTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		var retries int
		var lastError string
		require.NoError(t, db.QueryRowContext(ctx, `SELECT retry_count, last_error FROM outbox_tasks WHERE id = ?`, task.ID).
			Scan(&retries, &lastError))
		assert.Equal(t, 1, retries)
		assert.Equal(t, "smtp down", lastError)
	})

	t.Run("completed task is not pending", func(t *testing.T) {
		require.NoError(t, db.UpdateOutboxTaskStatus(ctx, later.ID, models.TaskStatusCompleted, "", nil))

		var status string
		var processed *time.Time
		require.NoError(t, db.QueryRowContext(ctx, `SELECT status, processed_at FROM outbox_tasks WHERE id = ?`, later.ID).
			Scan(&status, &processed))
		assert.Equal(t, models.TaskStatusCompleted, status)
		assert.NotNil(t, processed)
	})
}
