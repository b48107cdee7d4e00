package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OutboxTask is a queued side effect of a committed booking.
type OutboxTask struct {
	ID          int64      `json:"id" db:"id"`
	TaskType    string     `json:"task_type" db:"task_type"`
	BookingID   int64      `json:"booking_id" db:"booking_id"`
	Payload     string     `json:"payload" db:"payload"`
	Status      string     `json:"status" db:"status"`
	RetryCount  int        `json:"retry_count" db:"retry_count"`
	LastError   *string    `json:"last_error" db:"last_error"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at" db:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at" db:"next_retry_at"`
}

// NewOutboxTask builds a pending task carrying notice as its JSON payload.
func NewOutboxTask(taskType string, notice *BookingNotice) (OutboxTask, error) {
	if taskType == "" {
		return OutboxTask{}, errors.New("task type is required")
	}
	if notice == nil || notice.Booking.ID == 0 {
		return OutboxTask{}, errors.New("booking id is required")
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return OutboxTask{}, fmt.Errorf("encode payload: %w", err)
	}
	return OutboxTask{
		TaskType:  taskType,
		BookingID: notice.Booking.ID,
		Payload:   string(payload),
		Status:    TaskStatusPending,
	}, nil
}

// Notice decodes the task payload.
func (t *OutboxTask) Notice() (*BookingNotice, error) {
	var notice BookingNotice
	if err := json.Unmarshal([]byte(t.Payload), &notice); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &notice, nil
}
