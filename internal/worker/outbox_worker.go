package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hotelbook/internal/domain"
	"hotelbook/internal/metrics"
	"hotelbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultQueueKey      = "hotelbook:outbox"
	defaultDeadLetterKey = "hotelbook:outbox:dead"
	handledMemory        = 10000
)

// TaskHandler performs the side effect of one task type.
type TaskHandler func(ctx context.Context, notice *models.BookingNotice) error

type Options struct {
	Retry         RetryPolicy
	QueueKey      string
	DeadLetterKey string
	PollInterval  time.Duration
	BatchSize     int
}

// OutboxWorker persists booking side effects to outbox_tasks and executes
// them. Tasks reach it through a local channel, a Redis list, or polling the
// table, in that order of preference.
type OutboxWorker struct {
	repo          domain.OutboxRepository
	redis         *redis.Client
	handlers      map[string]TaskHandler
	retryPolicy   RetryPolicy
	queue         chan models.OutboxTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger

	mu      sync.Mutex
	handled map[int64]struct{}
}

func NewOutboxWorker(repo domain.OutboxRepository, redisClient *redis.Client, opts Options, logger *zerolog.Logger) *OutboxWorker {
	retry := opts.Retry
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if opts.QueueKey == "" {
		opts.QueueKey = defaultQueueKey
	}
	if opts.DeadLetterKey == "" {
		opts.DeadLetterKey = defaultDeadLetterKey
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OutboxWorker{
		repo:          repo,
		redis:         redisClient,
		handlers:      make(map[string]TaskHandler),
		retryPolicy:   retry,
		queue:         make(chan models.OutboxTask, models.WorkerQueueSize),
		redisQueueKey: opts.QueueKey,
		deadLetterKey: opts.DeadLetterKey,
		pollInterval:  opts.PollInterval,
		batchSize:     opts.BatchSize,
		logger:        logger,
		handled:       make(map[int64]struct{}),
	}
}

// Handle registers fn for taskType. Call before Start.
func (w *OutboxWorker) Handle(taskType string, fn TaskHandler) {
	w.handlers[taskType] = fn
}

// EnqueueTask persists the task and schedules it. Bookings admitted through
// the booking service insert their tasks in the admission transaction and
// only call Schedule.
func (w *OutboxWorker) EnqueueTask(ctx context.Context, taskType string, notice *models.BookingNotice) error {
	task, err := models.NewOutboxTask(taskType, notice)
	if err != nil {
		return err
	}
	if err := w.repo.CreateOutboxTask(ctx, &task); err != nil {
		return fmt.Errorf("persist outbox task: %w", err)
	}
	w.Schedule(ctx, task)
	return nil
}

// Schedule pushes an already persisted task to redis or the in-memory queue.
// A task that fits in neither is still picked up by polling.
func (w *OutboxWorker) Schedule(ctx context.Context, task models.OutboxTask) {
	if w.redis != nil {
		err := w.pushRedis(ctx, w.redisQueueKey, task)
		if err == nil {
			return
		}
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, using local queue")
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("local outbox queue full, task left to polling")
	}
}

// Start runs the worker loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("outbox worker started")
	defer w.logger.Info().Msg("outbox worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.repo.GetPendingOutboxTasks(ctx, w.batchSize)
		if err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending outbox tasks")
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *OutboxWorker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.OutboxTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxTask, bool) {
	if w.redis == nil {
		return models.OutboxTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP error")
		}
		return models.OutboxTask{}, false
	}
	if len(res) != 2 {
		return models.OutboxTask{}, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis outbox task")
		return models.OutboxTask{}, false
	}
	return task, true
}

// markHandled reports whether the task had already been settled. A task
// can arrive twice when it is both queued and still pending in the table.
func (w *OutboxWorker) markHandled(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.handled[id]; ok {
		return true
	}
	if len(w.handled) >= handledMemory {
		w.handled = make(map[int64]struct{})
	}
	w.handled[id] = struct{}{}
	return false
}

func (w *OutboxWorker) forget(id int64) {
	w.mu.Lock()
	delete(w.handled, id)
	w.mu.Unlock()
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	if w.markHandled(task.ID) {
		return
	}

	log := w.logger.With().Int64("task_id", task.ID).Str("task_type", task.TaskType).Int64("booking_id", task.BookingID).Logger()

	notice, err := task.Notice()
	if err != nil {
		w.failTask(ctx, task, err)
		return
	}

	handler, ok := w.handlers[task.TaskType]
	if !ok {
		w.failTask(ctx, task, fmt.Errorf("unknown task type: %s", task.TaskType))
		return
	}

	if err := handler(ctx, notice); err != nil {
		log.Warn().Err(err).Int("attempt", task.RetryCount+1).Msg("outbox task failed")
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification(task.TaskType, models.TaskStatusCompleted)
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		log.Error().Err(err).Msg("mark outbox task completed")
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncNotification(task.TaskType, "retry")
	nextTime := time.Now().UTC().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusPending, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark outbox task for retry")
	}
	w.forget(task.ID)
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	metrics.IncNotification(task.TaskType, models.TaskStatusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("task_type", task.TaskType).Msg("outbox task moved to dead letter")
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark outbox task failed")
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
		}
	}
}

func (w *OutboxWorker) pushRedis(ctx context.Context, key string, task models.OutboxTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
