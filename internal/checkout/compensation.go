package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/pasarlokal/backend-pasar/internal/obs"
)

// TaskOrderCleanup cancels an upstream order whose items all failed to
// submit. The order exists remotely at this point, so cancellation has to
// survive process restarts; hence a durable task instead of an inline call.
const TaskOrderCleanup = "order:cleanup"

// QueueCompensation is the asynq queue carrying cleanup tasks.
const QueueCompensation = "compensation"

type cleanupPayload struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
}

// Enqueuer schedules compensation tasks.
type Enqueuer struct {
	Client *asynq.Client
	Logger zerolog.Logger
}

// EnqueueOrderCleanup queues cancellation of the given upstream order.
func (e *Enqueuer) EnqueueOrderCleanup(ctx context.Context, orderID, userID string) error {
	if e == nil || e.Client == nil {
		return fmt.Errorf("task client not configured")
	}
	payload, err := json.Marshal(cleanupPayload{OrderID: orderID, UserID: userID})
	if err != nil {
		return fmt.Errorf("encode cleanup payload: %w", err)
	}
	task := asynq.NewTask(TaskOrderCleanup, payload)
	info, err := e.Client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCompensation),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue order cleanup: %w", err)
	}
	e.Logger.Info().
		Str("task_id", info.ID).
		Str("order_id", orderID).
		Msg("order cleanup scheduled")
	obs.CompensationEnqueued.Inc()
	return nil
}

// StatusPatcher is the slice of the upstream client the cleanup handler needs.
type StatusPatcher interface {
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

// NewCleanupHandler returns the asynq handler that patches a failed order to
// cancelled. Errors are returned so asynq retries with backoff.
func NewCleanupHandler(patcher StatusPatcher, cancelStatus string, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p cleanupPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			// A malformed payload will never succeed, skip retries.
			logger.Error().Err(err).Msg("undecodable cleanup payload")
			return fmt.Errorf("decode cleanup payload: %v: %w", err, asynq.SkipRetry)
		}
		if err := patcher.UpdateOrderStatus(ctx, p.OrderID, cancelStatus); err != nil {
			logger.Warn().Err(err).Str("order_id", p.OrderID).Msg("order cleanup attempt failed")
			return err
		}
		logger.Info().Str("order_id", p.OrderID).Str("user_id", p.UserID).Msg("order cancelled")
		obs.CompensationCompleted.Inc()
		return nil
	}
}
