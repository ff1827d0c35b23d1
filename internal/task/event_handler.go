package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/puris-api/internal/events"
)

// Ensure Dispatcher implements events.EventHandler
var _ events.EventHandler = (*Dispatcher)(nil)

// HandleEvent queues a process task for every newly received request.
// Other event types are ignored.
func (d *Dispatcher) HandleEvent(ctx context.Context, event *events.RequestEvent) error {
	if event.Type != events.TypeRequestReceived {
		return nil
	}

	task := NewProcessRequestTask(d.requests, event.RequestID)
	if err := d.Submit(ctx, task); err != nil {
		d.logger.Warn("failed to queue received request, it will be picked up by the next sweep",
			slog.String("request_id", event.RequestID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to submit task: %w", err)
	}

	d.logger.Debug("queued received request",
		slog.String("request_id", event.RequestID.String()),
		slog.String("task_id", task.ID().String()))
	return nil
}
