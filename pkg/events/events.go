// Package events publishes measurement lifecycle notifications in the
// background so request latency never depends on the broker.
package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/measure-api/pkg/jobs"
)

// Routing keys.
const (
	MeasureUploaded  = "measure.uploaded"
	MeasureConfirmed = "measure.confirmed"
)

// Event is the message body delivered to subscribers.
type Event struct {
	Type         string    `json:"type"`
	MeasureUUID  string    `json:"measure_uuid"`
	CustomerCode string    `json:"customer_code,omitempty"`
	MeasureType  string    `json:"measure_type,omitempty"`
	Value        float64   `json:"measure_value"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Sink delivers one event synchronously.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher hands events to a Sink through a retrying worker queue.
type Dispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewDispatcher wires sink behind a queue configured by cfg.
func NewDispatcher(sink Sink, cfg jobs.QueueConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(Event)
		if !ok {
			cfg.Logger.Error("unexpected event payload", zap.String("job_id", job.ID))
			return nil
		}
		return sink.Publish(ctx, event)
	}
	return &Dispatcher{
		queue:  jobs.NewQueue("events", handler, cfg),
		logger: cfg.Logger,
	}
}

// Start launches the publishing workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Dispatch queues event for delivery.
func (d *Dispatcher) Dispatch(event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := d.queue.Enqueue(jobs.Job{Type: event.Type, Payload: event}); err != nil {
		return fmt.Errorf("dispatch %s: %w", event.Type, err)
	}
	return nil
}

// Stop flushes queued events until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	return d.queue.Stop(ctx)
}
