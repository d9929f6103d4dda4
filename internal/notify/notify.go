// Package notify delivers dispute lifecycle events to recipients.
//
// Delivery is fire-and-forget from the engine's perspective: the emitter is
// invoked after a transition commits, runs in the background, and failures
// are logged and counted but never propagate back into the workflow.
package notify

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachwise/coachwise/internal/logging"
	"github.com/coachwise/coachwise/internal/retry"
)

var (
	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coachwise",
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Notification delivery attempts by event type and result.",
	}, []string{"event", "result"})
)

func init() {
	prometheus.MustRegister(notificationsTotal)
}

// Event is one notification to one recipient.
type Event struct {
	Type        string            `json:"type"`
	RecipientID string            `json:"recipientId"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// Sink is the actual delivery channel (mail, push, in-app). The engine does
// not define notification content; the sink owns rendering.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Emitter fans events out to a sink asynchronously, retrying transient
// delivery failures a few times before giving up.
type Emitter struct {
	sink    Sink
	timeout time.Duration
}

func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink, timeout: 10 * time.Second}
}

// Notify queues one event for delivery and returns immediately.
func (e *Emitter) Notify(ctx context.Context, eventType, recipientID string, metadata map[string]string) {
	if e == nil || e.sink == nil {
		return
	}
	ev := Event{
		Type:        eventType,
		RecipientID: recipientID,
		Metadata:    metadata,
		OccurredAt:  time.Now().UTC(),
	}
	// detach from the request context but keep the request logger
	logger := logging.L(ctx)
	go func() {
		dctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		err := retry.Do(dctx, 3, 200*time.Millisecond, func() error {
			return e.sink.Deliver(dctx, ev)
		})
		if err != nil {
			notificationsTotal.WithLabelValues(ev.Type, "error").Inc()
			logger.Warn("notification delivery failed",
				"event", ev.Type, "recipient", ev.RecipientID, "error", err)
			return
		}
		notificationsTotal.WithLabelValues(ev.Type, "ok").Inc()
	}()
}

// LogSink writes notifications to the log. Demo-mode delivery channel.
type LogSink struct{}

func (LogSink) Deliver(ctx context.Context, ev Event) error {
	logging.L(ctx).Info("notification",
		"event", ev.Type, "recipient", ev.RecipientID, "metadata", ev.Metadata)
	return nil
}
