package mail

import (
	"context"
	"encoding/json"

	"github.com/juju/errors"

	"amalnama/internal/metrics"
	"amalnama/internal/queue"
)

// MessageType tags email requests on the queue.
const MessageType = "email"

// Outbox hands email requests to the background dispatcher.
type Outbox struct {
	q queue.Queue
}

// NewOutbox creates an outbox publishing to q.
func NewOutbox(q queue.Queue) *Outbox {
	return &Outbox{q: q}
}

// Enqueue publishes req. It never blocks on a full in-memory buffer.
func (o *Outbox) Enqueue(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.NewNotValid(err, "encode email request")
	}
	if err := o.q.Publish(ctx, queue.Message{Type: MessageType, Body: body}); err != nil {
		metrics.EmailsQueued.WithLabelValues(req.Type, "error").Inc()
		return errors.Annotatef(err, "enqueue %s email", req.Type)
	}
	metrics.EmailsQueued.WithLabelValues(req.Type, "ok").Inc()
	logger.Debugf("queued %s email to %s", req.Type, req.To)
	return nil
}
