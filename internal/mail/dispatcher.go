package mail

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"

	"amalnama/internal/metrics"
	"amalnama/internal/queue"
)

// RetryPolicy bounds delivery attempts.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

// Dispatcher drains the outbox queue and delivers with bounded retry.
type Dispatcher struct {
	deliverer Deliverer
	policy    RetryPolicy
	clock     clock.Clock
}

// NewDispatcher creates a dispatcher. A nil clk uses the wall clock.
func NewDispatcher(d Deliverer, policy RetryPolicy, clk clock.Clock) *Dispatcher {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if policy.Delay <= 0 {
		policy.Delay = 500 * time.Millisecond
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Dispatcher{deliverer: d, policy: policy, clock: clk}
}

func isFatal(err error) bool {
	return errors.Is(err, errors.NotValid) ||
		errors.Is(err, errors.BadRequest) ||
		errors.Is(err, ErrNotConfigured)
}

// Dispatch delivers req, retrying transient failures with doubling backoff.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			metrics.EmailAttempts.Inc()
			return d.deliverer.Deliver(ctx, req)
		},
		IsFatalError: isFatal,
		NotifyFunc: func(lastErr error, attempt int) {
			logger.Warningf("email %s to %s attempt %d failed: %v", req.Type, req.To, attempt, lastErr)
		},
		Attempts:    d.policy.Attempts,
		Delay:       d.policy.Delay,
		MaxDelay:    d.policy.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       d.clock,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		err = retry.LastError(err)
	}
	if err != nil {
		metrics.EmailsDelivered.WithLabelValues(req.Type, "failed").Inc()
		return errors.Annotatef(err, "deliver %s email to %s", req.Type, req.To)
	}
	metrics.EmailsDelivered.WithLabelValues(req.Type, "ok").Inc()
	return nil
}

// Run consumes q until ctx is cancelled. Failed deliveries are logged and
// dropped.
func (d *Dispatcher) Run(ctx context.Context, q queue.Queue) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return errors.Annotate(err, "consume email queue")
	}
	logger.Infof("email dispatcher started")
	for msg := range msgs {
		if msg.Type != MessageType {
			logger.Warningf("skipping queue message of type %q", msg.Type)
			continue
		}
		var req Request
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			logger.Errorf("dropping undecodable email request: %v", err)
			continue
		}
		if err := d.Dispatch(ctx, req); err != nil {
			logger.Errorf("%v", err)
		}
	}
	logger.Infof("email dispatcher stopped")
	return nil
}
