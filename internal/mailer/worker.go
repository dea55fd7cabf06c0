package mailer

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Worker drains a queue into a sender at a bounded rate.
type Worker struct {
	queue   Queue
	sender  Sender
	limiter *rate.Limiter
	timeout time.Duration
	log     log.FieldLogger
}

// NewWorker allows perSec deliveries per second; zero or less disables the limit.
func NewWorker(queue Queue, sender Sender, perSec float64, logger log.FieldLogger) *Worker {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Worker{
		queue:   queue,
		sender:  sender,
		limiter: rate.NewLimiter(limit, 1),
		timeout: 10 * time.Second,
		log:     logger.WithField("component", "mail_worker"),
	}
}

// Run delivers digests until ctx is done or the queue is closed and empty.
func (w *Worker) Run(ctx context.Context) {
	for {
		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			w.log.WithError(err).Error("dequeue digest")
			// Avoid spinning on a broken backend.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.deliver(ctx, d)
	}
}

func (w *Worker) deliver(ctx context.Context, d Digest) {
	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	entry := w.log.WithFields(log.Fields{"digest_id": d.ID, "rule_id": d.RuleID, "user_id": d.UserID})
	if err := w.sender.Send(sendCtx, d); err != nil {
		entry.WithError(err).Warn("digest not delivered")
		return
	}
	entry.Debug("digest delivered")
}
