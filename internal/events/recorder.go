// Package events records task lifecycle events and fans them out over Redis.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"taskpulse/internal/model"
	"taskpulse/internal/repository"
)

// Message is the JSON published for every recorded event.
type Message struct {
	ID          uint            `json:"id"`
	AccountID   uint            `json:"account_id"`
	TaskID      uint            `json:"task_id"`
	CreatorID   uint            `json:"creator_id"`
	Action      string          `json:"action"`
	Particulars json.RawMessage `json:"particulars,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Recorder persists events and publishes them on a Redis channel when a
// client is configured. Publish failures are logged and never returned.
type Recorder struct {
	events  *repository.EventRepository
	rdb     redis.UniversalClient
	channel string
	log     log.FieldLogger
}

func NewRecorder(events *repository.EventRepository, rdb redis.UniversalClient, channel string, logger log.FieldLogger) *Recorder {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Recorder{events: events, rdb: rdb, channel: channel, log: logger}
}

// WithTx returns a recorder whose Save writes through tx.
func (r *Recorder) WithTx(tx *gorm.DB) *Recorder {
	cp := *r
	cp.events = r.events.WithTx(tx)
	return &cp
}

// Record saves ev and publishes it.
func (r *Recorder) Record(ctx context.Context, ev *model.Event) error {
	if err := r.Save(ctx, ev); err != nil {
		return err
	}
	r.Publish(ctx, *ev)
	return nil
}

// Save persists ev without publishing it.
func (r *Recorder) Save(ctx context.Context, ev *model.Event) error {
	if len(ev.Particulars) == 0 {
		ev.Particulars = datatypes.JSON("{}")
	}
	return r.events.Create(ctx, ev)
}

// Publish sends an already saved event to subscribers.
func (r *Recorder) Publish(ctx context.Context, ev model.Event) {
	if r.rdb == nil || r.channel == "" {
		return
	}
	payload, err := json.Marshal(Message{
		ID:          ev.ID,
		AccountID:   ev.AccountID,
		TaskID:      ev.TaskID,
		CreatorID:   ev.CreatorID,
		Action:      ev.Action,
		Particulars: json.RawMessage(ev.Particulars),
		CreatedAt:   ev.CreatedAt,
	})
	if err != nil {
		r.log.WithError(err).WithField("event_id", ev.ID).Error("encode event")
		return
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.WithError(err).WithFields(log.Fields{
			"event_id": ev.ID,
			"channel":  r.channel,
		}).Error("unable to publish event")
	}
}

// Particulars encodes v as an event particulars document.
func Particulars(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode particulars: %w", err)
	}
	return datatypes.JSON(b), nil
}
