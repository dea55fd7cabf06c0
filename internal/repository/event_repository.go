package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskpulse/internal/model"
)

// EventRepository appends to the task activity feed.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	return &EventRepository{db: tx}
}

func (r *EventRepository) Create(ctx context.Context, ev *model.Event) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// ListByAccount returns the account's events, oldest first, optionally filtered by action.
func (r *EventRepository) ListByAccount(ctx context.Context, accountID uint, action string) ([]model.Event, error) {
	q := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	var events []model.Event
	if err := q.Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
