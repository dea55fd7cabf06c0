package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskpulse/internal/model"
)

// RecurrenceRepository stores recurrence schedules and their claims.
type RecurrenceRepository struct {
	db *gorm.DB
}

func NewRecurrenceRepository(db *gorm.DB) *RecurrenceRepository {
	return &RecurrenceRepository{db: db}
}

func (r *RecurrenceRepository) Create(ctx context.Context, rec *model.Recurrence) error {
	rec.NextOccurrenceAt = rec.NextOccurrenceAt.UTC()
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return fmt.Errorf("create recurrence: %w", err)
	}
	return nil
}

func (r *RecurrenceRepository) FindByTaskID(ctx context.Context, accountID, taskID uint) (*model.Recurrence, error) {
	var rec model.Recurrence
	if err := r.db.WithContext(ctx).Where("account_id = ? AND task_id = ?", accountID, taskID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecurrenceRepository) FindByID(ctx context.Context, id uint) (*model.Recurrence, error) {
	var rec model.Recurrence
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save writes schedule columns and the active flag.
func (r *RecurrenceRepository) Save(ctx context.Context, rec *model.Recurrence) error {
	rec.NextOccurrenceAt = rec.NextOccurrenceAt.UTC()
	err := r.db.WithContext(ctx).Model(rec).Updates(map[string]any{
		"frequency":          rec.Frequency,
		"day_of_week":        rec.DayOfWeek,
		"day_of_month":       rec.DayOfMonth,
		"next_occurrence_at": rec.NextOccurrenceAt,
		"active":             rec.Active,
	}).Error
	if err != nil {
		return fmt.Errorf("save recurrence: %w", err)
	}
	return nil
}

func (r *RecurrenceRepository) Delete(ctx context.Context, accountID, taskID uint) error {
	if err := r.db.WithContext(ctx).Where("account_id = ? AND task_id = ?", accountID, taskID).
		Delete(&model.Recurrence{}).Error; err != nil {
		return fmt.Errorf("delete recurrence: %w", err)
	}
	return nil
}

// EachDueBatch calls fn with active recurrences whose next occurrence is at or before now.
func (r *RecurrenceRepository) EachDueBatch(ctx context.Context, now time.Time, size int, fn func([]model.Recurrence) error) error {
	var batch []model.Recurrence
	res := r.db.WithContext(ctx).
		Where("active = ? AND next_occurrence_at <= ?", true, now.UTC()).
		FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		})
	if res.Error != nil {
		return fmt.Errorf("list due recurrences: %w", res.Error)
	}
	return nil
}

// Claim marks a due recurrence as being processed. It reports false when the
// recurrence is no longer due or another run holds an unexpired claim.
func (r *RecurrenceRepository) Claim(ctx context.Context, id uint, now time.Time, lease time.Duration) (bool, error) {
	now = now.UTC()
	res := r.db.WithContext(ctx).Model(&model.Recurrence{}).
		Where("id = ? AND active = ? AND next_occurrence_at <= ?", id, true, now).
		Where("(claimed_at IS NULL OR claimed_at < ?)", now.Add(-lease)).
		Update("claimed_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("claim recurrence: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release drops a claim without rescheduling.
func (r *RecurrenceRepository) Release(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Recurrence{}).Where("id = ?", id).
		Update("claimed_at", nil).Error; err != nil {
		return fmt.Errorf("release recurrence: %w", err)
	}
	return nil
}

// Reschedule records an occurrence, stores the next one and clears the claim.
func (r *RecurrenceRepository) Reschedule(ctx context.Context, rec *model.Recurrence, occurredAt, next time.Time) error {
	occurredAt = occurredAt.UTC()
	next = next.UTC()
	err := r.db.WithContext(ctx).Model(rec).Updates(map[string]any{
		"last_occurred_at":   occurredAt,
		"next_occurrence_at": next,
		"claimed_at":         nil,
	}).Error
	if err != nil {
		return fmt.Errorf("reschedule recurrence: %w", err)
	}
	rec.LastOccurredAt = &occurredAt
	rec.NextOccurrenceAt = next
	rec.ClaimedAt = nil
	return nil
}
