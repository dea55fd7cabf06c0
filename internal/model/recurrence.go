package model

import "time"

// Recurrence is the stored schedule attached to a template task.
type Recurrence struct {
	ID               uint   `gorm:"primaryKey"`
	TaskID           uint   `gorm:"uniqueIndex"`
	AccountID        uint   `gorm:"index"`
	Frequency        string `gorm:"default:weekly"`
	DayOfWeek        *int
	DayOfMonth       *int
	NextOccurrenceAt time.Time `gorm:"index:idx_recurrence_active_next,priority:2"`
	LastOccurredAt   *time.Time
	Active           bool `gorm:"index:idx_recurrence_active_next,priority:1"`
	ClaimedAt        *time.Time
	Task             Task `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
