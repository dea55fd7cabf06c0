package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ActionPublished           = "published"
	ActionDueTodayReminder    = "due_today_reminder"
	ActionDueTomorrowReminder = "due_tomorrow_reminder"
	ActionOverdueReminder     = "overdue_reminder"
)

// Event is one entry of the task activity feed.
type Event struct {
	ID          uint   `gorm:"primaryKey"`
	AccountID   uint   `gorm:"index"`
	TaskID      uint   `gorm:"index"`
	CreatorID   uint   `gorm:"index"`
	Action      string `gorm:"index"`
	Particulars datatypes.JSON
	CreatedAt   time.Time
}
