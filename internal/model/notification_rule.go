package model

import "time"

const (
	RuleFrequencyDaily  = "daily"
	RuleFrequencyWeekly = "weekly"
)

// NotificationRule is a user filter plus cadence that triggers digest mail.
type NotificationRule struct {
	ID        uint `gorm:"primaryKey"`
	AccountID uint `gorm:"index"`
	UserID    uint `gorm:"index:idx_rule_user_active,priority:1"`
	Name      string
	Frequency string  `gorm:"default:daily;index"`
	DueInDays *int    // nil matches any due date
	Active    bool    `gorm:"index:idx_rule_user_active,priority:2"`
	SendTime  string  `gorm:"default:09:00"`
	User      User    `gorm:"foreignKey:UserID"`
	Account   Account `gorm:"foreignKey:AccountID"`
	Boards    []Board `gorm:"many2many:notification_rule_boards;"`
	Tags      []Tag   `gorm:"many2many:notification_rule_tags;"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
