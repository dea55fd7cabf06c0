package model

import "time"

// Tag labels tasks within one account.
type Tag struct {
	ID        uint   `gorm:"primaryKey"`
	AccountID uint   `gorm:"index:idx_account_tag_title,unique"`
	Title     string `gorm:"index:idx_account_tag_title,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tagging is the join row between a task and a tag.
type Tagging struct {
	TaskID    uint `gorm:"primaryKey;autoIncrement:false"`
	TagID     uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}
