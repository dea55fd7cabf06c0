package model

import "time"

type Board struct {
	ID        uint `gorm:"primaryKey"`
	AccountID uint `gorm:"index"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
