package model

import "time"

const (
	RoleMember = "member"
	RoleSystem = "system"
)

// User is an account member, or the account's system actor.
type User struct {
	ID         uint `gorm:"primaryKey"`
	AccountID  uint `gorm:"index"`
	Name       string
	Email      string
	TelegramID int64  `gorm:"index"` // chat for digest delivery, 0 when unset
	Role       string `gorm:"default:member"`
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u User) IsSystem() bool {
	return u.Role == RoleSystem
}
