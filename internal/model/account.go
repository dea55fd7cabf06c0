package model

import (
	"time"
	_ "time/tzdata"
)

// Account is the tenant every other record is scoped to.
type Account struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	TimeZone  string // IANA name; empty falls back to the configured zone
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the account time zone, falling back to def.
func (a Account) Location(def *time.Location) *time.Location {
	if a.TimeZone != "" {
		if loc, err := time.LoadLocation(a.TimeZone); err == nil {
			return loc
		}
	}
	if def == nil {
		return time.UTC
	}
	return def
}
