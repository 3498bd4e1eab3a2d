// Package models contains database model definitions.
package models

import "time"

// Setting represents one persisted top-level setting key within a scope. The
// value is an opaque JSON document; dot-notated nested paths address fields
// inside it.
//
// Owner columns use empty strings instead of NULLs for global settings so the
// composite unique index actually deduplicates rows (NULLs never compare
// equal in SQL uniqueness checks).
type Setting struct {
	ID          uint64 `gorm:"primaryKey"`
	Key         string `gorm:"size:255;not null;uniqueIndex:idx_settings_key_owner"`
	Value       []byte `gorm:"type:json"`
	Name        string `gorm:"size:255"`
	Description string
	OwnerType   string `gorm:"size:191;not null;default:'';uniqueIndex:idx_settings_key_owner"`
	OwnerID     string `gorm:"size:191;not null;default:'';uniqueIndex:idx_settings_key_owner"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for Setting.
func (Setting) TableName() string {
	return "settings"
}
