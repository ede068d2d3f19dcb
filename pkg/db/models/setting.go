package models

import (
	"time"
)

// Setting is a key/value row holding a JSON encoded settings document.
type Setting struct {
	ID    uint   `gorm:"primaryKey"`
	Key   string `gorm:"column:setting_key;type:text;not null;uniqueIndex"`
	Value string `gorm:"type:text;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
