package models

import (
	"time"
)

// SyncLog is an append-only audit entry for a sync, discovery or bucket change.
type SyncLog struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	FileID   uint   `gorm:"not null;index" json:"file_id"`
	BucketID *uint  `gorm:"index" json:"bucket_id"` // NULL for the settings-derived bucket
	Action   string `gorm:"type:text;not null" json:"action"`
	Status   string `gorm:"type:text;not null" json:"status"`
	Message  string `gorm:"type:text" json:"message"`

	SyncedAt time.Time `gorm:"autoCreateTime;index" json:"synced_at"`
}

// SyncLogFilter narrows a sync log listing; zero values match everything.
type SyncLogFilter struct {
	FileID   uint
	BucketID *uint
	Action   string
	Status   string
	Limit    int
}
