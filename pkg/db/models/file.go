package models

import (
	"time"
)

// File is a locally tracked upload together with its remote location.
// BucketID is NULL for local-only files and for files offloaded to the
// settings-derived bucket, which has no row of its own.
type File struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Path     string `gorm:"type:text;index" json:"path"` // relative to the upload root, slash separated
	Title    string `gorm:"type:text" json:"title"`
	MimeType string `gorm:"type:text" json:"mime_type"`
	Size     int64  `gorm:"not null;default:0" json:"size"`

	// Remote location
	Offloaded  bool   `gorm:"not null;default:false;index" json:"offloaded"`
	BucketID   *uint  `gorm:"index" json:"bucket_id"`
	BucketName string `gorm:"type:text" json:"bucket_name"`
	RemoteKey  string `gorm:"type:text;index" json:"remote_key"`
	Discovered bool   `gorm:"not null;default:false" json:"discovered"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileFilter narrows a file listing. LocalOnly selects files that were never
// offloaded; BucketID selects files offloaded to that persisted bucket.
type FileFilter struct {
	BucketID  *uint
	LocalOnly bool
	Limit     int
	Offset    int
}

// CandidateQuery selects one page of files for a sync run, ordered by id.
// Without Force only files that are not offloaded are returned. AfterID is a
// keyset cursor; Offset is only applied when AfterID is zero.
type CandidateQuery struct {
	Force   bool
	AfterID uint
	Offset  int
	Limit   int
}
