package models

import (
	"time"
)

// Bucket represents an S3-compatible bucket an upload can be offloaded to.
// Rows are hard deleted; removing a bucket never touches its remote objects.
type Bucket struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"type:text;not null;uniqueIndex"`
	Label    string `gorm:"type:text;not null"`
	Provider string `gorm:"type:text;not null;default:custom"`

	// Credentials
	AccessKey string `gorm:"type:text;not null"`
	SecretKey string `gorm:"type:text;not null"`

	Region       string `gorm:"type:text"`
	Endpoint     string `gorm:"type:text"`
	UsePathStyle bool   `gorm:"not null"`
	PathPrefix   string `gorm:"type:text"`
	CDNBase      string `gorm:"column:cdn_base;type:text"`

	IsDefault  bool `gorm:"not null;default:false;index"`
	IsActive   bool `gorm:"not null"`
	AutoSync   bool `gorm:"not null;default:false"`
	LastSyncAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
