package bucket

import (
	"time"

	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/s3client"
	"github.com/mwantia/s3offload/pkg/settings"
)

// VirtualLabel is the label of the bucket synthesized from settings.
const VirtualLabel = "Default (from settings)"

// Config is a resolved bucket, either a registry row or the virtual bucket.
type Config struct {
	ID           uint       `json:"id"`
	Virtual      bool       `json:"virtual"`
	Name         string     `json:"name"`
	Label        string     `json:"label"`
	Provider     string     `json:"provider"`
	AccessKey    string     `json:"access_key"`
	SecretKey    string     `json:"secret_key"`
	Region       string     `json:"region"`
	Endpoint     string     `json:"endpoint"`
	UsePathStyle bool       `json:"use_path_style"`
	PathPrefix   string     `json:"path_prefix"`
	CDNBase      string     `json:"cdn_base"`
	IsDefault    bool       `json:"is_default"`
	IsActive     bool       `json:"is_active"`
	AutoSync     bool       `json:"auto_sync"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
}

func (c *Config) Ref() Ref {
	if c.Virtual {
		return Virtual()
	}
	return Persisted(c.ID)
}

func (c *Config) Connection() s3client.Connection {
	return s3client.Connection{
		Provider:     c.Provider,
		AccessKey:    c.AccessKey,
		SecretKey:    c.SecretKey,
		Region:       c.Region,
		Endpoint:     c.Endpoint,
		UsePathStyle: c.UsePathStyle,
	}
}

// Redacted returns a copy with the secret masked.
func (c Config) Redacted() Config {
	if c.SecretKey != "" {
		c.SecretKey = settings.SecretMask
	}
	return c
}

func fromModel(m *models.Bucket) *Config {
	return &Config{
		ID:           m.ID,
		Name:         m.Name,
		Label:        m.Label,
		Provider:     m.Provider,
		AccessKey:    m.AccessKey,
		SecretKey:    m.SecretKey,
		Region:       m.Region,
		Endpoint:     m.Endpoint,
		UsePathStyle: m.UsePathStyle,
		PathPrefix:   m.PathPrefix,
		CDNBase:      m.CDNBase,
		IsDefault:    m.IsDefault,
		IsActive:     m.IsActive,
		AutoSync:     m.AutoSync,
		LastSyncAt:   m.LastSyncAt,
	}
}

// FromSettings synthesizes the virtual bucket, or nil when the settings
// lack a bucket name or credentials.
func FromSettings(s settings.Settings) *Config {
	if !s.HasVirtualBucket() {
		return nil
	}
	return &Config{
		Virtual:      true,
		Name:         s.Bucket,
		Label:        VirtualLabel,
		Provider:     s.Provider,
		AccessKey:    s.AccessKey,
		SecretKey:    s.SecretKey,
		Region:       s.Region,
		Endpoint:     s.Endpoint,
		UsePathStyle: s.UsePathStyle,
		PathPrefix:   s.PathPrefix,
		CDNBase:      s.CDNBase,
		IsDefault:    true,
		IsActive:     true,
	}
}
