// Package settings holds the global offload settings as an immutable
// snapshot that is loaded once per operation and passed down explicitly.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/mwantia/s3offload/pkg/apperr"
)

const (
	SyncModeManual = "manual"
	SyncModeAuto   = "auto"

	// SecretMask replaces the secret key in redacted output. Submitting it
	// back keeps the stored secret.
	SecretMask = "********"
)

type Settings struct {
	// Connection parameters of the settings-derived (virtual) bucket.
	Provider     string `json:"provider"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Region       string `json:"region"`
	Endpoint     string `json:"endpoint"`
	Bucket       string `json:"bucket"`
	PathPrefix   string `json:"path_prefix"`
	CDNBase      string `json:"cdn_base"`
	UsePathStyle bool   `json:"use_path_style"`

	DeleteLocalAfterOffload bool   `json:"delete_local_after_offload"`
	DisableSSLVerify        bool   `json:"disable_ssl_verify"`
	PrivateBucket           bool   `json:"private_bucket"`
	SignedTTL               int    `json:"signed_ttl"`
	SignedURLFallback       bool   `json:"signed_url_fallback"`
	CacheControl            string `json:"cache_control"`
	StorageClass            string `json:"storage_class"`
	BatchSize               int    `json:"batch_size"`
	ExcludeMIME             string `json:"exclude_mime"`

	Enabled             bool   `json:"enabled"`
	MultiBucketEnabled  bool   `json:"multi_bucket_enabled"`
	AutoDiscoverEnabled bool   `json:"auto_discover_enabled"`
	SyncMode            string `json:"sync_mode"`
}

func Defaults() Settings {
	return Settings{
		Provider:            "custom",
		UsePathStyle:        true,
		SignedTTL:           3600,
		SignedURLFallback:   true,
		CacheControl:        "public, max-age=31536000, immutable",
		BatchSize:           25,
		Enabled:             true,
		MultiBucketEnabled:  true,
		AutoDiscoverEnabled: true,
		SyncMode:            SyncModeManual,
	}
}

// Sanitize decodes raw onto base, rejecting unknown fields, then normalizes
// and validates the result.
func Sanitize(base Settings, raw []byte) (Settings, error) {
	out := base

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return base, apperr.Wrap(apperr.KindValidation, "Invalid settings payload", err)
	}

	if out.SecretKey == SecretMask {
		out.SecretKey = base.SecretKey
	}

	out.normalize()
	if err := out.Validate(); err != nil {
		return base, apperr.Wrap(apperr.KindValidation, "Invalid settings", err)
	}
	return out, nil
}

func (s *Settings) normalize() {
	s.Provider = strings.TrimSpace(s.Provider)
	if s.Provider == "" {
		s.Provider = "custom"
	}
	s.AccessKey = strings.TrimSpace(s.AccessKey)
	s.SecretKey = strings.TrimSpace(s.SecretKey)
	s.Region = strings.TrimSpace(s.Region)
	s.Endpoint = strings.TrimRight(strings.TrimSpace(s.Endpoint), "/")
	s.Bucket = strings.TrimSpace(s.Bucket)
	s.PathPrefix = strings.Trim(strings.TrimSpace(s.PathPrefix), "/")
	s.CDNBase = strings.TrimRight(strings.TrimSpace(s.CDNBase), "/")
	s.CacheControl = strings.TrimSpace(s.CacheControl)
	s.StorageClass = strings.TrimSpace(s.StorageClass)
	s.SyncMode = strings.ToLower(strings.TrimSpace(s.SyncMode))

	s.SignedTTL = max(1, s.SignedTTL)
	s.BatchSize = max(1, s.BatchSize)

	var mimes []string
	for _, m := range strings.Split(s.ExcludeMIME, ",") {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			mimes = append(mimes, m)
		}
	}
	s.ExcludeMIME = strings.Join(mimes, ",")
}

// Validate reports every invalid field at once.
func (s Settings) Validate() error {
	var result *multierror.Error

	if err := ValidateURL("endpoint", s.Endpoint); err != nil {
		result = multierror.Append(result, err)
	}
	if err := ValidateURL("cdn_base", s.CDNBase); err != nil {
		result = multierror.Append(result, err)
	}
	if s.SyncMode != SyncModeManual && s.SyncMode != SyncModeAuto {
		result = multierror.Append(result, fmt.Errorf("sync_mode must be '%s' or '%s'", SyncModeManual, SyncModeAuto))
	}

	return result.ErrorOrNil()
}

// ValidateURL accepts an empty value or an absolute http(s) URL.
func ValidateURL(field, value string) error {
	if value == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", field)
	}
	return nil
}

// ErrMultiBucketDisabled is returned by the per-file bucket operations when
// multi-bucket support is switched off.
var ErrMultiBucketDisabled = apperr.Configuration("Multi-bucket support is disabled")

// MultiBucket reports whether the per-file bucket features are available.
func (s Settings) MultiBucket() bool {
	return s.Enabled && s.MultiBucketEnabled
}

// HasVirtualBucket reports whether the settings describe a usable bucket.
func (s Settings) HasVirtualBucket() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

func (s Settings) SignedTTLDuration() time.Duration {
	return time.Duration(max(1, s.SignedTTL)) * time.Second
}

// PageSize is the sync batch size, never below one.
func (s Settings) PageSize() int {
	return max(1, s.BatchSize)
}

// ACL is the canned ACL applied to uploaded objects.
func (s Settings) ACL() string {
	if s.PrivateBucket {
		return "private"
	}
	return "public-read"
}

// ExcludesMIME reports whether uploads of mimeType must stay local.
// Entries ending in "/*" match a whole type family.
func (s Settings) ExcludesMIME(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" || s.ExcludeMIME == "" {
		return false
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	for _, m := range strings.Split(s.ExcludeMIME, ",") {
		if m == mimeType {
			return true
		}
		if family, ok := strings.CutSuffix(m, "/*"); ok && strings.HasPrefix(mimeType, family+"/") {
			return true
		}
	}
	return false
}

// Redacted returns a copy that is safe to hand to an API client.
func (s Settings) Redacted() Settings {
	if s.SecretKey != "" {
		s.SecretKey = SecretMask
	}
	return s
}
