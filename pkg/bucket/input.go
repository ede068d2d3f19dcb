package bucket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/mwantia/s3offload/pkg/apperr"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/settings"
)

// Input is the administrator-supplied bucket definition. Nil booleans keep
// their default on Add and the current value on Update. An empty or masked
// secret on Update keeps the stored secret.
type Input struct {
	Name         string `json:"name"`
	Label        string `json:"label"`
	Provider     string `json:"provider"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Region       string `json:"region"`
	Endpoint     string `json:"endpoint"`
	UsePathStyle *bool  `json:"use_path_style"`
	PathPrefix   string `json:"path_prefix"`
	CDNBase      string `json:"cdn_base"`
	IsDefault    bool   `json:"is_default"`
	IsActive     *bool  `json:"is_active"`
	AutoSync     bool   `json:"auto_sync"`
}

// DecodeInput parses a JSON bucket definition, rejecting unknown fields.
func DecodeInput(raw []byte) (Input, error) {
	var in Input
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, apperr.Wrap(apperr.KindValidation, "Invalid bucket payload", err)
	}
	return in, nil
}

// Normalize trims the fields and strips the slashes the key and URL
// derivation would otherwise duplicate.
func (in *Input) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Label = strings.TrimSpace(in.Label)
	in.Provider = strings.TrimSpace(in.Provider)
	if in.Provider == "" {
		in.Provider = "custom"
	}
	in.AccessKey = strings.TrimSpace(in.AccessKey)
	in.SecretKey = strings.TrimSpace(in.SecretKey)
	in.Region = strings.TrimSpace(in.Region)
	in.Endpoint = strings.TrimRight(strings.TrimSpace(in.Endpoint), "/")
	in.PathPrefix = strings.Trim(strings.TrimSpace(in.PathPrefix), "/")
	in.CDNBase = strings.TrimRight(strings.TrimSpace(in.CDNBase), "/")
	if in.Label == "" {
		in.Label = in.Name
	}
}

// Validate reports every problem at once. Credentials are only required
// when creating, since Update keeps the stored ones.
func (in Input) Validate(creating bool) error {
	var result *multierror.Error

	if creating {
		if in.Name == "" {
			result = multierror.Append(result, fmt.Errorf("name is required"))
		} else if strings.ContainsAny(in.Name, "/ \t") {
			result = multierror.Append(result, fmt.Errorf("name must not contain slashes or whitespace"))
		}
		if in.AccessKey == "" || in.SecretKey == "" {
			result = multierror.Append(result, fmt.Errorf("access_key and secret_key are required"))
		}
	}
	if err := settings.ValidateURL("endpoint", in.Endpoint); err != nil {
		result = multierror.Append(result, err)
	}
	if err := settings.ValidateURL("cdn_base", in.CDNBase); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid bucket: "+strings.Join(messages(result), "; "), err)
	}
	return nil
}

func messages(result *multierror.Error) []string {
	out := make([]string, 0, len(result.Errors))
	for _, err := range result.Errors {
		out = append(out, err.Error())
	}
	return out
}

func (in Input) model() *models.Bucket {
	m := &models.Bucket{
		Name:         in.Name,
		UsePathStyle: true,
		IsActive:     true,
	}
	in.apply(m)
	return m
}

// apply copies everything except the immutable name onto m.
func (in Input) apply(m *models.Bucket) {
	m.Label = in.Label
	if m.Label == "" {
		m.Label = m.Name
	}
	m.Provider = in.Provider
	if in.AccessKey != "" {
		m.AccessKey = in.AccessKey
	}
	if in.SecretKey != "" && in.SecretKey != settings.SecretMask {
		m.SecretKey = in.SecretKey
	}
	m.Region = in.Region
	m.Endpoint = in.Endpoint
	if in.UsePathStyle != nil {
		m.UsePathStyle = *in.UsePathStyle
	}
	m.PathPrefix = in.PathPrefix
	m.CDNBase = in.CDNBase
	m.IsDefault = in.IsDefault
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	m.AutoSync = in.AutoSync
}
