package server

import (
	"fmt"

	"github.com/spf13/viper"
)

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log      LogServerConfig      `mapstructure:"log"      yaml:"log"`
	Metadata MetadataServerConfig `mapstructure:"metadata" yaml:"metadata"`
	HTTP     HTTPServerConfig     `mapstructure:"http"     yaml:"http"`
	Uploads  UploadsServerConfig  `mapstructure:"uploads"  yaml:"uploads"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (cfg *BaseServerConfig) Validate() error {
	if cfg.Metadata.Type != "sqlite" {
		return fmt.Errorf("unsupported metadata type '%s'", cfg.Metadata.Type)
	}
	if cfg.Metadata.SQLite.Path == "" {
		return fmt.Errorf("metadata.sqlite.path must not be empty")
	}
	if cfg.Uploads.Root == "" {
		return fmt.Errorf("uploads.root must not be empty")
	}
	return nil
}
