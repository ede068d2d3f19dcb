package server

// MetadataServerConfig holds metadata store configuration
type MetadataServerConfig struct {
	Type     string               `mapstructure:"type"      yaml:"type"`
	LogLevel string               `mapstructure:"log_level" yaml:"log_level"`
	SQLite   MetadataSQLiteConfig `mapstructure:"sqlite"    yaml:"sqlite"`
}

// MetadataSQLiteConfig holds SQLite-specific configuration
type MetadataSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}
