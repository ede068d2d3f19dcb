package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Metadata: MetadataServerConfig{
			Type:     "sqlite",
			LogLevel: "silent",
			SQLite: MetadataSQLiteConfig{
				Path: "./s3offload.db",
			},
		},

		HTTP: HTTPServerConfig{
			Address:        "127.0.0.1:8420",
			RequestTimeout: "5m",
			JWTSecret:      "",
			NonceTTL:       "12h",
			AllowedOrigins: []string{},
		},

		Uploads: UploadsServerConfig{
			Root:    "./uploads",
			BaseURL: "http://localhost/uploads",
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.log_level", defaults.Metadata.LogLevel)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)

	viper.SetDefault("http.address", defaults.HTTP.Address)
	viper.SetDefault("http.request_timeout", defaults.HTTP.RequestTimeout)
	viper.SetDefault("http.jwt_secret", defaults.HTTP.JWTSecret)
	viper.SetDefault("http.nonce_ttl", defaults.HTTP.NonceTTL)
	viper.SetDefault("http.allowed_origins", defaults.HTTP.AllowedOrigins)

	viper.SetDefault("uploads.root", defaults.Uploads.Root)
	viper.SetDefault("uploads.base_url", defaults.Uploads.BaseURL)
}
