package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var configPaths = []string{".", "./config", "/etc/s3offload", "$HOME/.s3offload"}

func initConfig(path string) error {
	envFiles := []string{".env", ".env.local"}
	for _, envFile := range envFiles {
		// Missing .env files are fine.
		_ = godotenv.Load(envFile)
	}

	if path != "" {
		viper.SetConfigFile(path)
		configDir := filepath.Dir(path)
		for _, envFile := range envFiles {
			_ = godotenv.Load(filepath.Join(configDir, envFile))
		}
	} else {
		viper.SetConfigName("s3offload")
		viper.SetConfigType("yaml")
		for _, configPath := range configPaths {
			viper.AddConfigPath(configPath)
			for _, envFile := range envFiles {
				_ = godotenv.Load(filepath.Join(configPath, envFile))
			}
		}
	}

	viper.SetEnvPrefix("S3OFFLOAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}
