package server

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwantia/s3offload/internal/agent"
	config "github.com/mwantia/s3offload/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the S3 offload agent",
		Long: `Start the S3 offload agent.

The agent serves the admin API used to manage buckets, settings and sync
runs. It needs http.jwt_secret to be configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			return agent.NewAgent(cfg).Serve(cmd.Context())
		},
	}

	cmd.Flags().String("address", "", "listen address of the admin API")
	cmd.Flags().String("uploads-root", "", "directory holding the uploaded files")

	viper.BindPFlag("http.address", cmd.Flags().Lookup("address"))
	viper.BindPFlag("uploads.root", cmd.Flags().Lookup("uploads-root"))

	return cmd
}
