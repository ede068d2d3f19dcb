package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	config "github.com/mwantia/s3offload/internal/config/server"
	"github.com/mwantia/s3offload/pkg/auth"
)

func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage admin API tokens",
	}

	cmd.AddCommand(newTokenIssueCommand())

	return cmd
}

func newTokenIssueCommand() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an admin token signed with http.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}
			if cfg.HTTP.JWTSecret == "" {
				return errors.New("http.jwt_secret is not configured")
			}

			authenticator, err := auth.New(cfg.HTTP.JWTSecret)
			if err != nil {
				return err
			}
			token, expires, err := authenticator.Issue(subject, auth.RoleAdmin, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "Expires at %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
