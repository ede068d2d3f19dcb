package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the offload settings",
	}

	cmd.AddCommand(newSettingsShowCommand())
	cmd.AddCommand(newSettingsSetCommand())

	return cmd
}

func newSettingsShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				current, err := s.settings(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd, current.Redacted())
			})
		},
	}

	addOutputFlag(cmd)

	return cmd
}

func newSettingsSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Change individual settings",
		Long: `Change individual settings. Values are parsed as JSON when possible,
so enabled=false and batch_size=50 keep their types.`,
		Example: "  s3offload settings set sync_mode=auto private_bucket=true",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseAssignments(args)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(patch)
			if err != nil {
				return err
			}

			return withSession(cmd, func(ctx context.Context, s *session) error {
				next, err := s.services.Settings.Merge(ctx, raw)
				if err != nil {
					return err
				}
				return printResult(cmd, next.Redacted())
			})
		},
	}

	addOutputFlag(cmd)

	return cmd
}

func parseAssignments(args []string) (map[string]any, error) {
	patch := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment '%s', expected key=value", arg)
		}

		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		patch[key] = parsed
	}
	return patch, nil
}
