package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mwantia/s3offload/internal/agent"
	"github.com/mwantia/s3offload/internal/api"
	config "github.com/mwantia/s3offload/internal/config/server"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/settings"
)

// session is a store opened for a single command invocation.
type session struct {
	cfg      *config.BaseServerConfig
	store    *store.SQLiteStore
	services api.Services
	log      log.LoggerService
}

// settings loads the snapshot that the whole command runs against.
func (s *session) settings(ctx context.Context) (settings.Settings, error) {
	return s.services.Settings.Load(ctx)
}

func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	ctx := cmd.Context()
	st, err := agent.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := log.NewLoggerServiceTo("s3offload", cfg.Log, cmd.ErrOrStderr())
	services, err := agent.BuildServices(cfg, st, logger)
	if err != nil {
		return err
	}

	return fn(ctx, &session{
		cfg:      cfg,
		store:    st,
		services: services,
		log:      logger,
	})
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "json", "output format (json, yaml)")
}

func printResult(cmd *cobra.Command, v any) error {
	format := "json"
	if f := cmd.Flags().Lookup("output"); f != nil {
		format = f.Value.String()
	}

	out := cmd.OutOrStdout()
	switch format {
	case "yaml":
		// Round-trip through JSON so the yaml output uses the json field names.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		return enc.Encode(generic)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format '%s'", format)
	}
}

func parseID(raw, name string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s '%s'", name, raw)
	}
	return uint(id), nil
}
