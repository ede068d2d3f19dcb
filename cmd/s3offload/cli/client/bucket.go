package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/s3offload/pkg/bucket"
)

func NewBucketCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Manage offload buckets",
		Long:  "List, create, update or remove the buckets files are offloaded to.",
	}

	cmd.AddCommand(newBucketListCommand())
	cmd.AddCommand(newBucketAddCommand())
	cmd.AddCommand(newBucketUpdateCommand())
	cmd.AddCommand(newBucketRemoveCommand())
	cmd.AddCommand(newBucketDefaultCommand())

	return cmd
}

func newBucketListCommand() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List configured buckets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				buckets, err := s.services.Registry.List(ctx, activeOnly)
				if err != nil {
					return err
				}
				for i := range buckets {
					buckets[i] = buckets[i].Redacted()
				}
				return printResult(cmd, buckets)
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "only list active buckets")
	addOutputFlag(cmd)

	return cmd
}

// bucketFlags registers the editable bucket fields on cmd.
func bucketFlags(cmd *cobra.Command, in *bucket.Input) {
	cmd.Flags().StringVar(&in.Label, "label", "", "display label")
	cmd.Flags().StringVar(&in.Provider, "provider", "", "provider (aws, minio, custom, ...)")
	cmd.Flags().StringVar(&in.AccessKey, "access-key", "", "access key")
	cmd.Flags().StringVar(&in.SecretKey, "secret-key", "", "secret key")
	cmd.Flags().StringVar(&in.Region, "region", "", "region")
	cmd.Flags().StringVar(&in.Endpoint, "endpoint", "", "S3 endpoint URL")
	cmd.Flags().StringVar(&in.PathPrefix, "prefix", "", "key prefix for offloaded files")
	cmd.Flags().StringVar(&in.CDNBase, "cdn", "", "CDN base URL")
	cmd.Flags().BoolVar(&in.IsDefault, "default", false, "make this the default bucket")
	cmd.Flags().BoolVar(&in.AutoSync, "auto-sync", false, "include in automatic sync")
	cmd.Flags().Bool("path-style", true, "use path-style addressing")
	cmd.Flags().Bool("active", true, "bucket is active")
}

// applyBoolFlags copies the tri-state flags that were set explicitly.
func applyBoolFlags(cmd *cobra.Command, in *bucket.Input) {
	if cmd.Flags().Changed("path-style") {
		v, _ := cmd.Flags().GetBool("path-style")
		in.UsePathStyle = &v
	}
	if cmd.Flags().Changed("active") {
		v, _ := cmd.Flags().GetBool("active")
		in.IsActive = &v
	}
}

func newBucketAddCommand() *cobra.Command {
	var in bucket.Input

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			applyBoolFlags(cmd, &in)

			return withSession(cmd, func(ctx context.Context, s *session) error {
				b, err := s.services.Registry.Add(ctx, in)
				if err != nil {
					return err
				}
				return printResult(cmd, b.Redacted())
			})
		},
	}

	bucketFlags(cmd, &in)
	addOutputFlag(cmd)

	return cmd
}

func newBucketUpdateCommand() *cobra.Command {
	var in bucket.Input

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a bucket",
		Long:  "Update a bucket. Fields without a flag keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "bucket id")
			if err != nil {
				return err
			}

			return withSession(cmd, func(ctx context.Context, s *session) error {
				current, err := s.services.Registry.Get(ctx, id)
				if err != nil {
					return err
				}

				next := inputFrom(current)
				flags := cmd.Flags()
				override := func(name string, dst *string, value string) {
					if flags.Changed(name) {
						*dst = value
					}
				}
				override("label", &next.Label, in.Label)
				override("provider", &next.Provider, in.Provider)
				override("access-key", &next.AccessKey, in.AccessKey)
				override("secret-key", &next.SecretKey, in.SecretKey)
				override("region", &next.Region, in.Region)
				override("endpoint", &next.Endpoint, in.Endpoint)
				override("prefix", &next.PathPrefix, in.PathPrefix)
				override("cdn", &next.CDNBase, in.CDNBase)
				if flags.Changed("default") {
					next.IsDefault = in.IsDefault
				}
				if flags.Changed("auto-sync") {
					next.AutoSync = in.AutoSync
				}
				applyBoolFlags(cmd, &next)

				b, err := s.services.Registry.Update(ctx, id, next)
				if err != nil {
					return err
				}
				return printResult(cmd, b.Redacted())
			})
		},
	}

	bucketFlags(cmd, &in)
	addOutputFlag(cmd)

	return cmd
}

// inputFrom seeds an update with the stored values. The secret is left
// empty so the stored one is kept unless a new one is given.
func inputFrom(b *bucket.Config) bucket.Input {
	return bucket.Input{
		Name:         b.Name,
		Label:        b.Label,
		Provider:     b.Provider,
		Region:       b.Region,
		Endpoint:     b.Endpoint,
		UsePathStyle: &b.UsePathStyle,
		PathPrefix:   b.PathPrefix,
		CDNBase:      b.CDNBase,
		IsDefault:    b.IsDefault,
		IsActive:     &b.IsActive,
		AutoSync:     b.AutoSync,
	}
}

func newBucketRemoveCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a bucket",
		Long:  "Removes the bucket from the registry. Objects already stored in it are left untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "bucket id")
			if err != nil {
				return err
			}
			if !confirm {
				return fmt.Errorf("refusing to remove bucket %d without --yes", id)
			}

			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := s.services.Registry.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed bucket %d\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "confirm the removal")

	return cmd
}

func newBucketDefaultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "default <id>",
		Short: "Make a bucket the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "bucket id")
			if err != nil {
				return err
			}

			return withSession(cmd, func(ctx context.Context, s *session) error {
				b, err := s.services.Registry.SetDefault(ctx, id)
				if err != nil {
					return err
				}
				return printResult(cmd, b.Redacted())
			})
		},
	}

	addOutputFlag(cmd)

	return cmd
}
