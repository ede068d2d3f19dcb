package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mwantia/s3offload/pkg/discovery"
	"github.com/mwantia/s3offload/pkg/syncer"
)

func NewSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Offload local files",
	}

	cmd.AddCommand(newSyncRunCommand())
	cmd.AddCommand(newSyncFileCommand())

	return cmd
}

func newSyncRunCommand() *cobra.Command {
	var req syncer.Request
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Offload every pending file page by page",
		Long: `Offload every pending file page by page.

Without --force only files that are not yet offloaded are processed.
Interrupting the run stops after the current page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interrupted, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			return withSession(cmd, func(ctx context.Context, s *session) error {
				current, err := s.settings(ctx)
				if err != nil {
					return err
				}
				page := func(ctx context.Context, req syncer.Request) (*syncer.PageResult, error) {
					return s.services.Syncer.Page(ctx, req, current)
				}
				return runPages(ctx, interrupted, req, page, cmd.OutOrStdout(), verbose)
			})
		},
	}

	cmd.Flags().UintVar(&req.BucketID, "bucket", 0, "target bucket id (default bucket when unset)")
	cmd.Flags().BoolVar(&req.Force, "force", false, "re-upload files that are already offloaded")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every processed file")

	return cmd
}

func newSyncFileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file <id>",
		Short: "Offload a single file to the default bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "file id")
			if err != nil {
				return err
			}

			return withSession(cmd, func(ctx context.Context, s *session) error {
				current, err := s.settings(ctx)
				if err != nil {
					return err
				}

				item, err := s.services.Syncer.SyncSingle(ctx, id, current)
				if item != nil {
					if perr := printResult(cmd, item); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}

	addOutputFlag(cmd)

	return cmd
}

func NewDiscoverCommand() *cobra.Command {
	var req discovery.Request
	var all bool

	cmd := &cobra.Command{
		Use:   "discover <bucket-id>",
		Short: "Import objects that already exist in a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "bucket id")
			if err != nil {
				return err
			}
			req.BucketID = id

			return withSession(cmd, func(ctx context.Context, s *session) error {
				current, err := s.settings(ctx)
				if err != nil {
					return err
				}

				for {
					result, err := s.services.Discovery.Discover(ctx, req, current)
					if err != nil {
						return err
					}
					if err := printResult(cmd, result); err != nil {
						return err
					}
					if !all || !result.Truncated || ctx.Err() != nil {
						return nil
					}
					req.ContinuationToken = result.NextToken
				}
			})
		},
	}

	cmd.Flags().BoolVar(&req.SkipExisting, "skip-existing", false, "skip keys that are already registered")
	cmd.Flags().Int32Var(&req.MaxKeys, "max-keys", discovery.DefaultMaxKeys, "objects listed per page")
	cmd.Flags().StringVar(&req.ContinuationToken, "token", "", "continuation token of a previous page")
	cmd.Flags().BoolVar(&all, "all", false, "follow continuation tokens until the listing ends")
	addOutputFlag(cmd)

	return cmd
}

type pageFunc func(ctx context.Context, req syncer.Request) (*syncer.PageResult, error)

// runPages drives page until the run is done. Each page runs on ctx and
// always completes; interrupted is only consulted between pages.
func runPages(ctx context.Context, interrupted context.Context, req syncer.Request, page pageFunc, out io.Writer, verbose bool) error {
	success, failed := 0, 0
	for {
		result, err := page(ctx, req)
		if err != nil {
			return err
		}
		success += result.Success
		failed += result.Failed

		if verbose {
			for _, item := range result.Items {
				fmt.Fprintf(out, "%-8s %6d %s: %s\n", item.Status, item.ID, item.Name, item.Message)
			}
		}
		fmt.Fprintf(out, "Processed %d/%d (%d ok, %d failed)\n", result.Processed, result.Total, success, failed)

		if result.Done {
			break
		}
		if interrupted.Err() != nil {
			return fmt.Errorf("sync interrupted after %d files", result.Processed)
		}
		req.AfterID = result.NextAfter
		req.Offset = int(result.Processed)
	}

	if failed > 0 {
		return fmt.Errorf("%d files failed to sync", failed)
	}
	return nil
}
