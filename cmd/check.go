package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/scaffold/internal/types"
	"github.com/conneroisu/scaffold/internal/watcher"
)

func newValidateCmd(a *app) *cobra.Command {
	var record bool

	cmd := &cobra.Command{
		Use:     "validate [path]",
		Aliases: []string{"check"},
		Short:   "Check a project against its applied templates",
		Long: `Find the project manifest at or above path (default: the working directory),
recompute every expected folder, file and rule of the active templates and
report what is missing, misplaced or forbidden.

The command exits with status 1 when the project is invalid.

Examples:
  scaffold validate
  scaffold validate ./shop -o json
  scaffold validate --record      # also log the check in the manifest history`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			report, err := a.engine.ValidateProject(ctx, pathArg(args))
			if err != nil {
				return err
			}
			if record {
				if err := a.engine.RecordCheck(ctx, report); err != nil {
					a.logger.Warn(ctx, err, "cannot record check in manifest history")
				}
			}

			if err := a.write(cmd.OutOrStdout(), report, func(w io.Writer, st styles) error {
				return writeValidationText(w, st, report)
			}); err != nil {
				return err
			}
			if !report.Valid {
				return errInvalid
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&record, "record", false, "append a check entry to the manifest history")

	return cmd
}

func newFixCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "fix [path]",
		Short: "Restore missing folders and files",
		Long: `Validate the project and apply every automatic fix: missing folders are
created and missing files are written from their template definitions.
Errors that need a person are listed and left alone.

The command exits with status 1 when errors remain.

Examples:
  scaffold fix --dry-run   # show what would change
  scaffold fix`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.engine.FixProject(cmd.Context(), pathArg(args), dryRun)
			if err != nil {
				return err
			}

			if err := a.write(cmd.OutOrStdout(), report, func(w io.Writer, st styles) error {
				return writeFixText(w, st, report)
			}); err != nil {
				return err
			}
			if !report.Valid {
				return errInvalid
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report fixes without writing anything")

	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch [path]",
		Aliases: []string{"w"},
		Short:   "Revalidate the project whenever files change",
		Long: `Validate the project once, then watch its directory tree and validate again
after each burst of changes. Press Ctrl+C to stop.

Paths matching watch.ignore patterns in the configuration are not watched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd.OutOrStdout(), pathArg(args))
		},
	}

	return cmd
}

func (a *app) watch(ctx context.Context, out io.Writer, path string) error {
	root, _, err := a.engine.FindManifest(ctx, path)
	if err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(a.cfg.Watch.Debounce, a.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoTempFilter)
	if len(a.cfg.Watch.Ignore) > 0 {
		fw.AddFilter(watcher.IgnoreFilter(root, a.cfg.Watch.Ignore))
	}
	if err := fw.AddRecursive(root); err != nil {
		_ = fw.Stop()
		return err
	}

	show := func(report *types.ValidationReport, err error) {
		if err != nil {
			a.logger.Error(ctx, err, "validation failed", "project", root)
			return
		}
		if werr := a.write(out, report, func(w io.Writer, st styles) error {
			return writeValidationText(w, st, report)
		}); werr != nil {
			a.logger.Error(ctx, werr, "cannot write report")
		}
	}

	revalidate := watcher.NewRevalidator(a.engine.ValidateProject, a.logger)
	fw.AddHandler(revalidate.Handler(root, show))

	show(a.engine.ValidateProject(ctx, root))

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}
	fmt.Fprintf(out, "watching %s\n", root)

	<-ctx.Done()
	return fw.Stop()
}
