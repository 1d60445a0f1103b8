package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raoulx24/zam/internal/backend"
	"github.com/raoulx24/zam/internal/buildinfo"
	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/snapshot"
)

func newSnapshotCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [dataset...]",
		Short: "Take a snapshot of the configured datasets now",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := a.setup(args)
			if err != nil {
				return err
			}
			var errs []error
			for _, dp := range p {
				s, err := dp.source.TakeSnapshot(cmd.Context())
				if err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s@%s\n", dp.config.Dataset, s.Name)
			}
			return errors.Join(errs...)
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	var destinations bool

	cmd := &cobra.Command{
		Use:   "list [dataset...]",
		Short: "List managed snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := a.setup(args)
			if err != nil {
				return err
			}
			var errs []error
			for _, dp := range p {
				adapters := []*backend.Adapter{dp.source}
				if destinations {
					adapters = append(adapters, dp.destinations...)
				}
				for _, ad := range adapters {
					snaps, err := ad.Snapshots(cmd.Context())
					if err != nil {
						errs = append(errs, err)
						continue
					}
					printSnapshots(cmd, ad.String(), snaps)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVarP(&destinations, "destinations", "d", false, "also list the replicas on every destination")
	return cmd
}

func printSnapshots(cmd *cobra.Command, where string, snaps []snapshot.Snapshot) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s (%d)\n", where, len(snaps))
	for _, s := range snaps {
		fmt.Fprintf(w, "  %s\t%s\n", s.Name, s.Created.Format(time.RFC3339))
	}
}

func newPruneCommand(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune [dataset...]",
		Short: "Delete the snapshots retention no longer keeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, log, err := a.setup(args)
			if err != nil {
				return err
			}
			var errs []error
			for _, dp := range p {
				if len(dp.prunes) == 0 {
					log.Info("pruning disabled", "dataset", dp.config.Dataset)
					continue
				}
				for _, t := range dp.prunes {
					doomed, err := t.Doomed(cmd.Context())
					if err != nil {
						errs = append(errs, err)
						continue
					}
					for _, s := range doomed {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Name(), s.Name)
					}
					if dryRun || len(doomed) == 0 {
						continue
					}
					if err := t.Run(cmd.Context()); err != nil {
						log.Error("prune failed", "task", t.Name(), logging.ErrorKey, err)
						errs = append(errs, err)
					}
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "only print what would be deleted")
	return cmd
}

func newVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(buildinfo.Get())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "zam", buildinfo.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
