package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ttstats/rrimport/internal/clock/system"
	"github.com/ttstats/rrimport/internal/syncer"
)

// newSyncCmd creates and configures the 'sync' subcommand.
func newSyncCmd() *cobra.Command {
	var (
		startFlag    string
		lookbackDays int
		workers      int
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Imports any recent tournaments missing from the database",
		Long: `Scrapes the results page, filters the discovered documents to the
lookback window, and imports every tournament not already recorded as a
success. Documents are processed concurrently; a failing document never
blocks the rest, but any failure makes the command exit non-zero.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			cfg := syncer.Config{
				Workers:      appInstance.Config.Sync.Workers,
				LookbackDays: appInstance.Config.Sync.LookbackDays,
				DocTimeout:   appInstance.Config.DocTimeout(),
				Force:        force,
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if lookbackDays > 0 {
				cfg.LookbackDays = lookbackDays
			}
			if startFlag != "" {
				start, parseErr := time.Parse("2006-01-02", startFlag)
				if parseErr != nil {
					return fmt.Errorf("parse --start: %w", parseErr)
				}
				cfg.Start = start
			}

			s := syncer.New(
				appInstance.Index,
				appInstance.Fetcher,
				appInstance.Parser,
				appInstance.Importer,
				appInstance.Store,
				system.New(),
				appInstance.Archive,
				cfg,
				appInstance.Logger,
			)

			summary, runErr := s.Run(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(),
				"discovered %d, imported %d, skipped %d, failed %d in %s\n",
				summary.Discovered, summary.Imported, summary.Skipped,
				summary.Failed, summary.Duration.Round(time.Millisecond),
			)
			return runErr
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "window start date (YYYY-MM-DD) overriding the lookback")
	cmd.Flags().IntVar(&lookbackDays, "lookback-days", 0, "override the configured lookback window")
	cmd.Flags().IntVar(&workers, "workers", 0, "override the configured worker count")
	cmd.Flags().BoolVar(&force, "force", false, "re-import tournaments already recorded as successes")

	return cmd
}
