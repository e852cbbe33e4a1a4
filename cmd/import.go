package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ttstats/rrimport/internal/importer"
	"github.com/ttstats/rrimport/internal/index"
	"github.com/ttstats/rrimport/internal/rr"
)

// newImportCmd creates and configures the 'import' subcommand.
func newImportCmd() *cobra.Command {
	var (
		kindFlag string
		dateFlag string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "import LOCATOR",
		Short: "Imports a single result document",
		Long: `Runs one document through the pipeline. The locator may be a document
name relative to the configured results site, an absolute URL, or a path
to a local file. Unless --force=false, an existing successful import for
the same date is replaced.`,
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			locator := args[0]

			cand, err := resolveCandidate(locator, kindFlag, dateFlag)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), appInstance.Config.DocTimeout())
			defer cancel()

			data, err := appInstance.Fetcher.Fetch(ctx, cand.Locator, cand.Kind)
			if err != nil {
				return fmt.Errorf("fetch document: %w", err)
			}

			result := appInstance.Importer.Import(ctx, cand, data, force)
			switch result.Status {
			case importer.StatusImported:
				fmt.Fprintf(cmd.OutOrStdout(),
					"imported %s: %d groups, %d players, %d matches\n",
					result.Date.Format("2006-01-02"),
					result.Counts.Groups, result.Counts.Players, result.Counts.Matches,
				)
				return nil
			case importer.StatusSkipped:
				fmt.Fprintf(cmd.OutOrStdout(),
					"skipped %s: already imported\n", result.Date.Format("2006-01-02"))
				return nil
			default:
				return fmt.Errorf("import document: %w", result.Err)
			}
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "document kind (html, pdf, pdf_legacy); classified from the locator when empty")
	cmd.Flags().StringVar(&dateFlag, "date", "", "tournament date (YYYY-MM-DD) when the document carries none")
	cmd.Flags().BoolVar(&force, "force", true, "replace an existing successful import for the same date")

	return cmd
}

// resolveCandidate builds the candidate for a manually named document,
// classifying by locator shape unless the kind is given explicitly.
func resolveCandidate(locator, kindFlag, dateFlag string) (rr.Candidate, error) {
	cand, ok := index.Classify(locator)
	if !ok {
		cand = rr.Candidate{Locator: locator}
	}

	switch kindFlag {
	case "":
		if cand.Kind == "" {
			return rr.Candidate{}, fmt.Errorf("cannot classify %q, pass --kind", locator)
		}
	case string(rr.KindHTML):
		cand.Kind = rr.KindHTML
	case string(rr.KindPDF):
		cand.Kind = rr.KindPDF
	case string(rr.KindLegacyPDF):
		cand.Kind = rr.KindLegacyPDF
	default:
		return rr.Candidate{}, fmt.Errorf("unknown kind %q", kindFlag)
	}

	if dateFlag != "" {
		date, err := time.Parse("2006-01-02", dateFlag)
		if err != nil {
			return rr.Candidate{}, fmt.Errorf("parse --date: %w", err)
		}
		cand.Date = date
	}
	return cand, nil
}
