package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"spectra/internal/registry"
)

// NewSyncCmd creates the sync command for loading the newspaper registry
func NewSyncCmd() *cobra.Command {
	var (
		file            string
		pruneCategories bool
		prunePapers     bool
		dryRun          bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the newspaper declaration file into the database",
		Long: `Sync declared newspapers and their category pages into the database.

Papers are identified by a stable hash of their URL, so re-running sync
with the same file is idempotent. Pruning removes papers or category
pages that are no longer declared.

Examples:
  # Load declarations
  spectra sync --file papers.json

  # Remove undeclared papers and categories too
  spectra sync --file papers.json --prune-papers --prune-categories

  # See what would change without writing anything
  spectra sync --file papers.json --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open declaration file: %w", err)
			}
			defer f.Close()

			decls, err := registry.Load(f)
			if err != nil {
				return err
			}

			s, err := connectStore()
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := registry.New(s).Sync(cmd.Context(), decls, registry.SyncOptions{
				PruneCategories: pruneCategories,
				PrunePapers:     prunePapers,
				DryRun:          dryRun,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Synced %d papers and %d categories (pruned %d papers, %d categories)\n",
				result.Upserted, result.Categories, result.PrunedPapers, result.PrunedCategories)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "papers.json", "newspaper declaration file")
	cmd.Flags().BoolVar(&pruneCategories, "prune-categories", false, "remove category pages not in the declaration")
	cmd.Flags().BoolVar(&prunePapers, "prune-papers", false, "remove papers not in the declaration")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run every statement, then roll back")

	return cmd
}
