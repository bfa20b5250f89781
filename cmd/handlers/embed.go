package handlers

import (
	"github.com/spf13/cobra"

	"spectra/internal/embedder"
	"spectra/internal/llm"
)

// NewEmbedCmd creates the embed command for headline embedding
func NewEmbedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed",
		Short: "Embed translated headlines for semantic search",
		Long: `Embed every recently translated headline that has no embedding yet.

Embeddings power both the query endpoint and daily topic mining, so
this stage should run after every translate run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connectStore()
			if err != nil {
				return err
			}
			defer s.Close()

			client, err := llm.NewClient(cmd.Context())
			if err != nil {
				return err
			}

			return embedder.New(s, client).Run(cmd.Context())
		},
	}
}
