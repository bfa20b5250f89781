package handlers

import (
	"github.com/spf13/cobra"

	"spectra/internal/llm"
	"spectra/internal/relations"
)

// NewRelationsCmd creates the relations command for country extraction
func NewRelationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relations",
		Short: "Extract which foreign country each headline is about",
		Long: `Classify recent translated headlines by which foreign country they
discuss and the sentiment towards it, then refresh the aggregated
country comparison view.`,
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

			return relations.NewExtractor(s, client, client.LightModel()).Run(cmd.Context())
		},
	}
}
