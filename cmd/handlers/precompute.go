package handlers

import (
	"github.com/spf13/cobra"

	"spectra/internal/llm"
	"spectra/internal/spectrum"
	"spectra/internal/vectorstore"
)

// NewPrecomputeCmd creates the precompute command for spectrum analysis
func NewPrecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "precompute",
		Short: "Run spectrum analysis for freshly mined topics",
		Long: `Analyze every topic mined in the last day that has no cached spectrum
yet. Each topic's matching articles are classified onto a derived
viewpoint axis and the result is written to the spectrum cache, so
the query endpoint can serve it without any model calls.`,
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

			analyzer := spectrum.NewAnalyzer(client, client.Model(), client.LightModel())
			searcher := vectorstore.NewPgVectorAdapter(s.DB())
			return spectrum.NewPrecomputer(s, searcher, client, analyzer).Run(cmd.Context())
		},
	}
}
