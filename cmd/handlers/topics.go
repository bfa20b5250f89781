package handlers

import (
	"github.com/spf13/cobra"

	"spectra/internal/llm"
	"spectra/internal/topics"
)

// NewTopicsCmd creates the topics command for daily topic mining
func NewTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "Mine the day's dominant topics from recent headlines",
		Long: `Cluster the last two days of embedded headlines and label the largest
clusters with short topic names. The labels become the day's
predefined topics, served by /api/topics and analyzed by
'spectra precompute'.`,
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

			return topics.NewMiner(s, client, client.Model()).Run(cmd.Context())
		},
	}
}
