package handlers

import (
	"github.com/spf13/cobra"

	"spectra/internal/config"
	"spectra/internal/translate"
)

// NewTranslateCmd creates the translate command for headline translation
func NewTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate",
		Short: "Translate untranslated headlines into English",
		Long: `Translate every saved headline that has no English translation yet.

Headlines already in English are copied verbatim. Each paper is
translated inside its own transaction, so one failing paper never
loses another paper's work.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()

			s, err := connectStore()
			if err != nil {
				return err
			}
			defer s.Close()

			translator, err := translate.NewGoogleTranslator(cmd.Context(),
				cfg.Translate.ProjectID, cfg.Translate.APIKey)
			if err != nil {
				return err
			}
			defer translator.Close()

			return translate.NewService(s, translator).Run(cmd.Context())
		},
	}
}
