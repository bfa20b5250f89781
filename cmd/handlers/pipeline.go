package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"spectra/internal/config"
	"spectra/internal/embedder"
	"spectra/internal/llm"
	"spectra/internal/logger"
	"spectra/internal/spectrum"
	"spectra/internal/topics"
	"spectra/internal/translate"
	"spectra/internal/vectorstore"
)

// NewPipelineCmd creates the pipeline command that chains the daily stages
func NewPipelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Run translate, embed, topics and precompute in order",
		Long: `Run the daily processing stages in their natural order:

  1. translate  headlines into English
  2. embed      translated headlines
  3. topics     mine the day's dominant topics
  4. precompute spectrum analyses for the new topics

A failing stage is logged and the remaining stages still run, since
each stage only consumes whatever its predecessors managed to
produce. Crawling is separate; run 'spectra crawl' first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context())
		},
	}
}

func runPipeline(ctx context.Context) error {
	log := logger.Get()
	cfg := config.Get()

	s, err := connectStore()
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := llm.NewClient(ctx)
	if err != nil {
		return err
	}

	var errs []error
	run := func(stage string, fn func() error) {
		log.Info("Pipeline stage starting", "stage", stage)
		if err := fn(); err != nil {
			log.Error("Pipeline stage failed", "stage", stage, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", stage, err))
		}
	}

	run("translate", func() error {
		translator, err := translate.NewGoogleTranslator(ctx, cfg.Translate.ProjectID, cfg.Translate.APIKey)
		if err != nil {
			return err
		}
		defer translator.Close()
		return translate.NewService(s, translator).Run(ctx)
	})

	run("embed", func() error {
		return embedder.New(s, client).Run(ctx)
	})

	run("topics", func() error {
		return topics.NewMiner(s, client, client.Model()).Run(ctx)
	})

	run("precompute", func() error {
		analyzer := spectrum.NewAnalyzer(client, client.Model(), client.LightModel())
		searcher := vectorstore.NewPgVectorAdapter(s.DB())
		return spectrum.NewPrecomputer(s, searcher, client, analyzer).Run(ctx)
	})

	return errors.Join(errs...)
}
