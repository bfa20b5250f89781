package spectrum

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spectra/internal/core"
	"spectra/internal/llm"
	"spectra/internal/logger"
	"spectra/internal/store"
	"spectra/internal/vectorstore"
)

// searchWindowDays is how far back the precompute job looks for articles.
const searchWindowDays = 3

// topicPause spaces out consecutive topic analyses to stay under rate limits.
const topicPause = 2 * time.Second

// Store is the persistence surface the precompute job needs.
type Store interface {
	Spectra() store.SpectrumCacheRepository
}

// Precomputer analyzes every freshly mined topic that has no cached
// spectrum yet and writes the results to the cache.
type Precomputer struct {
	store    Store
	searcher vectorstore.Searcher
	embedder llm.Embedder
	analyzer *Analyzer
	pause    time.Duration
	log      *slog.Logger
}

func NewPrecomputer(s Store, searcher vectorstore.Searcher, embedder llm.Embedder, analyzer *Analyzer) *Precomputer {
	return &Precomputer{
		store:    s,
		searcher: searcher,
		embedder: embedder,
		analyzer: analyzer,
		pause:    topicPause,
		log:      logger.Get(),
	}
}

// Run processes all topics needing analysis. Per-topic failures are logged
// and counted but never abort the run.
func (p *Precomputer) Run(ctx context.Context) error {
	topics, err := p.store.Spectra().TopicsNeedingAnalysis(ctx)
	if err != nil {
		return fmt.Errorf("failed to list topics needing analysis: %w", err)
	}
	if len(topics) == 0 {
		p.log.Info("No topics need spectrum analysis")
		return nil
	}
	p.log.Info("Precomputing spectrum analyses", "topics", len(topics))

	var succeeded, failed int
	for i, topic := range topics {
		if i > 0 {
			select {
			case <-time.After(p.pause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := p.processTopic(ctx, topic); err != nil {
			p.log.Error("Topic analysis failed", "topic", topic.Topic, "error", err)
			failed++
			continue
		}
		succeeded++
	}

	p.log.Info("Precompute finished", "succeeded", succeeded, "failed", failed)
	return nil
}

func (p *Precomputer) processTopic(ctx context.Context, topic store.CachedTopic) error {
	embedding, err := p.embedder.EmbedBatch(ctx, []string{topic.Topic}, llm.TaskRetrievalQuery)
	if err != nil {
		return fmt.Errorf("failed to embed topic: %w", err)
	}

	now := time.Now()
	articles, err := p.searcher.Search(ctx, vectorstore.SearchQuery{
		Embedding: embedding[0],
		DateStart: now.AddDate(0, 0, -searchWindowDays).Format("2006-01-02"),
		DateEnd:   now.Format("2006-01-02"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	articles = FilterCountryCoverage(articles, core.MinArticlesPerCountry)
	if len(articles) == 0 {
		p.log.Info("Skipping topic with too little coverage", "topic", topic.Topic)
		return nil
	}

	record, err := p.analyzer.Analyze(ctx, articles)
	if err != nil {
		return err
	}
	if err := p.store.Spectra().Upsert(ctx, topic.Topic, topic.TopicDate, record); err != nil {
		return fmt.Errorf("failed to cache spectrum: %w", err)
	}
	p.log.Info("Cached spectrum analysis", "topic", topic.Topic, "articles", len(articles))
	return nil
}

// FilterCountryCoverage drops articles from countries with fewer than min
// matching articles, so single-paper noise never drives an analysis.
func FilterCountryCoverage(articles []core.QueryArticle, min int) []core.QueryArticle {
	counts := map[string]int{}
	for _, a := range articles {
		counts[a.ISO]++
	}
	out := articles[:0:0]
	for _, a := range articles {
		if counts[a.ISO] >= min {
			out = append(out, a)
		}
	}
	return out
}
