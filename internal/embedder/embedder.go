// Package embedder fills in title embeddings for translated articles.
package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spectra/internal/core"
	"spectra/internal/llm"
	"spectra/internal/logger"
	"spectra/internal/store"
)

// chunkSize is the embedding API's per-request content limit.
const chunkSize = 100

// recentWindow bounds how far back the embedder looks for new titles.
const recentWindow = 48 * time.Hour

// Store is the slice of the persistence layer the embedder needs.
type Store interface {
	Articles() store.ArticleRepository
}

// Embedder embeds translated titles in chunks, committing each chunk
// independently so one bad chunk does not lose the rest.
type Embedder struct {
	store    Store
	embedder llm.Embedder
	log      *slog.Logger
}

func New(s Store, e llm.Embedder) *Embedder {
	return &Embedder{store: s, embedder: e, log: logger.Get()}
}

// Run embeds all recently translated titles that have no embedding yet.
func (e *Embedder) Run(ctx context.Context) error {
	since := time.Now().Add(-recentWindow)
	articles, err := e.store.Articles().ListUnembedded(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to list articles to embed: %w", err)
	}
	if len(articles) == 0 {
		e.log.Info("No articles to embed")
		return nil
	}
	e.log.Info("Starting embedding job", "articles", len(articles))

	for start := 0; start < len(articles); start += chunkSize {
		end := start + chunkSize
		if end > len(articles) {
			end = len(articles)
		}
		chunk := articles[start:end]

		if err := e.embedChunk(ctx, chunk); err != nil {
			e.log.Warn("Skipping failed embedding chunk",
				"offset", start, "size", len(chunk), "error", err)
			continue
		}
		e.log.Info("Embedded chunk", "offset", start, "size", len(chunk))
	}

	e.log.Info("Embedding job finished")
	return nil
}

func (e *Embedder) embedChunk(ctx context.Context, chunk []core.Article) error {
	titles := make([]string, len(chunk))
	for i, a := range chunk {
		titles[i] = a.TitleTranslated
	}

	embeddings, err := e.embedder.EmbedBatch(ctx, titles, llm.TaskRetrievalDocument)
	if err != nil {
		return err
	}
	if len(embeddings) != len(chunk) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(chunk))
	}

	for i, a := range chunk {
		if err := e.store.Articles().SetEmbedding(ctx, a.URL, embeddings[i]); err != nil {
			return fmt.Errorf("failed to store embedding for %s: %w", a.URL, err)
		}
	}
	return nil
}
