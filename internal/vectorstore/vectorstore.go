// Package vectorstore provides semantic title search over the pgvector
// embedding column.
package vectorstore

import (
	"context"

	"spectra/internal/core"
)

// SearchQuery describes one semantic search over embedded titles.
type SearchQuery struct {
	Embedding []float64
	DateStart string // YYYY-MM-DD inclusive
	DateEnd   string // YYYY-MM-DD inclusive
	// Threshold is the minimum cosine similarity; Limit caps results.
	Threshold float64
	Limit     int
}

// Searcher finds articles semantically similar to a query embedding.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]core.QueryArticle, error)
}
