package vectorstore

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"spectra/internal/core"
)

// Requires PostgreSQL with pgvector and a populated article table.
func TestPgVectorSearchIntegration(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	adapter := NewPgVectorAdapter(db)

	embedding := make([]float64, core.EmbeddingDimensions)
	embedding[0] = 1

	results, err := adapter.Search(context.Background(), SearchQuery{
		Embedding: embedding,
		DateStart: "2000-01-01",
		DateEnd:   "2100-01-01",
		Threshold: -1, // zero means default, so force accept-all explicitly
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Error("results not ordered by similarity descending")
		}
	}
	for _, r := range results {
		if r.ISO == "" {
			t.Errorf("result %s missing paper metadata", r.URL)
		}
	}
}
