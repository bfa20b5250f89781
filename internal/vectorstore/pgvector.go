package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"spectra/internal/core"
	"spectra/internal/store"
)

// PgVectorAdapter implements Searcher on PostgreSQL with the pgvector
// extension, using the cosine distance operator.
type PgVectorAdapter struct {
	db *sql.DB
}

func NewPgVectorAdapter(db *sql.DB) *PgVectorAdapter {
	return &PgVectorAdapter{db: db}
}

// Search returns articles published inside the date window whose embedded
// title clears the similarity threshold, best match first, joined with the
// publishing paper's country metadata.
func (p *PgVectorAdapter) Search(ctx context.Context, q SearchQuery) ([]core.QueryArticle, error) {
	if q.Limit == 0 {
		q.Limit = 200
	}
	if q.Threshold == 0 {
		q.Threshold = core.SimilarityThreshold
	}

	vectorStr := store.FormatVector(q.Embedding)

	query := `
		SELECT
			a.url,
			COALESCE(a.title_translated, ''),
			a.publish_at,
			COALESCE(NULLIF(a.lang, ''), p.lang),
			p.iso,
			p.country,
			1 - (a.title_embedding <=> $1::vector) AS similarity
		FROM article a
		JOIN paper p ON p.uuid = a.paper_uuid
		WHERE a.publish_at BETWEEN $2 AND $3
		AND a.title_embedding IS NOT NULL
		AND 1 - (a.title_embedding <=> $1::vector) > $4
		ORDER BY similarity DESC
		LIMIT $5
	`

	rows, err := p.db.QueryContext(ctx, query,
		vectorStr, q.DateStart, q.DateEnd, q.Threshold, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var results []core.QueryArticle
	for rows.Next() {
		var r core.QueryArticle
		var publishAt sql.NullTime
		if err := rows.Scan(&r.URL, &r.Title, &publishAt, &r.Lang, &r.ISO, &r.Country, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if publishAt.Valid {
			r.PublishAt = publishAt.Time.Format("2006-01-02")
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}
