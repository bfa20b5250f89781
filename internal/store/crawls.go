package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"spectra/internal/core"
)

// postgresCrawlRepo implements CrawlRepository for PostgreSQL.
type postgresCrawlRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresCrawlRepo) query() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresCrawlRepo) Create(ctx context.Context, crawl *core.Crawl) error {
	query := `
		INSERT INTO crawl (uuid, paper_uuid, created_at, status, max_articles)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.query().ExecContext(ctx, query,
		crawl.ID.String(), crawl.PaperID, crawl.CreatedAt, int(crawl.Status), crawl.MaxArticles,
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl: %w", err)
	}
	return nil
}

func (r *postgresCrawlRepo) Finish(ctx context.Context, crawl *core.Crawl) error {
	statsJSON, err := json.Marshal(crawl.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal crawl stats: %w", err)
	}

	query := `UPDATE crawl SET status = $2, stats = $3 WHERE uuid = $1`
	_, err = r.query().ExecContext(ctx, query, crawl.ID.String(), int(crawl.Status), statsJSON)
	if err != nil {
		return fmt.Errorf("failed to update crawl: %w", err)
	}
	return nil
}
