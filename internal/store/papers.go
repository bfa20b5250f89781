package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"spectra/internal/core"
)

// postgresPaperRepo implements PaperRepository for PostgreSQL.
type postgresPaperRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresPaperRepo) query() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresPaperRepo) Upsert(ctx context.Context, paper *core.Paper) error {
	query := `
		INSERT INTO paper (uuid, url, country, iso, lang, whitelist)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uuid) DO UPDATE SET
			url = EXCLUDED.url,
			country = EXCLUDED.country,
			iso = EXCLUDED.iso,
			lang = EXCLUDED.lang,
			whitelist = EXCLUDED.whitelist
	`
	_, err := r.query().ExecContext(ctx, query,
		paper.ID, paper.URL, paper.Country, paper.ISO, paper.Lang,
		pq.Array(paper.Whitelist),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert paper: %w", err)
	}
	return nil
}

func (r *postgresPaperRepo) UpsertCategory(ctx context.Context, paperID, url string) error {
	query := `
		INSERT INTO category_set (paper_uuid, url)
		VALUES ($1, $2)
		ON CONFLICT (paper_uuid, url) DO NOTHING
	`
	_, err := r.query().ExecContext(ctx, query, paperID, url)
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

func (r *postgresPaperRepo) PruneCategories(ctx context.Context, paperID string, keep []string) (int64, error) {
	query := `DELETE FROM category_set WHERE paper_uuid = $1 AND url <> ALL($2)`
	res, err := r.query().ExecContext(ctx, query, paperID, pq.Array(keep))
	if err != nil {
		return 0, fmt.Errorf("failed to prune categories: %w", err)
	}
	return res.RowsAffected()
}

func (r *postgresPaperRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.query().QueryContext(ctx, `SELECT uuid FROM paper`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresPaperRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	// Articles, crawls and categories cascade with the paper.
	_, err := r.query().ExecContext(ctx, `DELETE FROM paper WHERE uuid = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to delete papers: %w", err)
	}
	return nil
}

func (r *postgresPaperRepo) GetAll(ctx context.Context) ([]core.Paper, error) {
	query := `
		SELECT p.uuid, p.url, p.country, p.iso, p.lang, p.whitelist,
			   COALESCE(array_agg(cs.url) FILTER (WHERE cs.url IS NOT NULL), '{}')
		FROM paper p
		LEFT JOIN category_set cs ON cs.paper_uuid = p.uuid
		GROUP BY p.uuid, p.url, p.country, p.iso, p.lang, p.whitelist
		ORDER BY p.url
	`
	rows, err := r.query().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []core.Paper
	for rows.Next() {
		var p core.Paper
		if err := rows.Scan(&p.ID, &p.URL, &p.Country, &p.ISO, &p.Lang,
			pq.Array(&p.Whitelist), pq.Array(&p.CategoryURLs)); err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

func (r *postgresPaperRepo) GetByURL(ctx context.Context, url string) (*core.Paper, error) {
	return r.getOne(ctx, `WHERE p.url = $1`, url)
}

func (r *postgresPaperRepo) Get(ctx context.Context, id string) (*core.Paper, error) {
	return r.getOne(ctx, `WHERE p.uuid = $1`, id)
}

func (r *postgresPaperRepo) getOne(ctx context.Context, where string, arg interface{}) (*core.Paper, error) {
	query := `
		SELECT p.uuid, p.url, p.country, p.iso, p.lang, p.whitelist,
			   COALESCE(array_agg(cs.url) FILTER (WHERE cs.url IS NOT NULL), '{}')
		FROM paper p
		LEFT JOIN category_set cs ON cs.paper_uuid = p.uuid
		` + where + `
		GROUP BY p.uuid, p.url, p.country, p.iso, p.lang, p.whitelist
	`
	row := r.query().QueryRowContext(ctx, query, arg)

	var p core.Paper
	err := row.Scan(&p.ID, &p.URL, &p.Country, &p.ISO, &p.Lang,
		pq.Array(&p.Whitelist), pq.Array(&p.CategoryURLs))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
