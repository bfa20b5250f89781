package store

import (
	"context"
	"database/sql"
	"fmt"

	"spectra/internal/core"
)

// postgresReferenceRepo implements ReferenceRepository for PostgreSQL.
type postgresReferenceRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresReferenceRepo) query() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresReferenceRepo) Upsert(ctx context.Context, ref *core.CountryReference) error {
	query := `
		INSERT INTO article_country_reference (
			article_url, source_country_iso, target_country_iso, favorability
		) VALUES ($1, $2, $3, $4)
		ON CONFLICT (article_url, target_country_iso)
		DO UPDATE SET
			favorability = EXCLUDED.favorability,
			source_country_iso = EXCLUDED.source_country_iso
	`
	_, err := r.query().ExecContext(ctx, query,
		ref.ArticleURL, ref.SourceCountryISO, ref.TargetCountryISO, ref.Favorability)
	if err != nil {
		return fmt.Errorf("failed to upsert country reference: %w", err)
	}
	return nil
}

// RefreshComparisons rebuilds the aggregated country_comparisons view.
func (r *postgresReferenceRepo) RefreshComparisons(ctx context.Context) error {
	_, err := r.query().ExecContext(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY country_comparisons`)
	return err
}
