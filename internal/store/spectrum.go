package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"spectra/internal/core"
)

// postgresSpectrumCacheRepo implements SpectrumCacheRepository for PostgreSQL.
type postgresSpectrumCacheRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresSpectrumCacheRepo) query() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Upsert caches an analysis for (topic, topic_date). A re-run overwrites the
// previous record and bumps created_at.
func (r *postgresSpectrumCacheRepo) Upsert(ctx context.Context, topic, topicDate string, record *core.SpectrumRecord) error {
	pointsJSON, err := json.Marshal(record.SpectrumPoints)
	if err != nil {
		return fmt.Errorf("failed to marshal spectrum points: %w", err)
	}
	articlesJSON, err := json.Marshal(record.Articles)
	if err != nil {
		return fmt.Errorf("failed to marshal articles by country: %w", err)
	}

	query := `
		INSERT INTO topic_spectrum_cache (
			topic, spectrum_name, spectrum_description,
			spectrum_points, articles_by_country, topic_date
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (topic, topic_date)
		DO UPDATE SET
			spectrum_name = EXCLUDED.spectrum_name,
			spectrum_description = EXCLUDED.spectrum_description,
			spectrum_points = EXCLUDED.spectrum_points,
			articles_by_country = EXCLUDED.articles_by_country,
			created_at = NOW()
	`
	_, err = r.query().ExecContext(ctx, query,
		topic, record.SpectrumName, record.SpectrumDescription,
		pointsJSON, articlesJSON, topicDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert spectrum cache: %w", err)
	}
	return nil
}

// Get returns the cached record for (topic, topic_date), or nil on a miss.
func (r *postgresSpectrumCacheRepo) Get(ctx context.Context, topic, topicDate string) (*core.SpectrumRecord, error) {
	query := `
		SELECT spectrum_name, spectrum_description, spectrum_points, articles_by_country
		FROM topic_spectrum_cache
		WHERE topic = $1 AND topic_date = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.query().QueryRowContext(ctx, query, topic, topicDate)

	var rec core.SpectrumRecord
	var pointsJSON, articlesJSON []byte
	err := row.Scan(&rec.SpectrumName, &rec.SpectrumDescription, &pointsJSON, &articlesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(pointsJSON, &rec.SpectrumPoints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spectrum points: %w", err)
	}
	if err := json.Unmarshal(articlesJSON, &rec.Articles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal articles by country: %w", err)
	}
	if rec.SpectrumPoints == nil {
		rec.SpectrumPoints = []core.SpectrumPoint{}
	}
	if rec.Articles == nil {
		rec.Articles = map[string]core.CountryArticles{}
	}
	return &rec, nil
}

// TopicsNeedingAnalysis returns topics from the last day with no cached
// analysis for their creation date.
func (r *postgresSpectrumCacheRepo) TopicsNeedingAnalysis(ctx context.Context) ([]CachedTopic, error) {
	query := `
		SELECT DISTINCT dt.topic, DATE(dt.created_at) AS topic_date, dt.created_at
		FROM daily_topics dt
		LEFT JOIN topic_spectrum_cache tsc
			ON dt.topic = tsc.topic AND DATE(dt.created_at) = tsc.topic_date
		WHERE dt.created_at >= NOW() - INTERVAL '1 day'
		AND tsc.topic IS NULL
		ORDER BY dt.created_at DESC
	`
	rows, err := r.query().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []CachedTopic
	for rows.Next() {
		var t CachedTopic
		var d, createdAt sql.NullTime
		if err := rows.Scan(&t.Topic, &d, &createdAt); err != nil {
			return nil, err
		}
		if d.Valid {
			t.TopicDate = d.Time.Format("2006-01-02")
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
