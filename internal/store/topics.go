package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"spectra/internal/core"
)

// postgresTopicRepo implements TopicRepository for PostgreSQL.
type postgresTopicRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresTopicRepo) query() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertBatch writes a mined topic batch under a single timestamp so the
// whole batch shares one topic_date.
func (r *postgresTopicRepo) InsertBatch(ctx context.Context, topics []string, createdAt time.Time) error {
	for _, topic := range topics {
		_, err := r.query().ExecContext(ctx,
			`INSERT INTO daily_topics (topic, created_at) VALUES ($1, $2)`,
			topic, createdAt)
		if err != nil {
			return fmt.Errorf("failed to insert topic %q: %w", topic, err)
		}
	}
	return nil
}

// TopicDate returns the most recent creation date of a predefined topic as
// YYYY-MM-DD. The second return is false when the topic is not predefined.
func (r *postgresTopicRepo) TopicDate(ctx context.Context, topic string) (string, bool, error) {
	var d time.Time
	err := r.query().QueryRowContext(ctx, `
		SELECT DATE(created_at)
		FROM daily_topics
		WHERE topic = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, topic).Scan(&d)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return d.Format("2006-01-02"), true, nil
}

func (r *postgresTopicRepo) ListRecent(ctx context.Context, days int) ([]core.DailyTopic, error) {
	query := `
		SELECT id, topic, created_at
		FROM daily_topics
		WHERE created_at >= NOW() - $1 * INTERVAL '1 day'
		ORDER BY created_at DESC, id
	`
	rows, err := r.query().QueryContext(ctx, query, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []core.DailyTopic
	for rows.Next() {
		var t core.DailyTopic
		if err := rows.Scan(&t.ID, &t.Topic, &t.CreatedAt); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
