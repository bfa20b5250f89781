package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"spectra/internal/core"
)

// postgresArticleRepo implements ArticleRepository for PostgreSQL.
type postgresArticleRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresArticleRepo) query() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresArticleRepo) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := r.query().QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM article WHERE url = $1)`, url).Scan(&exists)
	return exists, err
}

func (r *postgresArticleRepo) Create(ctx context.Context, article *core.Article, overwrite bool) error {
	conflict := `ON CONFLICT (url) DO NOTHING`
	if overwrite {
		conflict = `
		ON CONFLICT (url) DO UPDATE SET
			img_url = EXCLUDED.img_url,
			title = EXCLUDED.title,
			lang = EXCLUDED.lang,
			publish_at = EXCLUDED.publish_at,
			paper_uuid = EXCLUDED.paper_uuid,
			crawl_uuid = EXCLUDED.crawl_uuid`
	}

	query := `
		INSERT INTO article (url, img_url, title, lang, publish_at, paper_uuid, crawl_uuid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	` + conflict

	_, err := r.query().ExecContext(ctx, query,
		article.URL, article.ImgURL, article.Title, article.Lang,
		article.PublishAt, article.PaperID, article.CrawlID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

func (r *postgresArticleRepo) ListUntranslated(ctx context.Context, paperID string) ([]core.Article, error) {
	query := `
		SELECT a.url, a.lang, COALESCE(a.title, ''), a.paper_uuid
		FROM article a
		JOIN paper p ON p.uuid = a.paper_uuid
		WHERE a.title_translated IS NULL
		AND p.uuid = $1
	`
	rows, err := r.query().QueryContext(ctx, query, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		var a core.Article
		if err := rows.Scan(&a.URL, &a.Lang, &a.Title, &a.PaperID); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (r *postgresArticleRepo) SetTranslation(ctx context.Context, url, titleTranslated string) error {
	_, err := r.query().ExecContext(ctx,
		`UPDATE article SET title_translated = $2 WHERE url = $1`, url, titleTranslated)
	return err
}

func (r *postgresArticleRepo) ListUnembedded(ctx context.Context, since time.Time) ([]core.Article, error) {
	query := `
		SELECT url, title_translated FROM article
		WHERE title_embedding IS NULL
		AND title_translated IS NOT NULL
		AND title_translated != ''
		AND publish_at >= $1
	`
	rows, err := r.query().QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		var a core.Article
		if err := rows.Scan(&a.URL, &a.TitleTranslated); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (r *postgresArticleRepo) SetEmbedding(ctx context.Context, url string, embedding []float64) error {
	_, err := r.query().ExecContext(ctx,
		`UPDATE article SET title_embedding = $2::vector WHERE url = $1`,
		url, FormatVector(embedding))
	return err
}

func (r *postgresArticleRepo) ListRecentEmbedded(ctx context.Context, since time.Time) ([]core.Article, error) {
	query := `
		SELECT url, title_translated, title_embedding::text FROM article
		WHERE publish_at >= $1
		AND title_embedding IS NOT NULL
		AND title_translated IS NOT NULL
		AND title_translated != ''
	`
	rows, err := r.query().QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		var a core.Article
		var vec string
		if err := rows.Scan(&a.URL, &a.TitleTranslated, &vec); err != nil {
			return nil, err
		}
		a.TitleEmbedding, err = ParseVector(vec)
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedding for %s: %w", a.URL, err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (r *postgresArticleRepo) ListReferenceCandidates(ctx context.Context, since time.Time) ([]ReferenceCandidate, error) {
	query := `
		SELECT a.url, a.title_translated, p.iso
		FROM article a
		JOIN paper p ON p.uuid = a.paper_uuid
		LEFT JOIN article_country_reference acr ON acr.article_url = a.url
		WHERE a.title_translated IS NOT NULL
		AND a.title_translated != ''
		AND a.publish_at >= $1
		AND acr.article_url IS NULL
		ORDER BY a.publish_at DESC
	`
	rows, err := r.query().QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []ReferenceCandidate
	for rows.Next() {
		var c ReferenceCandidate
		if err := rows.Scan(&c.URL, &c.Title, &c.SourceISO); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// FormatVector renders an embedding in the '[x,y,z]' text form pgvector parses.
func FormatVector(embedding []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector decodes pgvector's '[x,y,z]' text representation.
func ParseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal")
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
