// Package store provides the PostgreSQL persistence layer.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// Store wraps a PostgreSQL connection pool and exposes typed repositories.
type Store struct {
	db         *sql.DB
	papers     PaperRepository
	crawls     CrawlRepository
	articles   ArticleRepository
	topics     TopicRepository
	spectra    SpectrumCacheRepository
	references ReferenceRepository
}

// Connect opens a PostgreSQL connection pool and verifies it with a ping.
func Connect(connectionString string) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	s.papers = &postgresPaperRepo{db: db}
	s.crawls = &postgresCrawlRepo{db: db}
	s.articles = &postgresArticleRepo{db: db}
	s.topics = &postgresTopicRepo{db: db}
	s.spectra = &postgresSpectrumCacheRepo{db: db}
	s.references = &postgresReferenceRepo{db: db}

	return s, nil
}

func (s *Store) Papers() PaperRepository          { return s.papers }
func (s *Store) Crawls() CrawlRepository          { return s.crawls }
func (s *Store) Articles() ArticleRepository      { return s.articles }
func (s *Store) Topics() TopicRepository          { return s.topics }
func (s *Store) Spectra() SpectrumCacheRepository { return s.spectra }
func (s *Store) References() ReferenceRepository  { return s.references }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying pool for the vector search layer.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &postgresTx{
		tx:       tx,
		papers:   &postgresPaperRepo{db: s.db, tx: tx},
		crawls:   &postgresCrawlRepo{db: s.db, tx: tx},
		articles: &postgresArticleRepo{db: s.db, tx: tx},
	}, nil
}

// postgresTx implements Transaction.
type postgresTx struct {
	tx       *sql.Tx
	papers   PaperRepository
	crawls   CrawlRepository
	articles ArticleRepository
}

func (t *postgresTx) Commit() error               { return t.tx.Commit() }
func (t *postgresTx) Rollback() error             { return t.tx.Rollback() }
func (t *postgresTx) Papers() PaperRepository     { return t.papers }
func (t *postgresTx) Crawls() CrawlRepository     { return t.crawls }
func (t *postgresTx) Articles() ArticleRepository { return t.articles }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
