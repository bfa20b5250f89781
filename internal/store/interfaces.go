package store

import (
	"context"
	"time"

	"spectra/internal/core"
)

// PaperRepository manages newspaper records and their category pages.
type PaperRepository interface {
	Upsert(ctx context.Context, paper *core.Paper) error
	UpsertCategory(ctx context.Context, paperID, url string) error
	PruneCategories(ctx context.Context, paperID string, keep []string) (int64, error)
	ListIDs(ctx context.Context) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	GetAll(ctx context.Context) ([]core.Paper, error)
	GetByURL(ctx context.Context, url string) (*core.Paper, error)
	Get(ctx context.Context, id string) (*core.Paper, error)
}

// CrawlRepository records crawl runs against papers.
type CrawlRepository interface {
	Create(ctx context.Context, crawl *core.Crawl) error
	Finish(ctx context.Context, crawl *core.Crawl) error
}

// ReferenceCandidate is a translated article awaiting country-reference
// extraction, carrying the publishing paper's ISO code.
type ReferenceCandidate struct {
	URL       string
	Title     string
	SourceISO string
}

// ArticleRepository manages crawled article titles through the pipeline
// stages: saved, translated, embedded.
type ArticleRepository interface {
	Exists(ctx context.Context, url string) (bool, error)
	Create(ctx context.Context, article *core.Article, overwrite bool) error
	ListUntranslated(ctx context.Context, paperID string) ([]core.Article, error)
	SetTranslation(ctx context.Context, url, titleTranslated string) error
	ListUnembedded(ctx context.Context, since time.Time) ([]core.Article, error)
	SetEmbedding(ctx context.Context, url string, embedding []float64) error
	ListRecentEmbedded(ctx context.Context, since time.Time) ([]core.Article, error)
	ListReferenceCandidates(ctx context.Context, since time.Time) ([]ReferenceCandidate, error)
}

// TopicRepository manages the daily mined topic labels.
type TopicRepository interface {
	InsertBatch(ctx context.Context, topics []string, createdAt time.Time) error
	TopicDate(ctx context.Context, topic string) (string, bool, error)
	ListRecent(ctx context.Context, days int) ([]core.DailyTopic, error)
}

// CachedTopic identifies one precompute work item.
type CachedTopic struct {
	Topic     string
	TopicDate string
}

// SpectrumCacheRepository stores precomputed spectrum analyses keyed by
// (topic, topic_date).
type SpectrumCacheRepository interface {
	Upsert(ctx context.Context, topic, topicDate string, record *core.SpectrumRecord) error
	Get(ctx context.Context, topic, topicDate string) (*core.SpectrumRecord, error)
	TopicsNeedingAnalysis(ctx context.Context) ([]CachedTopic, error)
}

// ReferenceRepository stores country references extracted from titles.
type ReferenceRepository interface {
	Upsert(ctx context.Context, ref *core.CountryReference) error
	RefreshComparisons(ctx context.Context) error
}

// Transaction groups repository operations under a single database
// transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	Papers() PaperRepository
	Crawls() CrawlRepository
	Articles() ArticleRepository
}
