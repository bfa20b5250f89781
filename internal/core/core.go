// Package core contains the domain types shared across the crawl,
// translation, embedding, topic and spectrum pipelines.
package core

import (
	"time"

	"github.com/google/uuid"
)

const (
	// TargetLang is the common language all headlines are translated into.
	TargetLang = "en"

	// EmbeddingDimensions is the fixed dimensionality of title embeddings.
	// Must match the vector column width in the database.
	EmbeddingDimensions = 768

	// SimilarityThreshold is the minimum cosine similarity for an article
	// to count as relevant to a query.
	SimilarityThreshold = 0.63

	// MinArticlesPerCountry is the minimum number of articles a country
	// needs before it appears in a spectrum record.
	MinArticlesPerCountry = 3
)

// Paper is a newspaper source. Identity is the md5 hex digest of its URL, so
// re-declaring the same URL always maps to the same row.
type Paper struct {
	ID           string
	URL          string
	Country      string
	ISO          string // 3-letter country code
	Lang         string
	CategoryURLs []string
	Whitelist    []string // regex or URL-prefix patterns, hard accepts
}

// CrawlStatus tracks the lifecycle of a crawl run.
type CrawlStatus int

const (
	CrawlStarted CrawlStatus = iota + 1
	CrawlCompleted
)

func (s CrawlStatus) String() string {
	switch s {
	case CrawlStarted:
		return "STARTED"
	case CrawlCompleted:
		return "COMPLETED"
	}
	return "UNKNOWN"
}

// CrawlStats counts the outcome of one crawl over one paper.
type CrawlStats struct {
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
}

// Crawl is one execution of the extraction pipeline over a single paper.
type Crawl struct {
	ID          uuid.UUID
	PaperID     string
	CreatedAt   time.Time
	Status      CrawlStatus
	MaxArticles int // 0 means uncapped
	Stats       CrawlStats
}

// NewCrawl creates a started crawl with a fresh id.
func NewCrawl(paperID string, maxArticles int) *Crawl {
	return &Crawl{
		ID:          uuid.New(),
		PaperID:     paperID,
		CreatedAt:   time.Now().UTC(),
		Status:      CrawlStarted,
		MaxArticles: maxArticles,
	}
}

// Article is a canonicalized URL plus its headline and metadata. The URL is
// the primary key; TitleTranslated and TitleEmbedding are filled in by later
// pipeline stages.
type Article struct {
	URL             string
	ImgURL          string
	Title           string
	TitleTranslated string    // empty until translated
	TitleEmbedding  []float64 // nil until embedded; len == EmbeddingDimensions
	Lang            string
	PublishAt       time.Time
	PaperID         string
	CrawlID         uuid.UUID
}

// DailyTopic is a short label attached to a cluster of semantically similar
// articles on a given date. Immutable once written; DATE(created_at) is the
// topic_date used as the spectrum cache key.
type DailyTopic struct {
	ID        int64
	Topic     string
	CreatedAt time.Time
}

// SpectrumPoint is one position on a topic's viewpoint axis. Point ids are
// sequential starting at 1.
type SpectrumPoint struct {
	PointID     int    `json:"point_id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// CountryArticle is one article as it appears inside a spectrum record.
// PointID is nil on the degraded (uncached) path only.
type CountryArticle struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	PublishAt string `json:"publish_at"`
	Lang      string `json:"lang"`
	PointID   *int   `json:"point_id"`
}

// CountryArticles groups one country's coverage with an optional framing
// summary.
type CountryArticles struct {
	Country  string           `json:"country"`
	Summary  *string          `json:"summary"`
	Articles []CountryArticle `json:"articles"`
}

// SpectrumRecord is the analyzer output for a (topic, topic_date) pair. The
// JSON shape is served verbatim by the query endpoint; scalar fields are null
// and collections empty when there is no data.
type SpectrumRecord struct {
	SpectrumName        *string                    `json:"spectrum_name"`
	SpectrumDescription *string                    `json:"spectrum_description"`
	SpectrumPoints      []SpectrumPoint            `json:"spectrum_points"`
	Articles            map[string]CountryArticles `json:"articles"` // keyed by ISO
}

// EmptySpectrumRecord returns the canonical no-data record: all scalars null,
// arrays and maps empty but present.
func EmptySpectrumRecord() *SpectrumRecord {
	return &SpectrumRecord{
		SpectrumPoints: []SpectrumPoint{},
		Articles:       map[string]CountryArticles{},
	}
}

// ArticleSpectrumMapping assigns one article (by absolute 1-based id within
// the analyzed set) to a spectrum point.
type ArticleSpectrumMapping struct {
	ArticleID int `json:"article_id"`
	PointID   int `json:"point_id"`
}

// QueryArticle is an article joined with its paper metadata, as retrieved by
// the semantic query path.
type QueryArticle struct {
	Title      string
	URL        string
	ISO        string
	Country    string
	PublishAt  string // YYYY-MM-DD, empty when unknown
	Lang       string
	Similarity float64
}

// CountryReference records which foreign country an article is about and the
// sentiment towards it. Favorability is -1, 0 or 1.
type CountryReference struct {
	ArticleURL       string
	SourceCountryISO string
	TargetCountryISO string
	Favorability     int
}
