package store

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"spectra/internal/core"
)

func TestFormatVector(t *testing.T) {
	got := FormatVector([]float64{1, -0.5, 0.25})
	want := "[1,-0.5,0.25]"
	if got != want {
		t.Errorf("FormatVector() = %q, want %q", got, want)
	}
}

func TestParseVector(t *testing.T) {
	vec, err := ParseVector("[0.1, -2, 3.5]")
	if err != nil {
		t.Fatalf("ParseVector() error: %v", err)
	}
	want := []float64{0.1, -2, 3.5}
	if len(vec) != len(want) {
		t.Fatalf("ParseVector() returned %d values, want %d", len(vec), len(want))
	}
	for i := range want {
		if math.Abs(vec[i]-want[i]) > 1e-12 {
			t.Errorf("ParseVector()[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
}

func TestParseVectorMalformed(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "[1,2", "[a,b]"} {
		if _, err := ParseVector(s); err == nil {
			t.Errorf("ParseVector(%q) expected error", s)
		}
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float64{0.123456789, -0.987654321, 0}
	out, err := ParseVector(FormatVector(in))
	if err != nil {
		t.Fatalf("round trip error: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("round trip mismatch at %d: %v != %v", i, out[i], in[i])
		}
	}
}

// Integration tests require a real PostgreSQL with the pgvector extension.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	s, err := Connect(dsn)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := NewMigrationManager(s).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return s
}

func TestPaperLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	paper := &core.Paper{
		ID:        "test-paper-lifecycle",
		URL:       "https://integration.example.com",
		Country:   "Testland",
		ISO:       "TST",
		Lang:      "en",
		Whitelist: []string{"https://integration.example.com/news/"},
	}

	if err := s.Papers().Upsert(ctx, paper); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	defer s.Papers().DeleteByIDs(ctx, []string{paper.ID})

	if err := s.Papers().UpsertCategory(ctx, paper.ID, "https://integration.example.com/world/"); err != nil {
		t.Fatalf("UpsertCategory() error: %v", err)
	}

	got, err := s.Papers().GetByURL(ctx, paper.URL)
	if err != nil {
		t.Fatalf("GetByURL() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetByURL() returned nil for existing paper")
	}
	if got.ISO != "TST" || len(got.CategoryURLs) != 1 {
		t.Errorf("unexpected paper: %+v", got)
	}

	pruned, err := s.Papers().PruneCategories(ctx, paper.ID, []string{"https://other.example.com/"})
	if err != nil {
		t.Fatalf("PruneCategories() error: %v", err)
	}
	if pruned != 1 {
		t.Errorf("PruneCategories() = %d, want 1", pruned)
	}
}

func TestCrawlAndArticleLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	paper := &core.Paper{ID: "test-paper-crawl", URL: "https://crawl.example.com", Country: "Testland", ISO: "TST", Lang: "es"}
	if err := s.Papers().Upsert(ctx, paper); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	defer s.Papers().DeleteByIDs(ctx, []string{paper.ID})

	crawl := core.NewCrawl(paper.ID, 10)
	if err := s.Crawls().Create(ctx, crawl); err != nil {
		t.Fatalf("Crawls().Create() error: %v", err)
	}

	article := &core.Article{
		URL:       "https://crawl.example.com/news/test-article-123456",
		Title:     "titular de prueba de integracion",
		Lang:      "es",
		PublishAt: time.Now(),
		PaperID:   paper.ID,
		CrawlID:   crawl.ID,
	}
	if err := s.Articles().Create(ctx, article, false); err != nil {
		t.Fatalf("Articles().Create() error: %v", err)
	}

	exists, err := s.Articles().Exists(ctx, article.URL)
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v; want true, nil", exists, err)
	}

	untranslated, err := s.Articles().ListUntranslated(ctx, paper.ID)
	if err != nil {
		t.Fatalf("ListUntranslated() error: %v", err)
	}
	if len(untranslated) != 1 {
		t.Fatalf("ListUntranslated() = %d articles, want 1", len(untranslated))
	}

	if err := s.Articles().SetTranslation(ctx, article.URL, "integration test headline"); err != nil {
		t.Fatalf("SetTranslation() error: %v", err)
	}

	since := time.Now().Add(-48 * time.Hour)
	unembedded, err := s.Articles().ListUnembedded(ctx, since)
	if err != nil {
		t.Fatalf("ListUnembedded() error: %v", err)
	}
	found := false
	for _, a := range unembedded {
		if a.URL == article.URL {
			found = true
		}
	}
	if !found {
		t.Error("translated article missing from ListUnembedded")
	}

	emb := make([]float64, core.EmbeddingDimensions)
	emb[0] = 1
	if err := s.Articles().SetEmbedding(ctx, article.URL, emb); err != nil {
		t.Fatalf("SetEmbedding() error: %v", err)
	}

	embedded, err := s.Articles().ListRecentEmbedded(ctx, since)
	if err != nil {
		t.Fatalf("ListRecentEmbedded() error: %v", err)
	}
	found = false
	for _, a := range embedded {
		if a.URL == article.URL {
			found = true
			if len(a.TitleEmbedding) != core.EmbeddingDimensions {
				t.Errorf("embedding has %d dims, want %d", len(a.TitleEmbedding), core.EmbeddingDimensions)
			}
		}
	}
	if !found {
		t.Error("embedded article missing from ListRecentEmbedded")
	}

	crawl.Status = core.CrawlCompleted
	crawl.Stats = core.CrawlStats{Downloaded: 1, Failed: 2}
	if err := s.Crawls().Finish(ctx, crawl); err != nil {
		t.Fatalf("Crawls().Finish() error: %v", err)
	}
}

func TestSpectrumCacheUpsertAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	name := "Test Spectrum"
	desc := "integration"
	rec := &core.SpectrumRecord{
		SpectrumName:        &name,
		SpectrumDescription: &desc,
		SpectrumPoints: []core.SpectrumPoint{
			{PointID: 1, Label: "one", Description: "a"},
			{PointID: 2, Label: "two", Description: "b"},
		},
		Articles: map[string]core.CountryArticles{
			"TST": {Country: "Testland", Articles: []core.CountryArticle{}},
		},
	}

	topic := "integration-test-topic"
	topicDate := time.Now().Format("2006-01-02")

	if err := s.Spectra().Upsert(ctx, topic, topicDate, rec); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	got, err := s.Spectra().Get(ctx, topic, topicDate)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil after Upsert")
	}
	if got.SpectrumName == nil || *got.SpectrumName != name {
		t.Errorf("SpectrumName = %v, want %q", got.SpectrumName, name)
	}
	if len(got.SpectrumPoints) != 2 {
		t.Errorf("SpectrumPoints = %d, want 2", len(got.SpectrumPoints))
	}

	miss, err := s.Spectra().Get(ctx, topic, "1999-01-01")
	if err != nil {
		t.Fatalf("Get() miss error: %v", err)
	}
	if miss != nil {
		t.Error("Get() for unknown date should return nil")
	}
}
