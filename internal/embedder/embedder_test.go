package embedder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"spectra/internal/core"
	"spectra/internal/store"
)

type mockEmbedder struct {
	calls      int
	failOnCall int // 1-based; 0 means never fail
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string, taskType string) ([][]float64, error) {
	m.calls++
	if m.failOnCall == m.calls {
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, core.EmbeddingDimensions)
		out[i][0] = float64(i)
	}
	return out, nil
}

type memStore struct {
	articles memArticleRepo
}

func (m *memStore) Articles() store.ArticleRepository { return &m.articles }

type memArticleRepo struct {
	store.ArticleRepository
	unembedded []core.Article
	embedded   map[string][]float64
}

func (m *memArticleRepo) ListUnembedded(context.Context, time.Time) ([]core.Article, error) {
	return m.unembedded, nil
}

func (m *memArticleRepo) SetEmbedding(_ context.Context, url string, emb []float64) error {
	if m.embedded == nil {
		m.embedded = map[string][]float64{}
	}
	m.embedded[url] = emb
	return nil
}

func articles(n int) []core.Article {
	out := make([]core.Article, n)
	for i := range out {
		out[i] = core.Article{
			URL:             fmt.Sprintf("u%d", i),
			TitleTranslated: fmt.Sprintf("headline %d", i),
		}
	}
	return out
}

func TestRunChunks(t *testing.T) {
	ms := &memStore{articles: memArticleRepo{unembedded: articles(250)}}
	me := &mockEmbedder{}

	if err := New(ms, me).Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// 250 titles -> 100 + 100 + 50.
	if me.calls != 3 {
		t.Errorf("embedder called %d times, want 3", me.calls)
	}
	if len(ms.articles.embedded) != 250 {
		t.Errorf("embedded %d articles, want 250", len(ms.articles.embedded))
	}
}

func TestRunSkipsFailedChunk(t *testing.T) {
	ms := &memStore{articles: memArticleRepo{unembedded: articles(250)}}
	me := &mockEmbedder{failOnCall: 2}

	if err := New(ms, me).Run(context.Background()); err != nil {
		t.Fatalf("Run() should absorb chunk failures, got: %v", err)
	}

	// Second chunk lost, first and third committed.
	if len(ms.articles.embedded) != 150 {
		t.Errorf("embedded %d articles, want 150", len(ms.articles.embedded))
	}
	if _, ok := ms.articles.embedded["u0"]; !ok {
		t.Error("first chunk should be committed")
	}
	if _, ok := ms.articles.embedded["u100"]; ok {
		t.Error("failed chunk should not be committed")
	}
	if _, ok := ms.articles.embedded["u200"]; !ok {
		t.Error("third chunk should be committed")
	}
}

func TestRunNoArticles(t *testing.T) {
	ms := &memStore{}
	me := &mockEmbedder{}

	if err := New(ms, me).Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if me.calls != 0 {
		t.Error("embedder should not be called with no articles")
	}
}
