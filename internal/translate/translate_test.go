package translate

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"spectra/internal/core"
	"spectra/internal/store"
)

// mockTranslator scripts batch responses.
type mockTranslator struct {
	calls       [][]string
	violateOnce bool
	failWith    error
}

func (m *mockTranslator) Translate(_ context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	m.calls = append(m.calls, texts)
	if m.failWith != nil {
		return nil, m.failWith
	}
	if m.violateOnce && len(texts) > 1 {
		m.violateOnce = false
		return nil, fmt.Errorf("%w: got %d, want %d", ErrContractViolation, len(texts)-1, len(texts))
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = "EN:" + t
	}
	return out, nil
}

func (m *mockTranslator) Close() error { return nil }

// memStore implements Store with in-memory articles.
type memStore struct {
	articles memArticleRepo
	papers   memPaperRepo
	commits  int
}

func (m *memStore) Papers() store.PaperRepository     { return &m.papers }
func (m *memStore) Articles() store.ArticleRepository { return &m.articles }
func (m *memStore) BeginTx(context.Context) (store.Transaction, error) {
	return &memTx{store: m}, nil
}

type memTx struct {
	store *memStore
}

func (t *memTx) Commit() error                     { t.store.commits++; return nil }
func (t *memTx) Rollback() error                   { return nil }
func (t *memTx) Papers() store.PaperRepository     { return &t.store.papers }
func (t *memTx) Crawls() store.CrawlRepository     { return nil }
func (t *memTx) Articles() store.ArticleRepository { return &t.store.articles }

type memPaperRepo struct {
	store.PaperRepository
	ids []string
}

func (m *memPaperRepo) ListIDs(context.Context) ([]string, error) { return m.ids, nil }

type memArticleRepo struct {
	store.ArticleRepository
	untranslated []core.Article
	translations map[string]string
}

func (m *memArticleRepo) ListUntranslated(context.Context, string) ([]core.Article, error) {
	return m.untranslated, nil
}

func (m *memArticleRepo) SetTranslation(_ context.Context, url, translated string) error {
	if m.translations == nil {
		m.translations = map[string]string{}
	}
	m.translations[url] = translated
	return nil
}

func article(url, title, lang string) core.Article {
	return core.Article{URL: url, Title: title, Lang: lang, PublishAt: time.Now()}
}

func TestTranslatePaperBatches(t *testing.T) {
	var articles []core.Article
	for i := 0; i < 120; i++ {
		articles = append(articles, article(fmt.Sprintf("u%d", i), fmt.Sprintf("titulo %d", i), "es"))
	}

	ms := &memStore{articles: memArticleRepo{untranslated: articles}}
	mt := &mockTranslator{}
	svc := NewService(ms, mt)

	if err := svc.TranslatePaper(context.Background(), "p1"); err != nil {
		t.Fatalf("TranslatePaper() error: %v", err)
	}

	// 120 titles -> 50 + 50 + 20.
	if len(mt.calls) != 3 {
		t.Fatalf("translator called %d times, want 3", len(mt.calls))
	}
	if len(mt.calls[0]) != 50 || len(mt.calls[2]) != 20 {
		t.Errorf("unexpected batch sizes: %d, %d, %d",
			len(mt.calls[0]), len(mt.calls[1]), len(mt.calls[2]))
	}
	if got := ms.articles.translations["u0"]; got != "EN:titulo 0" {
		t.Errorf("translation for u0 = %q", got)
	}
	if ms.commits != 1 {
		t.Errorf("commits = %d, want 1", ms.commits)
	}
}

func TestTranslatePaperSameLanguageCopies(t *testing.T) {
	ms := &memStore{articles: memArticleRepo{untranslated: []core.Article{
		article("u1", "already english headline", "en"),
		article("u2", "titular en castellano aqui", "es"),
	}}}
	mt := &mockTranslator{}
	svc := NewService(ms, mt)

	if err := svc.TranslatePaper(context.Background(), "p1"); err != nil {
		t.Fatalf("TranslatePaper() error: %v", err)
	}

	if got := ms.articles.translations["u1"]; got != "already english headline" {
		t.Errorf("same-language title should be copied verbatim, got %q", got)
	}
	if got := ms.articles.translations["u2"]; got != "EN:titular en castellano aqui" {
		t.Errorf("translation for u2 = %q", got)
	}
	// Only the Spanish title should reach the API.
	if len(mt.calls) != 1 || len(mt.calls[0]) != 1 {
		t.Errorf("unexpected translator calls: %v", mt.calls)
	}
}

func TestTranslatePaperContractViolationFallsBack(t *testing.T) {
	ms := &memStore{articles: memArticleRepo{untranslated: []core.Article{
		article("u1", "primer titular de prueba", "es"),
		article("u2", "segundo titular de prueba", "es"),
		article("u3", "tercer titular de prueba", "es"),
	}}}
	mt := &mockTranslator{violateOnce: true}
	svc := NewService(ms, mt)

	if err := svc.TranslatePaper(context.Background(), "p1"); err != nil {
		t.Fatalf("TranslatePaper() error: %v", err)
	}

	// One violated batch call, then three per-title retries.
	if len(mt.calls) != 4 {
		t.Fatalf("translator called %d times, want 4", len(mt.calls))
	}
	for _, url := range []string{"u1", "u2", "u3"} {
		if got := ms.articles.translations[url]; !strings.HasPrefix(got, "EN:") {
			t.Errorf("missing fallback translation for %s: %q", url, got)
		}
	}
}

func TestTranslatePaperSkipsOversizedAndEmptyTitles(t *testing.T) {
	ms := &memStore{articles: memArticleRepo{untranslated: []core.Article{
		article("u1", "", "es"),
		article("u2", strings.Repeat("x", maxTitleLength+1), "es"),
		article("u3", "titular valido de prueba", "es"),
	}}}
	mt := &mockTranslator{}
	svc := NewService(ms, mt)

	if err := svc.TranslatePaper(context.Background(), "p1"); err != nil {
		t.Fatalf("TranslatePaper() error: %v", err)
	}

	if len(mt.calls) != 1 || len(mt.calls[0]) != 1 {
		t.Fatalf("unexpected translator calls: %d", len(mt.calls))
	}
	if _, ok := ms.articles.translations["u1"]; ok {
		t.Error("empty title must not be translated")
	}
	if _, ok := ms.articles.translations["u2"]; ok {
		t.Error("oversized title must not be translated")
	}
}
