// Package translate brings crawled headlines into the common target
// language via the Cloud Translation API.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	translation "cloud.google.com/go/translate/apiv3"
	"cloud.google.com/go/translate/apiv3/translatepb"
	"google.golang.org/api/option"

	"spectra/internal/core"
	"spectra/internal/logger"
	"spectra/internal/store"
)

// maxBatchSize caps how many titles go into one TranslateText call.
const maxBatchSize = 50

// maxTitleLength guards against garbage titles blowing up request size.
const maxTitleLength = 2000

// ErrContractViolation reports a response with a different number of
// translations than submitted contents. Order is positional, so a mismatch
// makes the whole batch unusable.
var ErrContractViolation = errors.New("translation count does not match content count")

// Translator turns a batch of texts from one language into the target
// language, preserving order.
type Translator interface {
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
	Close() error
}

// googleTranslator implements Translator on Cloud Translation v3.
type googleTranslator struct {
	client    *translation.TranslationClient
	projectID string
}

// NewGoogleTranslator builds a Translator authenticated with an API key.
func NewGoogleTranslator(ctx context.Context, projectID, apiKey string) (Translator, error) {
	if projectID == "" {
		return nil, fmt.Errorf("translate project id is required")
	}

	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client, err := translation.NewTranslationClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation client: %w", err)
	}
	return &googleTranslator{client: client, projectID: projectID}, nil
}

func (g *googleTranslator) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	resp, err := g.client.TranslateText(ctx, &translatepb.TranslateTextRequest{
		Parent:             fmt.Sprintf("projects/%s/locations/global", g.projectID),
		Contents:           texts,
		MimeType:           "text/plain",
		SourceLanguageCode: sourceLang,
		TargetLanguageCode: targetLang,
	})
	if err != nil {
		return nil, fmt.Errorf("translate request failed: %w", err)
	}
	if len(resp.GetTranslations()) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d",
			ErrContractViolation, len(resp.GetTranslations()), len(texts))
	}

	out := make([]string, len(texts))
	for i, tr := range resp.GetTranslations() {
		out[i] = tr.GetTranslatedText()
	}
	return out, nil
}

func (g *googleTranslator) Close() error {
	return g.client.Close()
}

// Store is the slice of the persistence layer the service needs.
type Store interface {
	Papers() store.PaperRepository
	Articles() store.ArticleRepository
	BeginTx(ctx context.Context) (store.Transaction, error)
}

// Service translates untranslated article titles paper by paper.
type Service struct {
	store      Store
	translator Translator
	log        *slog.Logger
}

func NewService(s Store, t Translator) *Service {
	return &Service{store: s, translator: t, log: logger.Get()}
}

// Run translates every paper's pending titles. A failing paper is logged and
// skipped so one broken source cannot stall the fleet.
func (s *Service) Run(ctx context.Context) error {
	ids, err := s.store.Papers().ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list papers: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info("No papers to translate")
		return nil
	}

	s.log.Info("Starting translation job", "papers", len(ids))
	for _, id := range ids {
		if err := s.TranslatePaper(ctx, id); err != nil {
			s.log.Error("Failed to translate paper", "paper_id", id, "error", err)
		}
	}
	s.log.Info("Translation job finished")
	return nil
}

// TranslatePaper translates all pending titles of one paper inside a single
// transaction. Same-language titles are copied verbatim.
func (s *Service) TranslatePaper(ctx context.Context, paperID string) error {
	articles, err := s.store.Articles().ListUntranslated(ctx, paperID)
	if err != nil {
		return fmt.Errorf("failed to list untranslated articles: %w", err)
	}
	if len(articles) == 0 {
		return nil
	}
	s.log.Info("Translating paper", "paper_id", paperID, "articles", len(articles))

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var pending []core.Article
	for _, a := range articles {
		if a.Title == "" {
			s.log.Debug("Skipping article without title", "url", a.URL)
			continue
		}
		if len(a.Title) > maxTitleLength {
			s.log.Warn("Skipping oversized title", "url", a.URL, "length", len(a.Title))
			continue
		}
		if a.Lang == core.TargetLang {
			if err := tx.Articles().SetTranslation(ctx, a.URL, a.Title); err != nil {
				return err
			}
			continue
		}
		pending = append(pending, a)
	}

	for start := 0; start < len(pending); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := s.translateBatch(ctx, tx, pending[start:end]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// translateBatch sends one batch. On a contract violation the batch result
// cannot be trusted, so each title is retried individually.
func (s *Service) translateBatch(ctx context.Context, tx store.Transaction, batch []core.Article) error {
	texts := make([]string, len(batch))
	for i, a := range batch {
		texts[i] = a.Title
	}

	// Batches hold a single paper's articles, so the source language is
	// uniform within a batch.
	sourceLang := batch[0].Lang

	translated, err := s.translator.Translate(ctx, texts, sourceLang, core.TargetLang)
	if errors.Is(err, ErrContractViolation) {
		s.log.Warn("Batch translation order contract violated, retrying per title",
			"batch_size", len(batch))
		return s.translateOneByOne(ctx, tx, batch)
	}
	if err != nil {
		return err
	}

	for i, a := range batch {
		if err := tx.Articles().SetTranslation(ctx, a.URL, translated[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) translateOneByOne(ctx context.Context, tx store.Transaction, batch []core.Article) error {
	for _, a := range batch {
		translated, err := s.translator.Translate(ctx, []string{a.Title}, a.Lang, core.TargetLang)
		if err != nil {
			s.log.Warn("Failed to translate title", "url", a.URL, "error", err)
			continue
		}
		if err := tx.Articles().SetTranslation(ctx, a.URL, translated[0]); err != nil {
			return err
		}
	}
	return nil
}
