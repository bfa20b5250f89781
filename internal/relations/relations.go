// Package relations extracts which foreign country each translated headline
// is about, and the sentiment towards it, feeding the country comparison
// view.
package relations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"spectra/internal/core"
	"spectra/internal/llm"
	"spectra/internal/logger"
	"spectra/internal/store"
)

// candidateWindow is how far back unprocessed headlines are picked up.
const candidateWindow = 48 * time.Hour

// Store is the persistence surface the extractor needs.
type Store interface {
	Articles() store.ArticleRepository
	References() store.ReferenceRepository
}

// Extractor classifies translated headlines one at a time with a small model
// and records foreign-country references.
type Extractor struct {
	store     Store
	generator llm.TextGenerator
	model     string
	log       *slog.Logger
}

func NewExtractor(s Store, generator llm.TextGenerator, lightModel string) *Extractor {
	return &Extractor{
		store:     s,
		generator: generator,
		model:     lightModel,
		log:       logger.Get(),
	}
}

// extraction is the model's structured verdict on a single headline.
type extraction struct {
	TargetCountryISO *string `json:"target_country_iso"`
	Favorability     *int    `json:"favorability"`
}

var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"target_country_iso": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"favorability":       {Type: genai.TypeInteger, Nullable: genai.Ptr(true)},
	},
	Required: []string{"target_country_iso", "favorability"},
}

// Run processes every recent translated headline without a reference yet.
// Headlines about no foreign country are skipped; the comparison view is
// refreshed only when something was written.
func (e *Extractor) Run(ctx context.Context) error {
	candidates, err := e.store.Articles().ListReferenceCandidates(ctx, time.Now().Add(-candidateWindow))
	if err != nil {
		return fmt.Errorf("failed to list candidates: %w", err)
	}
	if len(candidates) == 0 {
		e.log.Info("No headlines awaiting country extraction")
		return nil
	}
	e.log.Info("Extracting country references", "candidates", len(candidates))

	var processed, skipped int
	for _, c := range candidates {
		if c.Title == "" || c.SourceISO == "" {
			skipped++
			continue
		}

		targetISO, favorability, err := e.extractOne(ctx, c.Title, c.SourceISO)
		if err != nil {
			e.log.Warn("Extraction failed", "url", c.URL, "error", err)
			skipped++
			continue
		}
		if targetISO == "" {
			skipped++
			continue
		}

		ref := &core.CountryReference{
			ArticleURL:       c.URL,
			SourceCountryISO: c.SourceISO,
			TargetCountryISO: targetISO,
			Favorability:     favorability,
		}
		if err := e.store.References().Upsert(ctx, ref); err != nil {
			e.log.Warn("Failed to store reference", "url", c.URL, "error", err)
			continue
		}
		processed++
	}

	if processed > 0 {
		if err := e.store.References().RefreshComparisons(ctx); err != nil {
			e.log.Warn("Failed to refresh country comparisons", "error", err)
		}
	}
	e.log.Info("Country reference extraction finished", "processed", processed, "skipped", skipped)
	return nil
}

// extractOne asks the model about a single headline. An empty target ISO
// means the headline names no foreign country.
func (e *Extractor) extractOne(ctx context.Context, title, sourceISO string) (string, int, error) {
	var b strings.Builder
	b.WriteString("Analyze this news article title and extract:\n")
	fmt.Fprintf(&b, "1. The main FOREIGN country being discussed (not the source country %s)\n", sourceISO)
	b.WriteString("2. The sentiment/favorability toward that country\n\n")
	b.WriteString("e.g., \"Charlie Kirk's death: What he said before the fatal shooting\" -> \"USA, 0\"\n\n")
	fmt.Fprintf(&b, "Article title: %q\n\n", title)
	b.WriteString("Rules:\n")
	b.WriteString("- Only identify ONE foreign country (the most prominent one)\n")
	b.WriteString("- You are only given the title, so must infer the country as many titles are implicit, naming only people, events, regions, etc.\n")
	b.WriteString("- Use ISO 3166-1 alpha-3 country codes (e.g., USA, CHN, RUS, JPN)\n")
	fmt.Fprintf(&b, "- Set target_country_iso to null if no foreign country is mentioned or if the article is about %s itself\n", sourceISO)
	b.WriteString("- ALWAYS set favorability: 1 if positive/supportive, -1 if negative/critical, 0 if neutral/factual or if no foreign country\n")
	b.WriteString("- Both fields are required in the response")

	raw, err := e.generator.GenerateText(ctx, e.model, b.String(), extractionSchema)
	if err != nil {
		return "", 0, err
	}

	var result extraction
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", 0, fmt.Errorf("failed to decode extraction: %w", err)
	}

	targetISO := ""
	if result.TargetCountryISO != nil {
		targetISO = strings.ToUpper(strings.TrimSpace(*result.TargetCountryISO))
	}
	if targetISO != "" && len(targetISO) != 3 {
		e.log.Warn("Dropping invalid ISO code", "code", targetISO, "title", title)
		targetISO = ""
	}

	favorability := 0
	if result.Favorability != nil {
		favorability = *result.Favorability
	}
	if favorability < -1 || favorability > 1 {
		favorability = 0
	}
	return targetISO, favorability, nil
}
