// Package spectrum runs the three-phase viewpoint analysis over a topic's
// articles and assembles the cacheable record.
package spectrum

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"spectra/internal/core"
	"spectra/internal/llm"
	"spectra/internal/logger"
)

const (
	// phase1SampleSize caps how many headlines define the spectrum.
	phase1SampleSize = 50
	// numWorkers is the phase 2 classification concurrency.
	numWorkers = 4
	// minBatchSize is the smallest useful classification batch.
	minBatchSize = 10
	// maxTitlesPerCountry caps phase 3 prompt size per country.
	maxTitlesPerCountry = 8
)

// Analyzer derives a political spectrum from a set of headlines, classifies
// every headline onto it, and summarizes each country's framing.
type Analyzer struct {
	generator  llm.TextGenerator
	model      string
	lightModel string
	log        *slog.Logger
}

func NewAnalyzer(g llm.TextGenerator, model, lightModel string) *Analyzer {
	return &Analyzer{
		generator:  g,
		model:      model,
		lightModel: lightModel,
		log:        logger.Get(),
	}
}

// Analyze runs all three phases and assembles the record. A failed phase 1
// aborts the whole analysis; failed phase 2 batches only lose their own
// mappings; a failed phase 3 leaves summaries null.
func (a *Analyzer) Analyze(ctx context.Context, articles []core.QueryArticle) (*core.SpectrumRecord, error) {
	if len(articles) == 0 {
		return nil, fmt.Errorf("no articles to analyze")
	}

	def, err := a.defineSpectrum(ctx, articles)
	if err != nil {
		return nil, fmt.Errorf("phase 1 failed: %w", err)
	}
	a.log.Info("Spectrum defined", "name", def.SpectrumName, "points", len(def.SpectrumPoints))

	mappings := a.classifyAll(ctx, articles, def.SpectrumPoints)
	a.log.Info("Classified articles", "mapped", len(mappings), "total", len(articles))

	summaries, err := a.summarizeCountries(ctx, articles, mappings, def.SpectrumName, def.SpectrumPoints)
	if err != nil {
		a.log.Warn("Phase 3 failed, serving record without summaries", "error", err)
		summaries = nil
	}

	return assemble(def, articles, mappings, summaries), nil
}

// spectrumDefinition is phase 1's structured output.
type spectrumDefinition struct {
	SpectrumName        string               `json:"spectrum_name"`
	SpectrumDescription string               `json:"spectrum_description"`
	SpectrumPoints      []core.SpectrumPoint `json:"spectrum_points"`
}

var spectrumDefinitionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"spectrum_name":        {Type: genai.TypeString},
		"spectrum_description": {Type: genai.TypeString},
		"spectrum_points": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"point_id":    {Type: genai.TypeInteger},
					"label":       {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
				},
				Required: []string{"point_id", "label", "description"},
			},
		},
	},
	Required: []string{"spectrum_name", "spectrum_description", "spectrum_points"},
}

// defineSpectrum asks the model for the dominant axis of debate across a
// random sample of headlines.
func (a *Analyzer) defineSpectrum(ctx context.Context, articles []core.QueryArticle) (*spectrumDefinition, error) {
	sample := sampleArticles(articles, phase1SampleSize)

	var b strings.Builder
	b.WriteString("You are a political analyst analyzing international news coverage.\n")
	b.WriteString("Below are headlines from various countries about the same topic.\n")
	b.WriteString("Your task:\n")
	b.WriteString("1. Identify the single MOST IMPORTANT political dimension or axis of debate in these headlines.\n")
	b.WriteString("2. Give this spectrum a clear name and brief description.\n")
	b.WriteString("3. Define an ordered political spectrum of 2 to 4 points for this dimension.\n")
	b.WriteString("   The spectrum must span from one extreme viewpoint to the opposite.\n")
	b.WriteString("4. For each point, provide:\n")
	b.WriteString("   - point_id: sequential number (1, 2, 3, etc.)\n")
	b.WriteString("   - label: concise 2-8 word label\n")
	b.WriteString("   - description: 1-2 sentence explanation of this viewpoint\n")
	b.WriteString("---\n")
	b.WriteString("HEADLINES:\n")
	for i, art := range sample {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, art.Title, art.Country)
	}

	raw, err := a.generator.GenerateText(ctx, a.model, b.String(), spectrumDefinitionSchema)
	if err != nil {
		return nil, err
	}

	var def spectrumDefinition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return nil, fmt.Errorf("failed to decode spectrum definition: %w", err)
	}
	if err := validatePoints(def.SpectrumPoints); err != nil {
		return nil, err
	}
	return &def, nil
}

// validatePoints enforces 2-4 points with sequential 1-based ids.
func validatePoints(points []core.SpectrumPoint) error {
	if len(points) < 2 || len(points) > 4 {
		return fmt.Errorf("spectrum has %d points, want 2 to 4", len(points))
	}
	sorted := make([]core.SpectrumPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PointID < sorted[j].PointID })
	for i, p := range sorted {
		if p.PointID != i+1 {
			return fmt.Errorf("spectrum point ids are not sequential from 1: %v", ids(points))
		}
	}
	return nil
}

func ids(points []core.SpectrumPoint) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.PointID
	}
	return out
}

func sampleArticles(articles []core.QueryArticle, n int) []core.QueryArticle {
	if len(articles) <= n {
		return articles
	}
	perm := rand.Perm(len(articles))
	out := make([]core.QueryArticle, n)
	for i := 0; i < n; i++ {
		out[i] = articles[perm[i]]
	}
	return out
}

var mappingSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"article_id": {Type: genai.TypeInteger},
			"point_id":   {Type: genai.TypeInteger},
		},
		Required: []string{"article_id", "point_id"},
	},
}

// classifyAll runs phase 2 in parallel batches. Article ids are absolute
// 1-based positions within the full slice, so mappings from different
// batches can never collide.
func (a *Analyzer) classifyAll(ctx context.Context, articles []core.QueryArticle, points []core.SpectrumPoint) []core.ArticleSpectrumMapping {
	batchSize := len(articles) / numWorkers
	if batchSize < minBatchSize {
		batchSize = minBatchSize
	}

	type batch struct {
		start    int
		articles []core.QueryArticle
	}
	var batches []batch
	for start := 0; start < len(articles); start += batchSize {
		end := start + batchSize
		if end > len(articles) {
			end = len(articles)
		}
		batches = append(batches, batch{start: start, articles: articles[start:end]})
	}

	var mu sync.Mutex
	var all []core.ArticleSpectrumMapping

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			mappings, err := a.classifyBatch(gctx, b.articles, b.start, points)
			if err != nil {
				// A failed batch only loses its own mappings.
				a.log.Warn("Classification batch failed", "start", b.start, "error", err)
				return nil
			}
			mu.Lock()
			all = append(all, mappings...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Defend against hallucinated ids outside the valid domain.
	maxPoint := len(points)
	valid := all[:0]
	for _, m := range all {
		if m.ArticleID >= 1 && m.ArticleID <= len(articles) && m.PointID >= 1 && m.PointID <= maxPoint {
			valid = append(valid, m)
		}
	}
	return valid
}

func (a *Analyzer) classifyBatch(ctx context.Context, batch []core.QueryArticle, batchStart int, points []core.SpectrumPoint) ([]core.ArticleSpectrumMapping, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	sorted := make([]core.SpectrumPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PointID < sorted[j].PointID })

	var b strings.Builder
	b.WriteString("You are classifying news headlines to a predefined political spectrum.\n")
	fmt.Fprintf(&b, "The spectrum has %d points:\n\n", len(points))
	for _, p := range sorted {
		fmt.Fprintf(&b, "Point %d: %s\n", p.PointID, p.Label)
	}
	b.WriteString("\nClassify each headline below to the most appropriate point on this spectrum.\n")
	b.WriteString("---\n")
	b.WriteString("HEADLINES:\n")
	for i, art := range batch {
		fmt.Fprintf(&b, "%d. %s\n", batchStart+i+1, art.Title)
	}

	raw, err := a.generator.GenerateText(ctx, a.model, b.String(), mappingSchema)
	if err != nil {
		return nil, err
	}

	var mappings []core.ArticleSpectrumMapping
	if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
		return nil, fmt.Errorf("failed to decode mappings: %w", err)
	}
	return mappings, nil
}

// countrySummary is one phase 3 output element.
type countrySummary struct {
	Country string `json:"country"`
	Summary string `json:"summary"`
}

var countrySummarySchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"country": {Type: genai.TypeString},
			"summary": {Type: genai.TypeString},
		},
		Required: []string{"country", "summary"},
	},
}

// summarizeCountries generates every country's framing summary in one call.
// Only countries with enough articles and at least one classified article
// are summarized.
func (a *Analyzer) summarizeCountries(ctx context.Context, articles []core.QueryArticle,
	mappings []core.ArticleSpectrumMapping, spectrumName string, points []core.SpectrumPoint) ([]countrySummary, error) {

	mapped := make(map[int]int, len(mappings))
	for _, m := range mappings {
		mapped[m.ArticleID] = m.PointID
	}

	type countryData struct {
		articles []core.QueryArticle
		pointIDs []int
	}
	byCountry := map[string]*countryData{}
	var order []string
	for i, art := range articles {
		d, ok := byCountry[art.Country]
		if !ok {
			d = &countryData{}
			byCountry[art.Country] = d
			order = append(order, art.Country)
		}
		d.articles = append(d.articles, art)
		if pointID, ok := mapped[i+1]; ok {
			d.pointIDs = append(d.pointIDs, pointID)
		}
	}

	var eligible []string
	for _, country := range order {
		d := byCountry[country]
		if len(d.articles) >= core.MinArticlesPerCountry && len(d.pointIDs) > 0 {
			eligible = append(eligible, country)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	avgs := make(map[string]float64, len(eligible))
	var overall float64
	for _, country := range eligible {
		d := byCountry[country]
		sum := 0
		for _, p := range d.pointIDs {
			sum += p
		}
		avgs[country] = float64(sum) / float64(len(d.pointIDs))
		overall += avgs[country]
	}
	overall /= float64(len(eligible))

	sorted := make([]core.SpectrumPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PointID < sorted[j].PointID })

	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing international news coverage about: %s\n\n", spectrumName)
	fmt.Fprintf(&b, "The political spectrum has %d points:\n", len(points))
	for _, p := range sorted {
		fmt.Fprintf(&b, "  %d. %s: %s\n", p.PointID, p.Label, p.Description)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Overall average position across all countries: %.1f\n\n", overall)
	b.WriteString("For each country below, write a 1-2 sentence summary (max 40 words) that:\n")
	b.WriteString("1. Describes the main narrative or framing in that country's coverage\n")
	b.WriteString("2. Notes how it compares to other countries if notably different\n\n")
	b.WriteString("Countries and their coverage:\n\n")

	for _, country := range eligible {
		d := byCountry[country]
		avg := avgs[country]
		relative := "similar"
		if math.Abs(avg-overall) >= 0.3 {
			if avg < overall {
				relative = "lower"
			} else {
				relative = "higher"
			}
		}
		fmt.Fprintf(&b, "--- %s ---\n", country)
		fmt.Fprintf(&b, "Position: %.1f (%s than average)\n", avg, relative)
		fmt.Fprintf(&b, "Articles (%d):\n", len(d.articles))
		for i, art := range d.articles {
			if i == maxTitlesPerCountry {
				break
			}
			fmt.Fprintf(&b, "  - %s\n", art.Title)
		}
		b.WriteString("\n")
	}

	raw, err := a.generator.GenerateText(ctx, a.lightModel, b.String(), countrySummarySchema)
	if err != nil {
		return nil, err
	}

	var summaries []countrySummary
	if err := json.Unmarshal([]byte(raw), &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode summaries: %w", err)
	}
	a.log.Info("Generated country summaries", "count", len(summaries))
	return summaries, nil
}

// assemble builds the final record keyed by ISO code.
func assemble(def *spectrumDefinition, articles []core.QueryArticle,
	mappings []core.ArticleSpectrumMapping, summaries []countrySummary) *core.SpectrumRecord {

	mapped := make(map[int]int, len(mappings))
	for _, m := range mappings {
		mapped[m.ArticleID] = m.PointID
	}
	summaryByCountry := make(map[string]string, len(summaries))
	for _, s := range summaries {
		summaryByCountry[s.Country] = s.Summary
	}

	byISO := map[string]core.CountryArticles{}
	for i, art := range articles {
		entry, ok := byISO[art.ISO]
		if !ok {
			entry = core.CountryArticles{Country: art.Country, Articles: []core.CountryArticle{}}
		}

		var pointID *int
		if p, ok := mapped[i+1]; ok {
			p := p
			pointID = &p
		}
		entry.Articles = append(entry.Articles, core.CountryArticle{
			Title:     art.Title,
			URL:       art.URL,
			PublishAt: art.PublishAt,
			Lang:      art.Lang,
			PointID:   pointID,
		})
		byISO[art.ISO] = entry
	}

	for iso, entry := range byISO {
		if s, ok := summaryByCountry[entry.Country]; ok {
			s := s
			entry.Summary = &s
			byISO[iso] = entry
		}
	}

	points := make([]core.SpectrumPoint, len(def.SpectrumPoints))
	copy(points, def.SpectrumPoints)
	sort.Slice(points, func(i, j int) bool { return points[i].PointID < points[j].PointID })

	name := def.SpectrumName
	desc := def.SpectrumDescription
	return &core.SpectrumRecord{
		SpectrumName:        &name,
		SpectrumDescription: &desc,
		SpectrumPoints:      points,
		Articles:            byISO,
	}
}
