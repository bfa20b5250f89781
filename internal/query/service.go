// Package query answers topic queries from the spectrum cache, falling back
// to a live article-volume view when no cached analysis exists.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"spectra/internal/core"
	"spectra/internal/llm"
	"spectra/internal/logger"
	"spectra/internal/spectrum"
	"spectra/internal/store"
	"spectra/internal/vectorstore"
)

const (
	// volumePoints is the fixed size of the fallback volume spectrum.
	volumePoints = 4
	// summaryWorkers bounds concurrent fallback summary generation.
	summaryWorkers = 4
	// maxSummaryTitles caps how many headlines feed a fallback summary.
	maxSummaryTitles = 10
)

// Store is the persistence surface the query service needs.
type Store interface {
	Topics() store.TopicRepository
	Spectra() store.SpectrumCacheRepository
}

// Service resolves a query string and date range into a spectrum record.
type Service struct {
	store     Store
	searcher  vectorstore.Searcher
	embedder  llm.Embedder
	generator llm.TextGenerator
	model     string
	log       *slog.Logger
}

func NewService(s Store, searcher vectorstore.Searcher, embedder llm.Embedder,
	generator llm.TextGenerator, lightModel string) *Service {
	return &Service{
		store:     s,
		searcher:  searcher,
		embedder:  embedder,
		generator: generator,
		model:     lightModel,
		log:       logger.Get(),
	}
}

// Execute serves from the precomputed cache when the query matches a mined
// topic, and otherwise builds a live article-volume record. The fallback is
// never persisted.
func (s *Service) Execute(ctx context.Context, query, dateStart, dateEnd string) (*core.SpectrumRecord, error) {
	// A mined topic is cached under its mining date, not the request range.
	topicDate := dateEnd
	if minedDate, ok, err := s.store.Topics().TopicDate(ctx, query); err != nil {
		s.log.Warn("Topic date lookup failed", "error", err)
	} else if ok {
		topicDate = minedDate
	}

	cached, err := s.store.Spectra().Get(ctx, query, topicDate)
	if err != nil {
		s.log.Warn("Spectrum cache lookup failed", "error", err)
	} else if cached != nil {
		s.log.Info("Serving cached spectrum", "query", query, "topic_date", topicDate)
		return cached, nil
	}

	embedding, err := s.embedder.EmbedBatch(ctx, []string{query}, llm.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	articles, err := s.searcher.Search(ctx, vectorstore.SearchQuery{
		Embedding: embedding[0],
		DateStart: dateStart,
		DateEnd:   dateEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("article search failed: %w", err)
	}

	articles = spectrum.FilterCountryCoverage(articles, core.MinArticlesPerCountry)
	if len(articles) == 0 {
		s.log.Info("No matching articles", "query", query)
		return core.EmptySpectrumRecord(), nil
	}

	return s.buildVolumeRecord(ctx, articles), nil
}

type countryData struct {
	country  string
	articles []core.QueryArticle
}

// buildVolumeRecord maps each country onto a four-point scale of how much it
// covered the topic, with short per-country summaries generated in parallel.
func (s *Service) buildVolumeRecord(ctx context.Context, articles []core.QueryArticle) *core.SpectrumRecord {
	byISO := map[string]*countryData{}
	for _, a := range articles {
		d, ok := byISO[a.ISO]
		if !ok {
			d = &countryData{country: a.Country}
			byISO[a.ISO] = d
		}
		d.articles = append(d.articles, a)
	}

	minCount, maxCount := -1, 0
	for _, d := range byISO {
		n := len(d.articles)
		if minCount < 0 || n < minCount {
			minCount = n
		}
		if n > maxCount {
			maxCount = n
		}
	}

	points := volumeSpectrumPoints(minCount, maxCount)

	record := core.EmptySpectrumRecord()
	name := "Article Volume"
	desc := "Number of articles about this topic"
	record.SpectrumName = &name
	record.SpectrumDescription = &desc
	record.SpectrumPoints = points

	summaries := s.generateVolumeSummaries(ctx, byISO)

	for iso, d := range byISO {
		pointID := normalizeVolume(len(d.articles), minCount, maxCount)
		entry := core.CountryArticles{Country: d.country, Articles: make([]core.CountryArticle, 0, len(d.articles))}
		for _, a := range d.articles {
			p := pointID
			entry.Articles = append(entry.Articles, core.CountryArticle{
				Title:     a.Title,
				URL:       a.URL,
				PublishAt: a.PublishAt,
				Lang:      a.Lang,
				PointID:   &p,
			})
		}
		if summary, ok := summaries[iso]; ok {
			entry.Summary = &summary
		}
		record.Articles[iso] = entry
	}
	return record
}

// normalizeVolume scales an article count onto the 1..4 point range.
// Half-way values round to even so neighbouring counts spread over the
// scale instead of piling up.
func normalizeVolume(count, min, max int) int {
	if max == min {
		return 1
	}
	return int(math.RoundToEven(1 + float64(count-min)/float64(max-min)*float64(volumePoints-1)))
}

// volumeSpectrumPoints labels the four scale steps with representative
// article counts between the minimum and maximum.
func volumeSpectrumPoints(min, max int) []core.SpectrumPoint {
	span := max - min
	steps := []int{min, min + span/3, min + 2*span/3, max}
	points := make([]core.SpectrumPoint, volumePoints)
	for i, n := range steps {
		label := fmt.Sprintf("%d articles", n)
		if i == 0 && n == 1 {
			label = "1 article"
		}
		points[i] = core.SpectrumPoint{PointID: i + 1, Label: label, Description: ""}
	}
	return points
}

// generateVolumeSummaries produces one short summary per sufficiently
// covered country. Failures drop only that country's summary.
func (s *Service) generateVolumeSummaries(ctx context.Context, byISO map[string]*countryData) map[string]string {
	summaries := map[string]string{}
	if s.generator == nil {
		return summaries
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryWorkers)

	for iso, d := range byISO {
		if len(d.articles) < core.MinArticlesPerCountry {
			continue
		}
		iso, d := iso, d
		g.Go(func() error {
			summary, err := s.summarizeCountry(gctx, d)
			if err != nil {
				s.log.Warn("Country summary failed", "country", d.country, "error", err)
				return nil
			}
			mu.Lock()
			summaries[iso] = summary
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return summaries
}

func (s *Service) summarizeCountry(ctx context.Context, d *countryData) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the main narrative of %s's news coverage based on these headlines.\n", d.country)
	b.WriteString("Write 1-3 sentences, maximum 80 words. Respond with the summary only.\n\n")
	b.WriteString("HEADLINES:\n")
	titles := d.articles
	if len(titles) > maxSummaryTitles {
		titles = titles[:maxSummaryTitles]
	}
	for _, a := range titles {
		fmt.Fprintf(&b, "- %s\n", a.Title)
	}

	summary, err := s.generator.GenerateText(ctx, s.model, b.String(), nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}
