// Package crawler discovers article links on newspaper category pages and
// records them as articles.
package crawler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"spectra/internal/core"
	"spectra/internal/extract"
	"spectra/internal/logger"
	"spectra/internal/store"
)

// Options tunes one crawl run.
type Options struct {
	// MaxArticles caps successfully saved articles per paper; 0 is uncapped.
	MaxArticles int
	// IgnoreCache re-saves articles that already exist.
	IgnoreCache bool
	Timeout     time.Duration
	UserAgent   string
}

// Store is the slice of the persistence layer the crawler needs.
type Store interface {
	Crawls() store.CrawlRepository
	Articles() store.ArticleRepository
}

// Crawler fetches category pages and extracts article links.
type Crawler struct {
	store     Store
	extractor *extract.Extractor
	client    *http.Client
	opts      Options
	log       *slog.Logger
}

func New(s Store, opts Options) *Crawler {
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	return &Crawler{
		store:     s,
		extractor: extract.New(),
		client:    &http.Client{Timeout: opts.Timeout},
		opts:      opts,
		log:       logger.Get(),
	}
}

// CrawlPaper runs one crawl over every category page of a paper. A failing
// category page is logged and skipped; the crawl record always transitions
// from started to completed, carrying the final stats.
func (c *Crawler) CrawlPaper(ctx context.Context, paper *core.Paper) (*core.Crawl, error) {
	crawl := core.NewCrawl(paper.ID, c.opts.MaxArticles)
	if err := c.store.Crawls().Create(ctx, crawl); err != nil {
		return nil, fmt.Errorf("failed to record crawl start: %w", err)
	}

	c.log.Info("Starting crawl", "paper", paper.URL, "crawl_id", crawl.ID)

	seen := make(map[string]bool)
	today := time.Now()

	for _, categoryURL := range paper.CategoryURLs {
		if c.capReached(crawl) {
			break
		}

		doc, err := c.fetchDocument(ctx, categoryURL)
		if err != nil {
			c.log.Warn("Failed to fetch category page", "url", categoryURL, "error", err)
			continue
		}

		c.crawlCategory(ctx, paper, crawl, doc, categoryURL, seen, today)
	}

	crawl.Status = core.CrawlCompleted
	if err := c.store.Crawls().Finish(ctx, crawl); err != nil {
		return crawl, fmt.Errorf("failed to record crawl completion: %w", err)
	}

	c.log.Info("Crawl finished",
		"paper", paper.URL,
		"downloaded", crawl.Stats.Downloaded,
		"rejected", crawl.Stats.Failed)
	return crawl, nil
}

func (c *Crawler) crawlCategory(ctx context.Context, paper *core.Paper, crawl *core.Crawl,
	doc *goquery.Document, categoryURL string, seen map[string]bool, today time.Time) {

	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if c.capReached(crawl) {
			return false
		}

		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}

		title := extract.FindTitle(sel)

		fullURL, err := extract.Resolve(categoryURL, href)
		if err != nil || fullURL == nil {
			return true
		}
		cleanURL := extract.Canonicalize(fullURL.String())

		// Crawl-wide dedupe: a URL is classified at most once per run.
		if seen[cleanURL] {
			return true
		}
		seen[cleanURL] = true

		if !c.extractor.IsLikelyArticle(href, title, categoryURL, paper.Whitelist) {
			crawl.Stats.Failed++
			return true
		}

		decoded := cleanURL
		if u, err := url.PathUnescape(cleanURL); err == nil {
			decoded = u
		}

		article := &core.Article{
			URL:       decoded,
			ImgURL:    "",
			Title:     title,
			Lang:      paper.Lang,
			PublishAt: today,
			PaperID:   paper.ID,
			CrawlID:   crawl.ID,
		}

		if !c.opts.IgnoreCache {
			exists, err := c.store.Articles().Exists(ctx, article.URL)
			if err != nil {
				c.log.Warn("Cache check failed", "url", article.URL, "error", err)
				return true
			}
			if exists {
				c.log.Debug("Article cache hit", "url", article.URL)
				return true
			}
		}

		if err := c.store.Articles().Create(ctx, article, c.opts.IgnoreCache); err != nil {
			c.log.Warn("Failed to save article", "url", article.URL, "error", err)
			return true
		}
		crawl.Stats.Downloaded++
		return true
	})
}

func (c *Crawler) capReached(crawl *core.Crawl) bool {
	return crawl.MaxArticles > 0 && crawl.Stats.Downloaded >= crawl.MaxArticles
}

func (c *Crawler) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, zstd")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("DNT", "1")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}

	return goquery.NewDocumentFromReader(body)
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decodeBody decompresses the response. Some servers compress without a
// Content-Encoding header, so when the header is absent the first bytes are
// sniffed for gzip and zstd magic numbers.
func decodeBody(resp *http.Response) (io.Reader, error) {
	br := bufio.NewReader(resp.Body)

	encoding := resp.Header.Get("Content-Encoding")
	if encoding == "" {
		head, err := br.Peek(4)
		if err != nil && err != io.EOF {
			return nil, err
		}
		switch {
		case bytes.HasPrefix(head, zstdMagic):
			encoding = "zstd"
		case bytes.HasPrefix(head, gzipMagic):
			encoding = "gzip"
		}
	}

	switch encoding {
	case "zstd":
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		return zr.IOReadCloser(), nil
	case "gzip":
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return gr, nil
	default:
		return br, nil
	}
}
