package handlers

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spectra/internal/config"
	"spectra/internal/core"
	"spectra/internal/crawler"
	"spectra/internal/logger"
)

// NewCrawlCmd creates the crawl command for collecting article links
func NewCrawlCmd() *cobra.Command {
	var (
		maxArticles int
		ignoreCache bool
		paperURL    string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl newspaper category pages for article links",
		Long: `Crawl the category pages of every registered newspaper and save
discovered article links. Already-saved articles are skipped unless
--ignore-cache is set.

Examples:
  # Crawl all registered papers
  spectra crawl

  # Crawl a single paper, re-saving cached articles
  spectra crawl --paper-url https://www.lemonde.fr --ignore-cache

  # Cap how many new articles each paper may contribute
  spectra crawl --max-articles 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, maxArticles, ignoreCache, paperURL)
		},
	}

	cmd.Flags().IntVar(&maxArticles, "max-articles", 0, "max new articles per paper (0 = uncapped)")
	cmd.Flags().BoolVar(&ignoreCache, "ignore-cache", false, "re-save articles that already exist")
	cmd.Flags().StringVar(&paperURL, "paper-url", "", "crawl only the paper with this URL")

	return cmd
}

func runCrawl(cmd *cobra.Command, maxArticles int, ignoreCache bool, paperURL string) error {
	log := logger.Get()
	cfg := config.Get()

	s, err := connectStore()
	if err != nil {
		return err
	}
	defer s.Close()

	timeout, err := time.ParseDuration(cfg.Crawl.Timeout)
	if err != nil {
		timeout = 20 * time.Second
	}
	c := crawler.New(s, crawler.Options{
		MaxArticles: maxArticles,
		IgnoreCache: ignoreCache,
		Timeout:     timeout,
		UserAgent:   cfg.Crawl.UserAgent,
	})

	var papers []core.Paper
	if paperURL != "" {
		paper, err := s.Papers().GetByURL(cmd.Context(), paperURL)
		if err != nil {
			return err
		}
		if paper == nil {
			return fmt.Errorf("no registered paper with URL %s", paperURL)
		}
		papers = []core.Paper{*paper}
	} else {
		papers, err = s.Papers().GetAll(cmd.Context())
		if err != nil {
			return err
		}
	}
	if len(papers) == 0 {
		return fmt.Errorf("no papers registered; run 'spectra sync' first")
	}

	var downloaded, failed int
	for i := range papers {
		crawl, err := c.CrawlPaper(cmd.Context(), &papers[i])
		if err != nil {
			log.Error("Crawl failed", "paper", papers[i].URL, "error", err)
			continue
		}
		downloaded += crawl.Stats.Downloaded
		failed += crawl.Stats.Failed
	}

	fmt.Printf("Crawled %d papers: %d articles saved, %d links rejected\n",
		len(papers), downloaded, failed)
	return nil
}
