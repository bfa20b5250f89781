// Package topics mines short daily topic labels from clusters of embedded
// headlines.
package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"spectra/internal/llm"
	"spectra/internal/logger"
	"spectra/internal/store"
)

const (
	// minClusterSize is HDBSCAN's smallest allowed cluster.
	minClusterSize = 5
	// maxClusters caps how many clusters are labeled per run.
	maxClusters = 7
	// representativesPerCluster is how many titles near the centroid are
	// shown to the labeling model.
	representativesPerCluster = 5
	// recentWindow bounds which articles contribute to today's topics.
	recentWindow = 48 * time.Hour
)

// Store is the slice of the persistence layer the miner needs.
type Store interface {
	Articles() store.ArticleRepository
	Topics() store.TopicRepository
}

// Miner clusters recent embedded headlines and labels the biggest clusters.
type Miner struct {
	store     Store
	generator llm.TextGenerator
	model     string
	clusterer Clusterer
	log       *slog.Logger
}

func NewMiner(s Store, g llm.TextGenerator, model string) *Miner {
	return &Miner{
		store:     s,
		generator: g,
		model:     model,
		clusterer: HDBSCANClusterer{},
		log:       logger.Get(),
	}
}

// Run mines today's topics and stores them under a single batch timestamp.
func (m *Miner) Run(ctx context.Context) error {
	since := time.Now().Add(-recentWindow)
	articles, err := m.store.Articles().ListRecentEmbedded(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to list embedded articles: %w", err)
	}
	if len(articles) == 0 {
		m.log.Info("No embedded articles to mine topics from")
		return nil
	}
	m.log.Info("Mining topics", "articles", len(articles))

	titles := make([]string, len(articles))
	data := make([][]float64, len(articles))
	for i, a := range articles {
		titles[i] = a.TitleTranslated
		data[i] = a.TitleEmbedding
	}

	if len(data) < minClusterSize {
		m.log.Info("Too few articles to cluster", "articles", len(data))
		return nil
	}

	clusters, err := m.clusterer.Cluster(data, minClusterSize)
	if err != nil {
		return fmt.Errorf("failed to cluster headlines: %w", err)
	}
	if len(clusters) == 0 {
		m.log.Info("No clusters found")
		return nil
	}

	// Biggest clusters first; only the top few get labels.
	sort.Slice(clusters, func(i, j int) bool {
		return len(clusters[i].Points) > len(clusters[j].Points)
	})
	if len(clusters) > maxClusters {
		clusters = clusters[:maxClusters]
	}

	groups := make([][]string, len(clusters))
	for i, c := range clusters {
		groups[i] = representativeTitles(c, titles, data, representativesPerCluster)
	}

	labels, err := m.generateLabels(ctx, groups)
	if err != nil {
		return fmt.Errorf("failed to generate topic labels: %w", err)
	}
	if len(labels) == 0 {
		m.log.Warn("Labeling produced no topics")
		return nil
	}

	batchTime := time.Now()
	if err := m.store.Topics().InsertBatch(ctx, labels, batchTime); err != nil {
		return fmt.Errorf("failed to store topics: %w", err)
	}

	m.log.Info("Stored daily topics", "count", len(labels))
	for _, label := range labels {
		m.log.Info("Topic", "label", label)
	}
	return nil
}

// representativeTitles returns the titles of the cluster members closest to
// its centroid.
func representativeTitles(c Cluster, titles []string, data [][]float64, n int) []string {
	type member struct {
		idx  int
		dist float64
	}
	members := make([]member, 0, len(c.Points))
	for _, p := range c.Points {
		if p < 0 || p >= len(titles) {
			continue
		}
		d := 0.0
		if len(c.Centroid) > 0 {
			d = cosineDistance(c.Centroid, data[p])
		}
		members = append(members, member{idx: p, dist: d})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].dist < members[j].dist })
	if len(members) > n {
		members = members[:n]
	}
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = titles[m.idx]
	}
	return out
}

var topicLabelSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"label": {Type: genai.TypeString},
		},
		Required: []string{"label"},
	},
}

// generateLabels asks for all cluster labels in one call.
func (m *Miner) generateLabels(ctx context.Context, groups [][]string) ([]string, error) {
	var b strings.Builder
	b.WriteString("You are a news editor. Read the following groups of headlines. Each group represents a distinct news event.\n")
	b.WriteString("Your task is to generate one short (2-5 words typically), engaging topic label for each group.\n")
	b.WriteString("Some headlines may be noisy or irrelevant. Ignore them. Ignore sports and entertainment headlines.\n")
	b.WriteString("Avoid unnecessary adjectives/verbs unless necessary. Stick to the proper nouns.\n")
	b.WriteString("We especially want labels for events that are controversial.\n")
	b.WriteString("Use first and last names of people when applicable.\n")
	b.WriteString("If a label is generic (10 people killed, etc), ignore it. We want labels that call out specific events/people/places.\n")
	b.WriteString("Return a list of topic labels, at least 2 and at most 6, however many you think are relevant.\n\n")

	for i, group := range groups {
		fmt.Fprintf(&b, "--- TOPIC GROUP %d ---\n", i+1)
		for _, headline := range group {
			fmt.Fprintf(&b, "- %s\n", headline)
		}
		b.WriteString("\n")
	}

	raw, err := m.generator.GenerateText(ctx, m.model, b.String(), topicLabelSchema)
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}

	labels := make([]string, 0, len(parsed))
	for _, p := range parsed {
		if label := strings.TrimSpace(p.Label); label != "" {
			labels = append(labels, label)
		}
	}
	return labels, nil
}
