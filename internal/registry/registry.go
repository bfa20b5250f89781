// Package registry syncs declared newspaper sources into the database.
package registry

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"spectra/internal/core"
	"spectra/internal/logger"
	"spectra/internal/store"
)

// Declaration is one newspaper entry in the declaration file.
type Declaration struct {
	URL          string   `json:"url"`
	Country      string   `json:"country"`
	ISO          string   `json:"ISO"`
	Lang         string   `json:"lang"`
	CategoryURLs []string `json:"category_urls"`
	Whitelist    []string `json:"whitelist"`
}

// StableID derives a paper's identity from its URL, so re-declaring the same
// URL always maps to the same row.
func StableID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// SyncOptions controls what a sync run is allowed to remove.
type SyncOptions struct {
	PruneCategories bool
	PrunePapers     bool
	DryRun          bool
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	Upserted         int
	Categories       int
	PrunedPapers     int
	PrunedCategories int
}

// Registry reconciles paper declarations with the database.
type Registry struct {
	store *store.Store
	log   *slog.Logger
}

func New(s *store.Store) *Registry {
	return &Registry{store: s, log: logger.Get()}
}

// Load decodes a declaration file.
func Load(r io.Reader) ([]Declaration, error) {
	var decls []Declaration
	if err := json.NewDecoder(r).Decode(&decls); err != nil {
		return nil, fmt.Errorf("failed to decode declarations: %w", err)
	}
	return decls, nil
}

// Sync reconciles the declarations inside a single transaction. A dry run
// performs every statement and then rolls the transaction back, so the log
// output reflects exactly what a real run would do.
func (r *Registry) Sync(ctx context.Context, decls []Declaration, opts SyncOptions) (*SyncResult, error) {
	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result := &SyncResult{}

	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		declared[StableID(d.URL)] = true
	}

	if opts.PrunePapers {
		ids, err := tx.Papers().ListIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list papers: %w", err)
		}
		var remove []string
		for _, id := range ids {
			if !declared[id] {
				remove = append(remove, id)
			}
		}
		if len(remove) > 0 {
			r.log.Info("Pruning papers not in declaration", "count", len(remove))
			if err := tx.Papers().DeleteByIDs(ctx, remove); err != nil {
				return nil, err
			}
			result.PrunedPapers = len(remove)
		}
	}

	for _, d := range decls {
		paper := &core.Paper{
			ID:           StableID(d.URL),
			URL:          d.URL,
			Country:      d.Country,
			ISO:          d.ISO,
			Lang:         d.Lang,
			CategoryURLs: d.CategoryURLs,
			Whitelist:    d.Whitelist,
		}
		if paper.Whitelist == nil {
			paper.Whitelist = []string{}
		}

		r.log.Debug("Upserting paper", "url", d.URL, "uuid", paper.ID)
		if err := tx.Papers().Upsert(ctx, paper); err != nil {
			return nil, fmt.Errorf("failed to upsert paper %s: %w", d.URL, err)
		}
		result.Upserted++

		if opts.PruneCategories {
			pruned, err := tx.Papers().PruneCategories(ctx, paper.ID, d.CategoryURLs)
			if err != nil {
				return nil, err
			}
			result.PrunedCategories += int(pruned)
		}

		for _, url := range d.CategoryURLs {
			if err := tx.Papers().UpsertCategory(ctx, paper.ID, url); err != nil {
				return nil, fmt.Errorf("failed to upsert category %s: %w", url, err)
			}
			result.Categories++
		}
	}

	if opts.DryRun {
		r.log.Info("Dry run complete, rolling back",
			"papers", result.Upserted, "categories", result.Categories)
		return result, tx.Rollback()
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sync: %w", err)
	}
	r.log.Info("Sync complete",
		"papers", result.Upserted,
		"categories", result.Categories,
		"pruned_papers", result.PrunedPapers,
		"pruned_categories", result.PrunedCategories)
	return result, nil
}
