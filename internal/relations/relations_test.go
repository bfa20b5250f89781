package relations

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"spectra/internal/core"
	"spectra/internal/store"
)

type fakeArticleRepo struct {
	candidates []store.ReferenceCandidate
}

func (r *fakeArticleRepo) Exists(ctx context.Context, url string) (bool, error) { return false, nil }
func (r *fakeArticleRepo) Create(ctx context.Context, a *core.Article, overwrite bool) error {
	return nil
}
func (r *fakeArticleRepo) ListUntranslated(ctx context.Context, paperID string) ([]core.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) SetTranslation(ctx context.Context, url, translated string) error {
	return nil
}
func (r *fakeArticleRepo) ListUnembedded(ctx context.Context, since time.Time) ([]core.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) SetEmbedding(ctx context.Context, url string, embedding []float64) error {
	return nil
}
func (r *fakeArticleRepo) ListRecentEmbedded(ctx context.Context, since time.Time) ([]core.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) ListReferenceCandidates(ctx context.Context, since time.Time) ([]store.ReferenceCandidate, error) {
	return r.candidates, nil
}

type fakeReferenceRepo struct {
	upserts   []*core.CountryReference
	refreshes int
}

func (r *fakeReferenceRepo) Upsert(ctx context.Context, ref *core.CountryReference) error {
	r.upserts = append(r.upserts, ref)
	return nil
}

func (r *fakeReferenceRepo) RefreshComparisons(ctx context.Context) error {
	r.refreshes++
	return nil
}

type fakeStore struct {
	articles   *fakeArticleRepo
	references *fakeReferenceRepo
}

func (s *fakeStore) Articles() store.ArticleRepository     { return s.articles }
func (s *fakeStore) References() store.ReferenceRepository { return s.references }

// scriptedGenerator returns one canned response per matched title substring.
type scriptedGenerator struct {
	responses map[string]string
}

func (g *scriptedGenerator) GenerateText(ctx context.Context, model, prompt string, schema *genai.Schema) (string, error) {
	for key, resp := range g.responses {
		if strings.Contains(prompt, key) {
			return resp, nil
		}
	}
	return "", fmt.Errorf("no scripted response for prompt: %.60s", prompt)
}

func newFakeStore(candidates ...store.ReferenceCandidate) *fakeStore {
	return &fakeStore{
		articles:   &fakeArticleRepo{candidates: candidates},
		references: &fakeReferenceRepo{},
	}
}

func TestRunExtractsAndRefreshes(t *testing.T) {
	st := newFakeStore(
		store.ReferenceCandidate{URL: "https://a.example/1", Title: "Beijing announces new tariffs", SourceISO: "USA"},
		store.ReferenceCandidate{URL: "https://a.example/2", Title: "Local mayor opens park", SourceISO: "USA"},
	)
	gen := &scriptedGenerator{responses: map[string]string{
		"Beijing":     `{"target_country_iso": "CHN", "favorability": -1}`,
		"Local mayor": `{"target_country_iso": null, "favorability": 0}`,
	}}

	if err := NewExtractor(st, gen, "flash-lite").Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(st.references.upserts) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(st.references.upserts))
	}
	ref := st.references.upserts[0]
	if ref.ArticleURL != "https://a.example/1" || ref.SourceCountryISO != "USA" ||
		ref.TargetCountryISO != "CHN" || ref.Favorability != -1 {
		t.Errorf("unexpected reference: %+v", ref)
	}
	if st.references.refreshes != 1 {
		t.Errorf("expected 1 view refresh, got %d", st.references.refreshes)
	}
}

func TestRunSkipsWithoutRefreshing(t *testing.T) {
	st := newFakeStore(
		store.ReferenceCandidate{URL: "https://a.example/1", Title: "Local mayor opens park", SourceISO: "USA"},
		store.ReferenceCandidate{URL: "https://a.example/2", Title: "", SourceISO: "USA"},
		store.ReferenceCandidate{URL: "https://a.example/3", Title: "Something", SourceISO: ""},
	)
	gen := &scriptedGenerator{responses: map[string]string{
		"Local mayor": `{"target_country_iso": null, "favorability": 0}`,
	}}

	if err := NewExtractor(st, gen, "flash-lite").Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(st.references.upserts) != 0 {
		t.Errorf("expected no references, got %d", len(st.references.upserts))
	}
	if st.references.refreshes != 0 {
		t.Error("view refreshed although nothing was processed")
	}
}

func TestExtractOneValidation(t *testing.T) {
	cases := []struct {
		name      string
		response  string
		wantISO   string
		wantFavor int
	}{
		{"valid", `{"target_country_iso": "RUS", "favorability": 1}`, "RUS", 1},
		{"lowercase normalized", `{"target_country_iso": "rus", "favorability": 0}`, "RUS", 0},
		{"two-letter code dropped", `{"target_country_iso": "RU", "favorability": 1}`, "", 1},
		{"long code dropped", `{"target_country_iso": "RUSSIA", "favorability": -1}`, "", -1},
		{"out-of-range favorability clamped", `{"target_country_iso": "CHN", "favorability": 5}`, "CHN", 0},
		{"missing favorability defaults", `{"target_country_iso": "CHN", "favorability": null}`, "CHN", 0},
		{"null country", `{"target_country_iso": null, "favorability": 0}`, "", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &scriptedGenerator{responses: map[string]string{"headline": tc.response}}
			e := NewExtractor(newFakeStore(), gen, "flash-lite")

			iso, favor, err := e.extractOne(context.Background(), "some headline", "USA")
			if err != nil {
				t.Fatalf("extractOne failed: %v", err)
			}
			if iso != tc.wantISO {
				t.Errorf("iso = %q, want %q", iso, tc.wantISO)
			}
			if favor != tc.wantFavor {
				t.Errorf("favorability = %d, want %d", favor, tc.wantFavor)
			}
		})
	}
}

func TestRunAbsorbsGeneratorFailure(t *testing.T) {
	st := newFakeStore(
		store.ReferenceCandidate{URL: "https://a.example/1", Title: "Unscripted headline", SourceISO: "USA"},
		store.ReferenceCandidate{URL: "https://a.example/2", Title: "Beijing announces new tariffs", SourceISO: "USA"},
	)
	gen := &scriptedGenerator{responses: map[string]string{
		"Beijing": `{"target_country_iso": "CHN", "favorability": 0}`,
	}}

	if err := NewExtractor(st, gen, "flash-lite").Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(st.references.upserts) != 1 {
		t.Errorf("expected the surviving headline to be stored, got %d references", len(st.references.upserts))
	}
}
