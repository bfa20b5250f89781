package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spectra/internal/config"
	"spectra/internal/core"
)

type fakeQuery struct {
	record *core.SpectrumRecord
	err    error
	calls  int
}

func (f *fakeQuery) Execute(ctx context.Context, query, dateStart, dateEnd string) (*core.SpectrumRecord, error) {
	f.calls++
	return f.record, f.err
}

type fakeTopics struct {
	topics []core.DailyTopic
	err    error
}

func (f *fakeTopics) InsertBatch(ctx context.Context, topics []string, at time.Time) error {
	return nil
}

func (f *fakeTopics) TopicDate(ctx context.Context, topic string) (string, bool, error) {
	return "", false, nil
}

func (f *fakeTopics) ListRecent(ctx context.Context, days int) ([]core.DailyTopic, error) {
	return f.topics, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func testRecord() *core.SpectrumRecord {
	name := "Intervention vs Sovereignty"
	desc := "How coverage frames foreign involvement."
	point := 2
	summary := "US coverage leans interventionist."
	return &core.SpectrumRecord{
		SpectrumName:        &name,
		SpectrumDescription: &desc,
		SpectrumPoints: []core.SpectrumPoint{
			{PointID: 1, Label: "Pro-intervention", Description: "Supports involvement."},
			{PointID: 2, Label: "Pro-sovereignty", Description: "Opposes involvement."},
		},
		Articles: map[string]core.CountryArticles{
			"USA": {
				Country: "United States",
				Summary: &summary,
				Articles: []core.CountryArticle{
					{Title: "Headline", URL: "https://example.com/1", PublishAt: "2026-08-25", Lang: "en", PointID: &point},
				},
			},
		},
	}
}

func newTestServer(q QueryExecutor, topics *fakeTopics, pinger fakePinger) *Server {
	return New(q, topics, pinger, config.Server{Host: "127.0.0.1", Port: 0})
}

func queryURL() string {
	return "/api/query?query=ukraine+war&date_start=2026-08-22&date_end=2026-08-25"
}

func TestQueryEndpointServesRecord(t *testing.T) {
	s := newTestServer(&fakeQuery{record: testRecord()}, &fakeTopics{}, fakePinger{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, queryURL(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=14400" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("CDN-Cache-Control"); got != "public, s-maxage=14400" {
		t.Errorf("CDN-Cache-Control = %q", got)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("ETag header missing")
	}

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if decoded["spectrum_name"] != "Intervention vs Sovereignty" {
		t.Errorf("spectrum_name = %v", decoded["spectrum_name"])
	}
	articles, ok := decoded["articles"].(map[string]any)
	if !ok || articles["USA"] == nil {
		t.Errorf("articles missing USA entry: %v", decoded["articles"])
	}
}

func TestQueryEndpointETagRoundTrip(t *testing.T) {
	s := newTestServer(&fakeQuery{record: testRecord()}, &fakeTopics{}, fakePinger{})

	first := httptest.NewRecorder()
	s.Router().ServeHTTP(first, httptest.NewRequest(http.MethodGet, queryURL(), nil))
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no etag on first response")
	}

	second := httptest.NewRecorder()
	s.Router().ServeHTTP(second, httptest.NewRequest(http.MethodGet, queryURL(), nil))
	if second.Header().Get("ETag") != etag {
		t.Errorf("etag unstable across identical responses: %q vs %q", etag, second.Header().Get("ETag"))
	}

	conditional := httptest.NewRequest(http.MethodGet, queryURL(), nil)
	conditional.Header.Set("If-None-Match", etag)
	third := httptest.NewRecorder()
	s.Router().ServeHTTP(third, conditional)
	if third.Code != http.StatusNotModified {
		t.Errorf("conditional request status = %d, want 304", third.Code)
	}
	if third.Body.Len() != 0 {
		t.Errorf("304 response must have no body, got %q", third.Body.String())
	}
}

func TestQueryEndpointRequiresParameters(t *testing.T) {
	q := &fakeQuery{record: testRecord()}
	s := newTestServer(q, &fakeTopics{}, fakePinger{})

	for _, path := range []string{
		"/api/query",
		"/api/query?query=x",
		"/api/query?query=x&date_start=2026-08-22",
		"/api/query?date_start=2026-08-22&date_end=2026-08-25",
	} {
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid error body: %v", path, err)
		}
		if body["error"] != "Missing required query parameters: query, date_start, date_end" {
			t.Errorf("%s: error = %q", path, body["error"])
		}
	}
	if q.calls != 0 {
		t.Errorf("query executed %d times despite missing parameters", q.calls)
	}
}

func TestQueryEndpointReportsFailure(t *testing.T) {
	s := newTestServer(&fakeQuery{err: fmt.Errorf("search backend down")}, &fakeTopics{}, fakePinger{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, queryURL(), nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body["error"] != "search backend down" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestTopicsEndpoint(t *testing.T) {
	topics := &fakeTopics{topics: []core.DailyTopic{
		{ID: 1, Topic: "Ukraine ceasefire talks"},
		{ID: 2, Topic: "Semiconductor export controls"},
	}}
	s := newTestServer(&fakeQuery{}, topics, fakePinger{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/topics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp TopicsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(resp.Topics) != 2 || resp.Topics[0] != "Ukraine ceasefire talks" {
		t.Errorf("unexpected topics: %v", resp.Topics)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeQuery{}, &fakeTopics{}, fakePinger{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	down := newTestServer(&fakeQuery{}, &fakeTopics{}, fakePinger{err: fmt.Errorf("connection refused")})
	rec = httptest.NewRecorder()
	down.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d, want 503", rec.Code)
	}
}
