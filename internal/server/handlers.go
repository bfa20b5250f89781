package server

import (
	"encoding/json"
	"net/http"

	"spectra/internal/query"
)

// cacheMaxAge is how long clients and CDNs may reuse a query response,
// in seconds. Four hours matches the precompute cadence.
const cacheMaxAge = "14400"

// handleQuery handles GET /api/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	dateStart := r.URL.Query().Get("date_start")
	dateEnd := r.URL.Query().Get("date_end")

	if q == "" || dateStart == "" || dateEnd == "" {
		s.respondError(w, http.StatusBadRequest,
			"Missing required query parameters: query, date_start, date_end")
		return
	}

	record, err := s.query.Execute(r.Context(), q, dateStart, dateEnd)
	if err != nil {
		s.log.Error("Query execution failed", "query", q, "error", err)
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body, err := query.CanonicalJSON(record)
	if err != nil {
		s.log.Error("Failed to encode query response", "error", err)
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	etag := query.ETag(body)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age="+cacheMaxAge)
	w.Header().Set("CDN-Cache-Control", "public, s-maxage="+cacheMaxAge)
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.log.Error("Failed to write query response", "error", err)
	}
}

// TopicsResponse lists recently mined topics.
type TopicsResponse struct {
	Topics []string `json:"topics"`
}

// handleTopics handles GET /api/topics
func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.topics.ListRecent(r.Context(), 1)
	if err != nil {
		s.log.Error("Failed to list topics", "error", err)
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := TopicsResponse{Topics: make([]string, 0, len(topics))}
	for _, t := range topics {
		resp.Topics = append(resp.Topics, t.Topic)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.pinger.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
