package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/it-spirit/spiritsearch/cache"
	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/enrich"
	"github.com/it-spirit/spiritsearch/feedback"
	"github.com/it-spirit/spiritsearch/format"
	"github.com/it-spirit/spiritsearch/orchestrator"
	"github.com/it-spirit/spiritsearch/registry"
	"github.com/it-spirit/spiritsearch/schema"
	"github.com/it-spirit/spiritsearch/search"
	"github.com/it-spirit/spiritsearch/vectordb"
)

type stubVectorDB struct {
	hits map[string][]vectordb.Hit
}

func (s *stubVectorDB) Search(ctx context.Context, collection string, vector []float32, filters schema.Filters, limit int) ([]vectordb.Hit, error) {
	return s.Scan(ctx, collection, filters, limit)
}

func (s *stubVectorDB) Scan(ctx context.Context, collection string, filters schema.Filters, limit int) ([]vectordb.Hit, error) {
	hits := s.hits[collection]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *stubVectorDB) Close() error { return nil }

func newTestServer(t *testing.T, withFeedback bool) *Server {
	t.Helper()
	reg, err := registry.Parse(strings.NewReader("Client;ERP\nAcme Corp;SAP\n"))
	if err != nil {
		t.Fatal(err)
	}
	db := &stubVectorDB{hits: map[string][]vectordb.Hit{
		"JIRA": {{Payload: map[string]any{"key": "ACME-1", "summary": "Facture bloquée", "content": "Le batch échoue."}}},
	}}
	orch := &orchestrator.Orchestrator{
		Enricher:  enrich.New(nil, reg, config.SearchConfig{DefaultLimit: 5, RecentWindowDays: 180, FuzzyThreshold: 80}),
		Engine:    search.NewEngine(db, nil, config.VectorDBConfig{}),
		Cache:     cache.New(config.CacheConfig{RawTTLSeconds: 60, FormatTTLSeconds: 60}, nil, nil),
		Formatter: format.New(nil),
	}
	var fb *feedback.Store
	if withFeedback {
		sqldb, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { sqldb.Close() })
		if fb, err = feedback.NewStore(sqldb); err != nil {
			t.Fatal(err)
		}
	}
	return New(config.ServerConfig{}, orch, fb)
}

func postJSON(t *testing.T, s *Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestLiveness(t *testing.T) {
	s := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSearchEndpointReturnsEnvelope(t *testing.T) {
	s := newTestServer(t, false)
	resp := postJSON(t, s, "/api/search", schema.SearchRequest{Query: "facture bloquée chez Acme"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var envelope schema.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Format != schema.FormatSummary {
		t.Errorf("expected Summary, got %q", envelope.Format)
	}
	if envelope.Sources != "JIRA" {
		t.Errorf("unexpected sources %q", envelope.Sources)
	}
}

func TestSearchTooShortStillHTTP200(t *testing.T) {
	s := newTestServer(t, false)
	resp := postJSON(t, s, "/api/search", schema.SearchRequest{Query: "sap"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ambiguous query must stay HTTP 200, got %d", resp.StatusCode)
	}
	var envelope schema.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Format != schema.FormatClarification {
		t.Errorf("expected Clarification, got %q", envelope.Format)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	s := newTestServer(t, false)
	for _, body := range []any{schema.SearchRequest{}, schema.SearchRequest{Query: "   "}} {
		resp := postJSON(t, s, "/api/search", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("missing query must be rejected with 400, got %d", resp.StatusCode)
		}
	}
}

func TestSearchMalformedBody(t *testing.T) {
	s := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	s := newTestServer(t, true)
	resp := postJSON(t, s, "/api/feedback", feedback.Entry{Query: "facture bloquée", Format: "Summary", Rating: 4})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	bad := postJSON(t, s, "/api/feedback", feedback.Entry{Query: "", Rating: 9})
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid feedback, got %d", bad.StatusCode)
	}
}

func TestFeedbackUnavailableWithoutStore(t *testing.T) {
	s := newTestServer(t, false)
	resp := postJSON(t, s, "/api/feedback", feedback.Entry{Query: "q", Rating: 3})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}
