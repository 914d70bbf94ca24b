package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/registry"
	"github.com/it-spirit/spiritsearch/schema"
)

type mockLLM struct {
	reply string
	err   error
	calls int
}

func (m *mockLLM) Chat(ctx context.Context, system, user string) (string, error) {
	m.calls++
	return m.reply, m.err
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Parse(strings.NewReader(
		"Client;Consultant;Statut;JIRA;ZENDESK;CONFLUENCE;ERP\n" +
			"Acme Corp;Alice;Actif;ACME;1;A;SAP\n" +
			"Société Générale;Bob;Actif;SG;2;B;NetSuite\n" +
			"Globex;Carl;Actif;GLX;3;C;\n"))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func newTestEnricher(t *testing.T, provider *mockLLM) *Enricher {
	t.Helper()
	cfg := config.SearchConfig{DefaultLimit: 5, UseEmbedding: true, RecentWindowDays: 180, FuzzyThreshold: 80}
	e := New(provider, testRegistry(t), cfg)
	e.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestQueryTooShort(t *testing.T) {
	e := newTestEnricher(t, &mockLLM{})
	_, err := e.Enrich(context.Background(), Request{Query: "sap err"})
	if !errors.Is(err, ErrQueryTooShort) {
		t.Fatalf("expected ErrQueryTooShort, got %v", err)
	}
}

func TestEnrichParsesModelOutput(t *testing.T) {
	m := &mockLLM{reply: `{"collections":["JIRA"],"filters":{"client":"Acme Corp","erp":"SAP"},"use_embedding":true,"limit":3}`}
	e := newTestEnricher(t, m)
	eq, err := e.Enrich(context.Background(), Request{Query: "problème de facturation chez Acme"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Client != "Acme Corp" || eq.Filters.ERP != schema.ERPSAP {
		t.Errorf("unexpected filters: %+v", eq.Filters)
	}
	if eq.Limit != 3 {
		t.Errorf("expected limit 3 from extraction, got %d", eq.Limit)
	}
}

func TestEnrichRecoversFencedJSON(t *testing.T) {
	m := &mockLLM{reply: "Here you go:\n```json\n{\"filters\":{\"erp\":\"netsuite\"}}\n```"}
	e := newTestEnricher(t, m)
	eq, err := e.Enrich(context.Background(), Request{Query: "comment configurer les taxes"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.ERP != schema.ERPNetSuite {
		t.Errorf("expected NetSuite from recovered JSON, got %q", eq.Filters.ERP)
	}
}

func TestEnrichDegradesOnLLMFailure(t *testing.T) {
	m := &mockLLM{err: errors.New("rate limited")}
	e := newTestEnricher(t, m)
	eq, err := e.Enrich(context.Background(), Request{Query: "erreur de synchronisation SAP", Client: "Acme Corp"})
	if err != nil {
		t.Fatalf("enrich should degrade, got %v", err)
	}
	if eq.Filters.Client != "Acme Corp" {
		t.Errorf("expected explicit client kept, got %q", eq.Filters.Client)
	}
	if eq.Filters.ERP != schema.ERPSAP {
		t.Errorf("expected ERP from query token, got %q", eq.Filters.ERP)
	}
	if eq.Limit != 5 {
		t.Errorf("expected default limit, got %d", eq.Limit)
	}
}

func TestExplicitFieldsWinOverExtraction(t *testing.T) {
	m := &mockLLM{reply: `{"filters":{"client":"Globex","erp":"SAP"}}`}
	e := newTestEnricher(t, m)
	eq, err := e.Enrich(context.Background(), Request{Query: "migration des données comptables", Client: "Société Générale", ERP: "netsuite", Limit: 2})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Client != "Société Générale" {
		t.Errorf("explicit client should win, got %q", eq.Filters.Client)
	}
	if eq.Filters.ERP != schema.ERPNetSuite {
		t.Errorf("explicit erp should win, got %q", eq.Filters.ERP)
	}
	if eq.Limit != 2 {
		t.Errorf("explicit limit should win, got %d", eq.Limit)
	}
}

func TestFuzzyClientResolvesToCanonicalAndInjectsERP(t *testing.T) {
	m := &mockLLM{reply: `{}`}
	e := newTestEnricher(t, m)
	eq, err := e.Enrich(context.Background(), Request{Query: "probleme de paiement recurrent", Client: "societe generale"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Client != "Société Générale" {
		t.Errorf("expected canonical registry spelling, got %q", eq.Filters.Client)
	}
	if eq.Filters.ERP != schema.ERPNetSuite {
		t.Errorf("expected ERP injected from registry, got %q", eq.Filters.ERP)
	}
}

func TestClientResolvedFromQueryText(t *testing.T) {
	reg, err := registry.Parse(strings.NewReader("Client;ERP\nAZERGO;SAP\n"))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cfg := config.SearchConfig{DefaultLimit: 5, RecentWindowDays: 180, FuzzyThreshold: 80}
	e := New(nil, reg, cfg)
	e.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	eq, err := e.Enrich(context.Background(), Request{Query: "tickets AZERGO"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Client != "AZERGO" {
		t.Errorf("expected client resolved from query text, got %q", eq.Filters.Client)
	}
	if eq.Filters.ERP != schema.ERPSAP {
		t.Errorf("expected ERP injected from registry, got %q", eq.Filters.ERP)
	}
	if eq.Filters.Date == nil || eq.Filters.Date.From != "2024-12-17" {
		t.Errorf("ticket wording should inject the sliding window, got %+v", eq.Filters.Date)
	}
}

func TestClientMisspelledInQueryText(t *testing.T) {
	reg, err := registry.Parse(strings.NewReader("Client;ERP\nAZERGO;SAP\n"))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	e := New(nil, reg, config.SearchConfig{DefaultLimit: 5, FuzzyThreshold: 80})
	eq, err := e.Enrich(context.Background(), Request{Query: "problème de paie chez AZERGHO"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Client != "AZERGO" {
		t.Errorf("expected fuzzy match from query text, got %q", eq.Filters.Client)
	}
}

func TestQueryTextClientBelowThresholdIgnored(t *testing.T) {
	e := newTestEnricher(t, &mockLLM{reply: `{}`})
	eq, err := e.Enrich(context.Background(), Request{Query: "comment configurer la paie"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Client != "" {
		t.Errorf("no registry name in the query, got client %q", eq.Filters.Client)
	}
}

func TestRecencyKeywordInjectsDateBound(t *testing.T) {
	m := &mockLLM{reply: `{}`}
	e := newTestEnricher(t, m)
	eq, err := e.Enrich(context.Background(), Request{Query: "derniers problèmes de facturation"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Date == nil || eq.Filters.Date.From != "2024-12-17" {
		t.Errorf("recency wording should inject the sliding window, got %+v", eq.Filters.Date)
	}
}

func TestRecencyKeywordKeepsExplicitDate(t *testing.T) {
	m := &mockLLM{reply: `{"filters":{"date":{"gte":"2023-01-01"}}}`}
	e := newTestEnricher(t, m)
	eq, err := e.Enrich(context.Background(), Request{Query: "tickets de facturation"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Date.From != "2023-01-01" {
		t.Errorf("extracted date must not be overwritten, got %q", eq.Filters.Date.From)
	}
}

func TestRecentOnlyInjectsDateBound(t *testing.T) {
	m := &mockLLM{reply: `{}`}
	e := newTestEnricher(t, m)
	eq, err := e.Enrich(context.Background(), Request{Query: "incidents récents sur la paie", RecentOnly: true})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Date == nil {
		t.Fatal("expected a date filter")
	}
	// 180 days before the pinned clock
	if eq.Filters.Date.From != "2024-12-17" {
		t.Errorf("unexpected cutoff %q", eq.Filters.Date.From)
	}
}

func TestRecentOnlyTightensExistingBound(t *testing.T) {
	m := &mockLLM{reply: `{"filters":{"date":{"gte":"2023-01-01","lte":"2025-01-01"}}}`}
	e := newTestEnricher(t, m)
	eq, err := e.Enrich(context.Background(), Request{Query: "incidents récents sur la paie", RecentOnly: true})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if eq.Filters.Date.From != "2024-12-17" {
		t.Errorf("recentOnly should tighten the lower bound, got %q", eq.Filters.Date.From)
	}
	if eq.Filters.Date.To != "2025-01-01" {
		t.Errorf("upper bound should be kept, got %q", eq.Filters.Date.To)
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"prefix {\"a\":{\"b\":2}} suffix", `{"a":{"b":2}}`, true},
		{`{"s":"brace } inside"}`, `{"s":"brace } inside"}`, true},
		{"no object here", "", false},
		{"{unbalanced", "", false},
	}
	for _, c := range cases {
		got, ok := extractJSONObject(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("extractJSONObject(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDetectERPTokenWholeWord(t *testing.T) {
	if got := DetectERPToken("le sapin de noël"); got != "" {
		t.Errorf("substring must not match, got %q", got)
	}
	if got := DetectERPToken("erreur SAP à la validation"); got != schema.ERPSAP {
		t.Errorf("expected SAP, got %q", got)
	}
	if got := DetectERPToken("question NetSuite sur les taxes"); got != schema.ERPNetSuite {
		t.Errorf("expected NetSuite, got %q", got)
	}
}

func TestSimilarityAccentInsensitive(t *testing.T) {
	if s := similarity(normalizeName("Société Générale"), normalizeName("societe generale")); s != 100 {
		t.Errorf("expected 100, got %d", s)
	}
}
