package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/llm"
	"github.com/it-spirit/spiritsearch/registry"
	"github.com/it-spirit/spiritsearch/schema"
)

// minQueryLen is the hard floor below which a query is considered too
// ambiguous to search.
const minQueryLen = 10

// ErrQueryTooShort marks a query under the ambiguity floor. The caller turns
// it into a clarification response, not an error envelope.
var ErrQueryTooShort = errors.New("enrich: query too short")

// ParseError reports model output that could not be decoded as the expected
// JSON object, even after brace recovery.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("enrich: parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Request carries the caller-supplied search parameters into enrichment.
type Request struct {
	Query      string
	Client     string
	ERP        string
	RecentOnly bool
	Limit      int
}

// Enricher turns a free-form query into a structured EnrichedQuery: an LLM
// extraction pass followed by deterministic local refinement. The LLM is
// advisory; every extracted field is validated or overridden locally.
type Enricher struct {
	provider llm.Provider
	reg      *registry.Registry
	cfg      config.SearchConfig
	now      func() time.Time
}

// New creates an Enricher.
func New(provider llm.Provider, reg *registry.Registry, cfg config.SearchConfig) *Enricher {
	return &Enricher{provider: provider, reg: reg, cfg: cfg, now: time.Now}
}

// Enrich analyzes the query. It returns ErrQueryTooShort for queries under
// the ambiguity floor; LLM or parse failures degrade to local refinement
// only.
func (e *Enricher) Enrich(ctx context.Context, req Request) (*schema.EnrichedQuery, error) {
	q := strings.TrimSpace(req.Query)
	if utf8.RuneCountInString(q) < minQueryLen {
		return nil, ErrQueryTooShort
	}

	var extracted extraction
	if e.provider != nil {
		system := llm.EnrichmentSystemPrompt(e.reg.Names(), e.now())
		raw, err := e.provider.Chat(ctx, system, q)
		if err != nil {
			logger.Warnf("enrich: extraction call failed, using local refinement only: %v", err)
		} else if parsed, perr := parseExtraction(raw); perr != nil {
			logger.Warnf("enrich: %v", perr)
		} else {
			extracted = *parsed
		}
	}

	eq := e.refine(q, req, extracted)
	return eq, nil
}

// extraction mirrors the JSON object the model is asked to produce.
type extraction struct {
	Collections []string `json:"collections"`
	Filters     struct {
		Client string            `json:"client"`
		ERP    string            `json:"erp"`
		Date   *schema.DateRange `json:"date"`
	} `json:"filters"`
	UseEmbedding *bool `json:"use_embedding"`
	Limit        int   `json:"limit"`
}

// parseExtraction decodes the model output. Strict unmarshal first; when the
// model wrapped the object in prose or code fences, recover the first
// balanced top-level JSON object and retry.
func parseExtraction(raw string) (*extraction, error) {
	trimmed := strings.TrimSpace(raw)
	var out extraction
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return &out, nil
	}
	recovered, ok := extractJSONObject(trimmed)
	if !ok {
		return nil, &ParseError{Raw: raw, Err: errors.New("no JSON object found")}
	}
	if err := json.Unmarshal([]byte(recovered), &out); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return &out, nil
}

// extractJSONObject returns the first balanced {...} span, tracking string
// literals so braces inside values do not break the count.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// refine applies the deterministic rules on top of whatever the model
// extracted: explicit request fields win, the registry resolves clients and
// ERPs, and recency intent injects the sliding date bound.
func (e *Enricher) refine(query string, req Request, ex extraction) *schema.EnrichedQuery {
	eq := &schema.EnrichedQuery{
		Filters: schema.Filters{Date: ex.Filters.Date},
	}

	// Client: explicit request value beats extraction; both go through the
	// registry fuzzy match to land on the canonical spelling. With neither,
	// registry names are matched against the query text itself.
	client := strings.TrimSpace(req.Client)
	if client == "" {
		client = strings.TrimSpace(ex.Filters.Client)
	}
	if client != "" {
		if canonical, score, ok := bestMatch(client, e.reg.Names(), e.threshold()); ok {
			if canonical != client {
				logger.Debugf("enrich: client %q matched registry entry %q (score %d)", client, canonical, score)
			}
			client = canonical
		}
	} else if canonical, score, ok := matchInText(query, e.reg.Names(), e.threshold()); ok {
		logger.Debugf("enrich: client %q detected in query text (score %d)", canonical, score)
		client = canonical
	}
	if client != "" {
		eq.Filters.Client = client
	}

	// ERP: explicit request, then extraction, then a whole-word mention in
	// the query, then the registry assignment of the resolved client.
	erp := normalizeERPValue(req.ERP)
	if erp == "" {
		erp = normalizeERPValue(ex.Filters.ERP)
	}
	if erp == "" {
		erp = DetectERPToken(query)
	}
	if erp == "" && eq.Filters.Client != "" {
		erp = e.reg.ERPFor(eq.Filters.Client)
	}
	eq.Filters.ERP = erp

	// recentOnly narrows the created date to the sliding window. Without the
	// flag, recency wording in the query injects the window when no date
	// filter exists yet.
	if req.RecentOnly {
		cutoff := e.now().AddDate(0, 0, -e.windowDays()).Format("2006-01-02")
		if eq.Filters.Date == nil {
			eq.Filters.Date = &schema.DateRange{From: cutoff}
		} else if eq.Filters.Date.From == "" || eq.Filters.Date.From < cutoff {
			eq.Filters.Date.From = cutoff
		}
	} else if eq.Filters.Date == nil && SuggestsRecency(query) {
		cutoff := e.now().AddDate(0, 0, -e.windowDays()).Format("2006-01-02")
		eq.Filters.Date = &schema.DateRange{From: cutoff}
	}

	eq.UseEmbedding = e.cfg.UseEmbedding
	if ex.UseEmbedding != nil {
		eq.UseEmbedding = *ex.UseEmbedding
	}

	switch {
	case req.Limit > 0:
		eq.Limit = req.Limit
	case ex.Limit > 0:
		eq.Limit = ex.Limit
	default:
		eq.Limit = e.cfg.DefaultLimit
	}

	return eq
}

func (e *Enricher) threshold() int {
	if e.cfg.FuzzyThreshold > 0 {
		return e.cfg.FuzzyThreshold
	}
	return 80
}

func (e *Enricher) windowDays() int {
	if e.cfg.RecentWindowDays > 0 {
		return e.cfg.RecentWindowDays
	}
	return 180
}

func normalizeERPValue(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sap":
		return schema.ERPSAP
	case "netsuite":
		return schema.ERPNetSuite
	}
	return ""
}
