package schema

// Shared data model for the support-search pipeline. Every retrieved document,
// whatever its source collection, is normalized into a Result before the rest
// of the system touches it.

// Known logical collection names. The physical collection behind each name is
// resolved from configuration.
const (
	CollectionJira            = "JIRA"
	CollectionConfluence      = "CONFLUENCE"
	CollectionZendesk         = "ZENDESK"
	CollectionNetSuite        = "NETSUITE"
	CollectionNetSuiteDummies = "NETSUITE_DUMMIES"
	CollectionSAP             = "SAP"
)

// ERP systems form a closed set.
const (
	ERPSAP      = "SAP"
	ERPNetSuite = "NetSuite"
)

// Response formats.
const (
	FormatSummary       = "Summary"
	FormatDetail        = "Detail"
	FormatGuide         = "Guide"
	FormatError         = "Error"
	FormatClarification = "Clarification"
)

// AllCollections returns every known collection, ticket/doc sources first.
func AllCollections() []string {
	return []string{
		CollectionJira, CollectionConfluence, CollectionZendesk,
		CollectionSAP, CollectionNetSuite, CollectionNetSuiteDummies,
	}
}

// TicketDocCollections returns the client-facing ticket and documentation
// collections, in priority order.
func TicketDocCollections() []string {
	return []string{CollectionJira, CollectionConfluence, CollectionZendesk}
}

// ERPCollections returns the knowledge collections dedicated to an ERP.
func ERPCollections(erp string) []string {
	switch erp {
	case ERPSAP:
		return []string{CollectionSAP}
	case ERPNetSuite:
		return []string{CollectionNetSuite, CollectionNetSuiteDummies}
	}
	return nil
}

// NormalizeFormat maps unknown format values to Summary.
func NormalizeFormat(format string) string {
	switch format {
	case FormatSummary, FormatDetail, FormatGuide:
		return format
	}
	return FormatSummary
}

// DateRange bounds the "created" field. Dates are YYYY-MM-DD strings; the
// numeric created_ts payload field carries the same instant for range filters.
type DateRange struct {
	From string `json:"gte,omitempty"`
	To   string `json:"lte,omitempty"`
}

// Filters is the structured filter set attached to a search.
type Filters struct {
	Client string     `json:"client,omitempty"`
	ERP    string     `json:"erp,omitempty"`
	Date   *DateRange `json:"date,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.Client == "" && f.ERP == "" && f.Date == nil
}

// EnrichedQuery is the per-request output of the enrichment stage: where to
// search, how to filter, and how many hits to collect. Collections are ordered
// by search priority.
type EnrichedQuery struct {
	Collections  []string `json:"collections"`
	Filters      Filters  `json:"filters"`
	UseEmbedding bool     `json:"use_embedding"`
	Limit        int      `json:"limit"`
}

// Result is the canonical shape of one retrieved hit, regardless of which
// collection produced it.
type Result struct {
	Client      string   `json:"client,omitempty"`
	ERP         string   `json:"erp,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Content     string   `json:"content,omitempty"`
	Comments    string   `json:"comments,omitempty"`
	Created     string   `json:"created,omitempty"`
	Updated     string   `json:"updated,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Source      string   `json:"source,omitempty"`
	Key         string   `json:"key,omitempty"`
	URL         string   `json:"url,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	CreatedTS   int64    `json:"created_ts,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	Color       string   `json:"color,omitempty"`
}

// Score tiers. Gray means the hit came from a plain scan with no similarity
// score at all.
const (
	ColorGreen  = "green"
	ColorOrange = "orange"
	ColorRed    = "red"
	ColorGray   = "gray"
)

// ColorForScore derives the display tier for a similarity score.
func ColorForScore(score *float64) string {
	if score == nil {
		return ColorGray
	}
	switch {
	case *score >= 0.80:
		return ColorGreen
	case *score >= 0.50:
		return ColorOrange
	}
	return ColorRed
}

// Body returns the main text of the result. Precedence: content, then
// description, then summary.
func (r Result) Body() string {
	if r.Content != "" {
		return r.Content
	}
	if r.Description != "" {
		return r.Description
	}
	return r.Summary
}

// Title returns the heading text of the result. Precedence: summary, then
// key, then company name.
func (r Result) Title() string {
	if r.Summary != "" {
		return r.Summary
	}
	if r.Key != "" {
		return r.Key
	}
	return r.CompanyName
}

// SearchRequest is the inbound API body.
type SearchRequest struct {
	Query        string `json:"query"`
	Client       string `json:"client,omitempty"`
	ERP          string `json:"erp,omitempty"`
	Format       string `json:"format,omitempty"`
	RecentOnly   bool   `json:"recentOnly,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Raw          bool   `json:"raw,omitempty"`
	// DeepResearch is tri-state: nil lets the pipeline decide.
	DeepResearch *bool `json:"deepresearch,omitempty"`
}

// ResponseMeta carries the resolved search context back to the caller.
type ResponseMeta struct {
	ERP          string `json:"erp,omitempty"`
	DateFilter   string `json:"dateFilter,omitempty"`
	Mode         string `json:"mode,omitempty"`
	UseEmbedding *bool  `json:"use_embedding,omitempty"`
}

// SearchResponse is the outbound envelope. Content is either a list of
// rendered strings or a list of Result objects (raw/Detail paths).
type SearchResponse struct {
	Format  string        `json:"format"`
	Content any           `json:"content"`
	Sources string        `json:"sources"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// FormattedEntry is the cached value of a fully rendered response.
type FormattedEntry struct {
	Content any           `json:"content"`
	Sources string        `json:"sources"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}
