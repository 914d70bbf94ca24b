package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/embedding"
	"github.com/it-spirit/spiritsearch/metrics"
	"github.com/it-spirit/spiritsearch/schema"
	"github.com/it-spirit/spiritsearch/vectordb"
)

// CollectionError reports a single collection that failed during fan-out.
// The fan-out logs it and moves on; one bad collection never fails the
// search.
type CollectionError struct {
	Collection string
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("search: collection %s: %v", e.Collection, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// Engine fans a query out over the prioritized collections, sequentially,
// stopping as soon as the limit is reached.
type Engine struct {
	provider vectordb.Provider
	embedder embedding.Provider
	vcfg     config.VectorDBConfig
}

// NewEngine creates the search engine.
func NewEngine(provider vectordb.Provider, embedder embedding.Provider, vcfg config.VectorDBConfig) *Engine {
	return &Engine{provider: provider, embedder: embedder, vcfg: vcfg}
}

// Search runs the fan-out. Collections come from the enriched query when set,
// otherwise from PrioritizeCollections. Embedding failures degrade to scan
// mode rather than failing the request.
func (e *Engine) Search(ctx context.Context, query string, eq *schema.EnrichedQuery) ([]schema.Result, error) {
	collections := eq.Collections
	if len(collections) == 0 {
		collections = PrioritizeCollections(query, eq.Filters)
	}
	limit := eq.Limit
	if limit <= 0 {
		limit = 5
	}

	var vector []float32
	if eq.UseEmbedding && e.embedder != nil {
		v, err := e.embedder.Embed(ctx, query)
		if err != nil {
			logger.Warnf("search: embedding failed, degrading to scan mode: %v", err)
		} else {
			vector = v
		}
	}

	results := make([]schema.Result, 0, limit)
	for _, name := range collections {
		if len(results) >= limit {
			break
		}
		physical := e.vcfg.PhysicalCollection(name)
		filters := collectionFilters(name, eq.Filters)
		remaining := limit - len(results)

		var hits []vectordb.Hit
		var err error
		if vector != nil {
			hits, err = e.provider.Search(ctx, physical, vector, filters, remaining)
		} else {
			hits, err = e.provider.Scan(ctx, physical, filters, remaining)
		}
		if err != nil {
			cerr := &CollectionError{Collection: name, Err: err}
			logger.Warnf("%v, skipping", cerr)
			metrics.IncCollectionError(name)
			continue
		}
		metrics.ObserveCollectionResults(name, len(hits))
		for _, h := range hits {
			results = append(results, Normalize(name, h))
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// collectionFilters adapts the filter set to one collection. The ERP
// knowledge collections carry no client field, so a client filter there
// would match nothing; it applies to ticket/doc collections only.
func collectionFilters(collection string, filters schema.Filters) schema.Filters {
	switch collection {
	case schema.CollectionSAP, schema.CollectionNetSuite, schema.CollectionNetSuiteDummies:
		filters.Client = ""
	}
	return filters
}

// Normalize maps one raw hit onto the canonical Result shape.
func Normalize(collection string, hit vectordb.Hit) schema.Result {
	p := hit.Payload
	r := schema.Result{
		Client:      getString(p, "client"),
		ERP:         getString(p, "erp"),
		Summary:     getString(p, "summary", "title"),
		Description: getString(p, "description"),
		Content:     getString(p, "content", "text", "body"),
		Comments:    getString(p, "comments"),
		Created:     getString(p, "created", "created_at"),
		Updated:     getString(p, "updated", "updated_at"),
		Assignee:    getString(p, "assignee"),
		Key:         getString(p, "key", "ticket_key", "id"),
		URL:         getString(p, "url", "link"),
		CompanyName: getString(p, "company_name", "company"),
		CreatedTS:   getInt64(p, "created_ts"),
		Source:      collection,
		Score:       hit.Score,
	}
	if s := getString(p, "source"); s != "" {
		r.Source = s
	}
	r.Color = schema.ColorForScore(r.Score)
	return r
}

// SortByCreatedDesc orders results newest first. Used when rehydrating from
// cache, where the original retrieval order is gone.
func SortByCreatedDesc(results []schema.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.CreatedTS != 0 || b.CreatedTS != 0 {
			return a.CreatedTS > b.CreatedTS
		}
		return a.Created > b.Created
	})
}

func getString(p map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func getInt64(p map[string]any, key string) int64 {
	switch v := p[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	}
	return 0
}
