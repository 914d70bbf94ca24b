package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/it-spirit/spiritsearch/cache"
	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/enrich"
	"github.com/it-spirit/spiritsearch/format"
	"github.com/it-spirit/spiritsearch/fusion"
	"github.com/it-spirit/spiritsearch/metrics"
	"github.com/it-spirit/spiritsearch/schema"
	"github.com/it-spirit/spiritsearch/search"
)

// ErrorMessage is the generic failure text. The API always answers HTTP 200
// with a typed envelope; this is the Error envelope's content.
const ErrorMessage = "Une erreur interne est survenue. Veuillez réessayer dans quelques instants."

// Orchestrator wires the pipeline stages: enrich, cache lookup, collection
// fan-out, optional specialist fusion, formatting.
type Orchestrator struct {
	Enricher  *enrich.Enricher
	Engine    *search.Engine
	Cache     *cache.Cache
	Formatter *format.Formatter
	Fusion    *fusion.Engine
	Timeouts  config.StageTimeouts
}

// Handle runs the full pipeline for one request. It never returns an error:
// every outcome, including failures, is a typed response envelope.
func (o *Orchestrator) Handle(ctx context.Context, req schema.SearchRequest) *schema.SearchResponse {
	requestID := uuid.NewString()
	log := logger.WithContext(map[string]interface{}{"request_id": requestID})
	log.Infof("search: received query (%d chars)", len(req.Query))

	outFormat := schema.NormalizeFormat(req.Format)

	// Enrichment.
	start := time.Now()
	eq, err := o.enrichWithTimeout(ctx, req)
	metrics.ObserveStage("enrich", start)
	if err != nil {
		if errors.Is(err, enrich.ErrQueryTooShort) {
			log.Infof("search: query too short, asking for clarification")
			metrics.IncResponseFormat(schema.FormatClarification)
			return format.Clarification()
		}
		log.Errorf("search: enrichment failed: %v", err)
		return o.errorResponse()
	}

	// A Guide only makes sense for actionable questions. Ticket lookups
	// phrased without an actionable keyword downgrade to Detail.
	if outFormat == schema.FormatGuide && enrich.HasTicketIntent(req.Query) && !enrich.HasActionableKeyword(req.Query) {
		log.Infof("search: downgrading Guide to Detail for ticket lookup")
		outFormat = schema.FormatDetail
	}

	key := cache.Key(req.Query, eq.Filters, eq.Limit)
	meta := o.buildMeta(eq)

	// Rendered-response fast path.
	if !req.Raw {
		if entry, ok := o.Cache.GetFormat(ctx, outFormat, key); ok {
			log.Infof("search: format cache hit (%s)", outFormat)
			return o.respond(outFormat, entry, withMode(entry.Meta, meta, "cache"))
		}
	}

	// Raw results: cache, then fan-out.
	results, fromCache := o.Cache.GetRaw(ctx, key)
	if fromCache {
		log.Infof("search: raw cache hit (%d results)", len(results))
		search.SortByCreatedDesc(results)
	} else {
		start = time.Now()
		results, err = o.searchWithTimeout(ctx, req.Query, eq)
		metrics.ObserveStage("search", start)
		if err != nil {
			log.Errorf("search: fan-out failed: %v", err)
			return o.errorResponse()
		}
		log.Infof("search: fan-out returned %d results", len(results))
		o.Cache.SetRaw(key, cache.RawEntry{
			Query:        req.Query,
			Filters:      eq.Filters,
			Limit:        eq.Limit,
			UseEmbedding: eq.UseEmbedding,
			Results:      results,
		})
	}

	if req.Raw {
		metrics.IncResponseFormat(outFormat)
		return &schema.SearchResponse{
			Format:  outFormat,
			Content: results,
			Sources: format.Sources(results),
			Meta:    meta,
		}
	}

	fuse := len(results) > 0 && o.Fusion != nil && fusion.ShouldFuse(req, eq.Filters.ERP)

	// Detail without fusion treats the raw records as already formatted:
	// return straight after the raw stage, skipping the format cache.
	if outFormat == schema.FormatDetail && !fuse && len(results) > 0 {
		log.Infof("search: detail short-circuit (%d results)", len(results))
		metrics.IncResponseFormat(outFormat)
		return &schema.SearchResponse{
			Format:  outFormat,
			Content: results,
			Sources: format.Sources(results),
			Meta:    meta,
		}
	}

	fused := ""
	fusionFailed := false
	if fuse {
		start = time.Now()
		fused, err = o.fuseWithTimeout(ctx, req.Query, eq.Filters.ERP, results)
		metrics.ObserveStage("fusion", start)
		if err != nil {
			if errors.Is(err, fusion.ErrNoSpecialist) {
				log.Infof("search: no specialist assistant available, degrading")
				fused = fusion.NoSpecialistMessage
			} else {
				log.Warnf("search: fusion degraded: %v", err)
				fused = fusion.ErrorMessage
			}
			fusionFailed = true
		} else {
			meta.Mode = "deepresearch"
		}
	}

	start = time.Now()
	entry := o.Formatter.Render(ctx, outFormat, req.Query, results, fused)
	metrics.ObserveStage("format", start)

	// Never cache a response that carries an inline fusion degradation.
	if !fusionFailed {
		o.Cache.SetFormat(outFormat, key, &schema.FormattedEntry{
			Content: entry.Content,
			Sources: entry.Sources,
			Meta:    meta,
		})
	}
	return o.respond(outFormat, entry, meta)
}

func (o *Orchestrator) enrichWithTimeout(ctx context.Context, req schema.SearchRequest) (*schema.EnrichedQuery, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout(o.Timeouts.EnrichMS, 5*time.Second))
	defer cancel()
	return o.Enricher.Enrich(ctx, enrich.Request{
		Query:      req.Query,
		Client:     req.Client,
		ERP:        req.ERP,
		RecentOnly: req.RecentOnly,
		Limit:      req.Limit,
	})
}

func (o *Orchestrator) searchWithTimeout(ctx context.Context, query string, eq *schema.EnrichedQuery) ([]schema.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout(o.Timeouts.SearchMS, 10*time.Second))
	defer cancel()
	return o.Engine.Search(ctx, query, eq)
}

func (o *Orchestrator) fuseWithTimeout(ctx context.Context, query, erp string, results []schema.Result) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout(o.Timeouts.FusionMS, 60*time.Second))
	defer cancel()
	return o.Fusion.Fuse(ctx, query, erp, results)
}

func stageTimeout(ms int, fallback time.Duration) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func (o *Orchestrator) buildMeta(eq *schema.EnrichedQuery) *schema.ResponseMeta {
	meta := &schema.ResponseMeta{
		ERP:          eq.Filters.ERP,
		Mode:         "standard",
		UseEmbedding: &eq.UseEmbedding,
	}
	if d := eq.Filters.Date; d != nil {
		switch {
		case d.From != "" && d.To != "":
			meta.DateFilter = "du " + d.From + " au " + d.To
		case d.From != "":
			meta.DateFilter = "depuis " + d.From
		case d.To != "":
			meta.DateFilter = "jusqu'au " + d.To
		}
	}
	return meta
}

// withMode merges cached meta with the freshly computed one and stamps the
// serving mode.
func withMode(cached, fresh *schema.ResponseMeta, mode string) *schema.ResponseMeta {
	meta := fresh
	if cached != nil {
		meta = cached
	}
	meta.Mode = mode
	return meta
}

func (o *Orchestrator) respond(outFormat string, entry *schema.FormattedEntry, meta *schema.ResponseMeta) *schema.SearchResponse {
	metrics.IncResponseFormat(outFormat)
	return &schema.SearchResponse{
		Format:  outFormat,
		Content: entry.Content,
		Sources: entry.Sources,
		Meta:    meta,
	}
}

func (o *Orchestrator) errorResponse() *schema.SearchResponse {
	metrics.IncResponseFormat(schema.FormatError)
	return &schema.SearchResponse{
		Format:  schema.FormatError,
		Content: []string{ErrorMessage},
		Sources: "",
	}
}
