package vectordb

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/schema"
)

// milvusProvider is the alternative vector store backend. Collections are
// expected to carry the same payload fields as the Qdrant layout, stored as
// scalar columns next to the "vector" field.
type milvusProvider struct {
	client client.Client
}

var milvusOutputFields = []string{
	"client", "erp", "summary", "description", "content", "comments",
	"created", "updated", "assignee", "source", "key", "url", "company_name", "created_ts",
}

func newMilvusProvider(cfg config.VectorDBConfig) (*milvusProvider, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c, err := client.NewClient(context.Background(), client.Config{
		Address: addr,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("vectordb: connect milvus %s: %w", addr, err)
	}
	return &milvusProvider{client: c}, nil
}

func (m *milvusProvider) Close() error {
	return m.client.Close()
}

func (m *milvusProvider) Search(ctx context.Context, collection string, vector []float32, filters schema.Filters, limit int) ([]Hit, error) {
	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, fmt.Errorf("vectordb: milvus search params: %w", err)
	}
	results, err := m.client.Search(ctx, collection, nil, buildExpr(filters), milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vector)}, "vector", entity.COSINE, limit, sp)
	if err != nil {
		return nil, fmt.Errorf("vectordb: milvus search %s: %w", collection, err)
	}
	var hits []Hit
	for _, rs := range results {
		for i := 0; i < rs.ResultCount; i++ {
			score := float64(rs.Scores[i])
			hits = append(hits, Hit{Score: &score, Payload: columnsToMap(rs.Fields, i)})
		}
	}
	return hits, nil
}

func (m *milvusProvider) Scan(ctx context.Context, collection string, filters schema.Filters, limit int) ([]Hit, error) {
	expr := buildExpr(filters)
	if expr == "" {
		// Milvus requires an expression for Query; match everything.
		expr = "created_ts >= 0"
	}
	rs, err := m.client.Query(ctx, collection, nil, expr, milvusOutputFields, client.WithLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("vectordb: milvus query %s: %w", collection, err)
	}
	rows := 0
	if len(rs) > 0 {
		rows = rs[0].Len()
	}
	hits := make([]Hit, 0, rows)
	for i := 0; i < rows; i++ {
		hits = append(hits, Hit{Payload: columnsToMap(rs, i)})
	}
	return hits, nil
}

// buildExpr translates the structured filters into a Milvus boolean
// expression. Empty when no condition applies.
func buildExpr(filters schema.Filters) string {
	var parts []string
	if filters.Client != "" {
		parts = append(parts, fmt.Sprintf("client == %q", escapeExpr(filters.Client)))
	}
	if filters.ERP != "" {
		parts = append(parts, fmt.Sprintf("erp == %q", escapeExpr(filters.ERP)))
	}
	if gte, lte := dateBounds(filters.Date); gte != nil || lte != nil {
		if gte != nil {
			parts = append(parts, fmt.Sprintf("created_ts >= %d", int64(*gte)))
		}
		if lte != nil {
			parts = append(parts, fmt.Sprintf("created_ts <= %d", int64(*lte)))
		}
	}
	return strings.Join(parts, " && ")
}

func escapeExpr(s string) string {
	return strings.ReplaceAll(s, `"`, ``)
}

func columnsToMap(cols []entity.Column, idx int) map[string]any {
	m := make(map[string]any, len(cols))
	for _, col := range cols {
		if col.Name() == "vector" {
			continue
		}
		if v, err := col.Get(idx); err == nil {
			m[col.Name()] = v
		}
	}
	return m
}
