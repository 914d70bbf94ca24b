package vectordb

import (
	"context"
	"fmt"
	"time"

	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/schema"
)

// Hit is one point returned by a collection query. Score is nil for plain
// scans, which carry no similarity at all.
type Hit struct {
	Score   *float64
	Payload map[string]any
}

// Provider is the vector store behind the knowledge collections.
type Provider interface {
	// Search runs a filtered kNN query against one collection.
	Search(ctx context.Context, collection string, vector []float32, filters schema.Filters, limit int) ([]Hit, error)
	// Scan reads points matching the filters without a query vector.
	Scan(ctx context.Context, collection string, filters schema.Filters, limit int) ([]Hit, error)
	Close() error
}

// NewProvider creates a vector store provider from configuration.
func NewProvider(cfg config.VectorDBConfig) (Provider, error) {
	switch cfg.Provider {
	case "qdrant":
		return newQdrantProvider(cfg)
	case "milvus":
		return newMilvusProvider(cfg)
	default:
		return nil, fmt.Errorf("vectordb: unsupported provider: %s", cfg.Provider)
	}
}

// dateBounds converts the YYYY-MM-DD date filter to unix-second bounds on the
// created_ts payload field. The upper bound is exclusive of nothing: the lte
// day is counted whole.
func dateBounds(d *schema.DateRange) (gte, lte *float64) {
	if d == nil {
		return nil, nil
	}
	if d.From != "" {
		if t, err := time.Parse("2006-01-02", d.From); err == nil {
			v := float64(t.Unix())
			gte = &v
		}
	}
	if d.To != "" {
		if t, err := time.Parse("2006-01-02", d.To); err == nil {
			v := float64(t.AddDate(0, 0, 1).Unix() - 1)
			lte = &v
		}
	}
	return gte, lte
}
