package vectordb

import (
	"context"
	"crypto/tls"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/schema"
)

// qdrantProvider talks to Qdrant over gRPC.
type qdrantProvider struct {
	conn   *grpc.ClientConn
	points pb.PointsClient
	apiKey string
}

func newQdrantProvider(cfg config.VectorDBConfig) (*qdrantProvider, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("vectordb: dial qdrant %s: %w", addr, err)
	}
	return &qdrantProvider{
		conn:   conn,
		points: pb.NewPointsClient(conn),
		apiKey: cfg.APIKey,
	}, nil
}

func (q *qdrantProvider) Close() error {
	return q.conn.Close()
}

func (q *qdrantProvider) withAuth(ctx context.Context) context.Context {
	if q.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", q.apiKey)
}

func (q *qdrantProvider) Search(ctx context.Context, collection string, vector []float32, filters schema.Filters, limit int) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter:         buildFilter(filters),
	}
	resp, err := q.points.Search(q.withAuth(ctx), req)
	if err != nil {
		return nil, fmt.Errorf("vectordb: qdrant search %s: %w", collection, err)
	}
	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		score := float64(r.GetScore())
		hits = append(hits, Hit{Score: &score, Payload: payloadToMap(r.GetPayload())})
	}
	return hits, nil
}

func (q *qdrantProvider) Scan(ctx context.Context, collection string, filters schema.Filters, limit int) ([]Hit, error) {
	l := uint32(limit)
	req := &pb.ScrollPoints{
		CollectionName: collection,
		Limit:          &l,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter:         buildFilter(filters),
	}
	resp, err := q.points.Scroll(q.withAuth(ctx), req)
	if err != nil {
		return nil, fmt.Errorf("vectordb: qdrant scroll %s: %w", collection, err)
	}
	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		hits = append(hits, Hit{Payload: payloadToMap(r.GetPayload())})
	}
	return hits, nil
}

// buildFilter translates the structured filters into Qdrant must-conditions.
// Returns nil when no condition applies.
func buildFilter(filters schema.Filters) *pb.Filter {
	var must []*pb.Condition
	if filters.Client != "" {
		must = append(must, fieldMatch("client", filters.Client))
	}
	if filters.ERP != "" {
		must = append(must, fieldMatch("erp", filters.ERP))
	}
	if gte, lte := dateBounds(filters.Date); gte != nil || lte != nil {
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   "created_ts",
					Range: &pb.Range{Gte: gte, Lte: lte},
				},
			},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return &pb.Filter{Must: must}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// payloadToMap converts a Qdrant payload into plain Go values.
func payloadToMap(payload map[string]*pb.Value) map[string]any {
	m := make(map[string]any, len(payload))
	for k, v := range payload {
		m[k] = valueToAny(v)
	}
	return m
}

func valueToAny(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	case *pb.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			items = append(items, valueToAny(item))
		}
		return items
	case *pb.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}
