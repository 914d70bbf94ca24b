package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/it-spirit/spiritsearch/schema"
)

// Key derives the deterministic cache key for a search. The hash covers the
// normalized query text, the structured filters, and the limit; maps marshal
// with sorted keys, so filter order can never change the hash.
func Key(query string, filters schema.Filters, limit int) string {
	payload := map[string]any{
		"query":  strings.ToLower(strings.TrimSpace(query)),
		"filter": filterMap(filters),
		"limit":  limit,
	}
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// filterMap flattens Filters into a map of only the set fields, so an absent
// filter and an empty filter hash identically.
func filterMap(f schema.Filters) map[string]any {
	m := map[string]any{}
	if f.Client != "" {
		m["client"] = f.Client
	}
	if f.ERP != "" {
		m["erp"] = f.ERP
	}
	if f.Date != nil {
		d := map[string]any{}
		if f.Date.From != "" {
			d["gte"] = f.Date.From
		}
		if f.Date.To != "" {
			d["lte"] = f.Date.To
		}
		if len(d) > 0 {
			m["date"] = d
		}
	}
	return m
}
