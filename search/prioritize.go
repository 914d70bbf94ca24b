package search

import (
	"github.com/it-spirit/spiritsearch/enrich"
	"github.com/it-spirit/spiritsearch/schema"
)

// PrioritizeCollections decides which collections to search and in what
// order. This is the single authority on collection ordering; the fan-out
// walks the returned list sequentially and stops once the limit is reached,
// so earlier collections preempt later ones.
//
// Rules, in order:
//  1. A whole-word ERP mention in the query searches the ticket/doc
//     collections first, then that ERP's collections.
//  2. A resolved ERP filter applies the same ordering with the resolved
//     value.
//  3. A client filter with no resolvable ERP searches ticket/doc first,
//     then both ERP sets.
//  4. No filter at all searches everything, ticket/doc first.
func PrioritizeCollections(query string, filters schema.Filters) []string {
	erp := enrich.DetectERPToken(query)
	if erp == "" {
		erp = filters.ERP
	}
	if erp != "" {
		return append(schema.TicketDocCollections(), schema.ERPCollections(erp)...)
	}
	if filters.Client != "" {
		out := schema.TicketDocCollections()
		out = append(out, schema.ERPCollections(schema.ERPSAP)...)
		out = append(out, schema.ERPCollections(schema.ERPNetSuite)...)
		return out
	}
	return schema.AllCollections()
}
