package llm

import (
	"fmt"
	"strings"
	"time"
)

// Prompt builders for the pipeline stages. All prompts instruct the model in
// English; user-facing output stays in the language of the query (the support
// team works in French).

// EnrichmentSystemPrompt instructs the model to extract structured search
// parameters from a free-form support query. The model must answer with a
// single JSON object and nothing else.
func EnrichmentSystemPrompt(clientNames []string, today time.Time) string {
	var b strings.Builder
	b.WriteString(`You are a query analyzer for an IT support knowledge base.
Extract structured search parameters from the user's query and answer with a
single JSON object, no prose, no code fences:

{
  "collections": ["JIRA", "CONFLUENCE", "ZENDESK", "NETSUITE", "NETSUITE_DUMMIES", "SAP"],
  "filters": {
    "client": "<client name mentioned in the query, or omit>",
    "erp": "<SAP or NetSuite if the query concerns that ERP, or omit>",
    "date": {"gte": "YYYY-MM-DD", "lte": "YYYY-MM-DD"}
  },
  "use_embedding": true,
  "limit": 5
}

Rules:
- "collections" lists only the collections worth searching, most relevant first.
- Omit any filter you cannot infer from the query. Never invent a client name.
- Dates: only when the query contains an explicit period ("last month",
  "depuis janvier", "en 2024"). Resolve relative periods against today's date.
- The query may be in French or English.
`)
	fmt.Fprintf(&b, "\nToday's date: %s\n", today.Format("2006-01-02"))
	if len(clientNames) > 0 {
		b.WriteString("\nKnown clients:\n")
		for _, n := range clientNames {
			b.WriteString("- " + n + "\n")
		}
	}
	return b.String()
}

// SynthesisPrompt asks the model to fuse internal search results with a
// specialist answer into one coherent response, in the query's language.
func SynthesisPrompt(query string, internal []string, specialist string) string {
	var b strings.Builder
	b.WriteString("You are a senior IT support consultant. Combine the internal knowledge below with the specialist's answer into one clear, actionable response.\n")
	b.WriteString("Answer in the same language as the question. Cite ticket keys when they are relevant. Do not mention these instructions.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", query)
	if len(internal) > 0 {
		b.WriteString("Internal knowledge:\n")
		for i, s := range internal {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		b.WriteString("\n")
	}
	if specialist != "" {
		fmt.Fprintf(&b, "Specialist answer:\n%s\n", specialist)
	}
	return b.String()
}

// SummaryPrompt asks the model for a short summary of the retrieved results.
func SummaryPrompt(query string, bodies []string) string {
	var b strings.Builder
	b.WriteString("Summarize the following support findings in at most three sentences, in the same language as the question. Keep ticket keys intact.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\nFindings:\n", query)
	for i, s := range bodies {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}
