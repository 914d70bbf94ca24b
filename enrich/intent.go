package enrich

import (
	"strings"
)

// Lightweight intent detection over the raw query text. French and English
// keywords, matched on whole words after lowercasing and accent stripping.

var ticketWords = []string{
	"ticket", "tickets", "incident", "incidents", "jira", "zendesk", "demande", "demandes",
}

var actionableWords = []string{
	"how", "comment", "configure", "configurer", "configuration",
	"fix", "corriger", "resoudre", "resolve",
	"procedure", "procedures", "steps", "etape", "etapes",
	"error", "erreur", "erreurs", "solution", "guide", "installer", "install", "setup", "parametrer",
}

var recencyWords = []string{
	"recent", "recents", "recente", "recentes", "recemment",
	"dernier", "derniers", "derniere", "dernieres",
}

var questionWords = []string{
	"how", "comment", "pourquoi", "why", "what", "quel", "quelle", "quels", "quelles", "que", "est-ce",
}

func tokens(query string) []string {
	normalized := normalizeName(query)
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '-'
	})
}

func containsAny(toks []string, words []string) bool {
	for _, t := range toks {
		for _, w := range words {
			if t == w {
				return true
			}
		}
	}
	return false
}

// HasTicketIntent reports whether the query asks about tickets or incidents.
func HasTicketIntent(query string) bool {
	return containsAny(tokens(query), ticketWords)
}

// HasActionableKeyword reports whether the query asks for a procedure or fix,
// the precondition for a useful Guide rendering.
func HasActionableKeyword(query string) bool {
	return containsAny(tokens(query), actionableWords)
}

// SuggestsRecency reports whether the query implies interest in fresh
// records. Ticket lookups count as recency intent.
func SuggestsRecency(query string) bool {
	toks := tokens(query)
	return containsAny(toks, ticketWords) || containsAny(toks, recencyWords)
}

// IsFunctionalQuestion reports whether the query reads like a generic
// product/functional question rather than a lookup of specific records.
func IsFunctionalQuestion(query string) bool {
	toks := tokens(query)
	return containsAny(toks, questionWords) || strings.Contains(query, "?")
}

// DetectERPToken finds a whole-word ERP mention in the query ("sap",
// "netsuite"). Substrings inside longer words do not count.
func DetectERPToken(query string) string {
	for _, t := range tokens(query) {
		switch t {
		case "sap":
			return "SAP"
		case "netsuite":
			return "NetSuite"
		}
	}
	return ""
}
