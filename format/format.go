package format

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/llm"
	"github.com/it-spirit/spiritsearch/schema"
)

// User-facing strings. The support team works in French.
const (
	NoResultsMessage     = "Aucun résultat trouvé pour cette requête."
	ClarificationMessage = "Votre question est trop courte ou trop vague. Pouvez-vous préciser votre demande ?"
)

// NoResultsSuggestions follow the no-results message in the response body.
var NoResultsSuggestions = []string{
	"Essayez de reformuler votre question.",
	"Vérifiez l'orthographe du nom du client.",
	"Élargissez la période de recherche.",
}

const summaryMaxLen = 200

// Formatter renders raw results into the requested response format. The LLM
// is optional: Summary degrades to truncation when it is absent or failing.
type Formatter struct {
	llm llm.Provider
}

// New creates a Formatter.
func New(provider llm.Provider) *Formatter {
	return &Formatter{llm: provider}
}

// Render produces the formatted entry for one format. fused, when non-empty,
// is the deep-research synthesis and leads the content.
func (f *Formatter) Render(ctx context.Context, format, query string, results []schema.Result, fused string) *schema.FormattedEntry {
	if len(results) == 0 && fused == "" {
		return NoResults()
	}
	var content []string
	switch format {
	case schema.FormatDetail:
		content = f.renderDetail(results)
	case schema.FormatGuide:
		content = f.renderGuide(results)
	default:
		content = f.renderSummary(ctx, query, results)
	}
	if fused != "" {
		content = append([]string{fused}, content...)
	}
	return &schema.FormattedEntry{
		Content: content,
		Sources: Sources(results),
	}
}

// NoResults is the fixed empty-result entry: message plus suggestions, no
// sources.
func NoResults() *schema.FormattedEntry {
	content := append([]string{NoResultsMessage}, NoResultsSuggestions...)
	return &schema.FormattedEntry{Content: content, Sources: ""}
}

// Clarification is the envelope for queries too ambiguous to search.
func Clarification() *schema.SearchResponse {
	return &schema.SearchResponse{
		Format:  schema.FormatClarification,
		Content: []string{ClarificationMessage},
		Sources: "",
	}
}

// Sources joins the distinct result sources, in result order.
func Sources(results []schema.Result) string {
	seen := map[string]bool{}
	var out []string
	for _, r := range results {
		if r.Source == "" || seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		out = append(out, r.Source)
	}
	return strings.Join(out, ", ")
}

// renderSummary synthesizes a short answer via the LLM, falling back to
// per-result truncation.
func (f *Formatter) renderSummary(ctx context.Context, query string, results []schema.Result) []string {
	if f.llm != nil {
		bodies := make([]string, 0, len(results))
		for _, r := range results {
			bodies = append(bodies, r.Title()+": "+truncate(r.Body(), summaryMaxLen))
		}
		text, err := f.llm.Chat(ctx, "You are a concise IT support summarizer.", llm.SummaryPrompt(query, bodies))
		if err == nil && strings.TrimSpace(text) != "" {
			return []string{strings.TrimSpace(text)}
		}
		if err != nil {
			logger.Warnf("format: summary synthesis failed, using truncation: %v", err)
		}
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		line := r.Title()
		if body := truncate(r.Body(), summaryMaxLen); body != "" && body != line {
			line += " : " + body
		}
		out = append(out, line)
	}
	return out
}

// renderDetail builds one markdown block per result, with the similarity
// line and a metadata footer.
func (f *Formatter) renderDetail(results []schema.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		var b strings.Builder
		title := r.Title()
		if r.Key != "" && r.Key != title {
			fmt.Fprintf(&b, "### [%s] %s\n\n", r.Key, title)
		} else {
			fmt.Fprintf(&b, "### %s\n\n", title)
		}
		fmt.Fprintf(&b, "%s\n\n", similarityLine(r))
		if body := r.Body(); body != "" {
			fmt.Fprintf(&b, "%s\n\n", body)
		}
		if r.Comments != "" {
			fmt.Fprintf(&b, "**Commentaires :** %s\n\n", r.Comments)
		}
		var footer []string
		if r.Client != "" {
			footer = append(footer, "Client : "+r.Client)
		}
		if r.Assignee != "" {
			footer = append(footer, "Assigné à : "+r.Assignee)
		}
		if r.Created != "" {
			footer = append(footer, "Créé le : "+r.Created)
		}
		if r.Source != "" {
			footer = append(footer, "Source : "+r.Source)
		}
		if r.URL != "" {
			footer = append(footer, "Lien : "+r.URL)
		}
		if len(footer) > 0 {
			b.WriteString("_" + strings.Join(footer, " | ") + "_")
		}
		out = append(out, strings.TrimSpace(b.String()))
	}
	return out
}

func similarityLine(r schema.Result) string {
	if r.Score == nil {
		return "⚪ Pertinence : non évaluée"
	}
	icon := map[string]string{
		schema.ColorGreen:  "🟢",
		schema.ColorOrange: "🟠",
		schema.ColorRed:    "🔴",
	}[r.Color]
	if icon == "" {
		icon = "⚪"
	}
	return fmt.Sprintf("%s Pertinence : %.0f%%", icon, *r.Score*100)
}

// Step markers recognized by the guide renderer.
var stepPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*\d+[\.\)]\s+`),
	regexp.MustCompile(`(?mi)^\s*step\s+\d+\s*[:.]`),
	regexp.MustCompile(`(?mi)^\s*étape\s+\d+\s*[:.]`),
}

// renderGuide turns the best result into a numbered procedure. It splits on
// explicit step markers first, then on paragraphs when there are between 3
// and 10 of them, and otherwise returns the procedure undivided.
func (f *Formatter) renderGuide(results []schema.Result) []string {
	if len(results) == 0 {
		return nil
	}
	body := results[0].Body()
	if steps := splitSteps(body); len(steps) > 1 {
		out := make([]string, 0, len(steps)+1)
		out = append(out, "📋 "+results[0].Title())
		for i, s := range steps {
			out = append(out, fmt.Sprintf("%d. %s", i+1, s))
		}
		return out
	}
	paragraphs := splitParagraphs(body)
	if len(paragraphs) >= 3 && len(paragraphs) <= 10 {
		out := make([]string, 0, len(paragraphs)+1)
		out = append(out, "📋 "+results[0].Title())
		for i, p := range paragraphs {
			out = append(out, fmt.Sprintf("%d. %s", i+1, p))
		}
		return out
	}
	return []string{"📋 " + results[0].Title(), body}
}

// splitSteps cuts the text at step markers, dropping the markers themselves.
func splitSteps(text string) []string {
	for _, re := range stepPatterns {
		locs := re.FindAllStringIndex(text, -1)
		if len(locs) < 2 {
			continue
		}
		var steps []string
		for i, loc := range locs {
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			step := strings.TrimSpace(text[loc[1]:end])
			if step != "" {
				steps = append(steps, step)
			}
		}
		if len(steps) > 1 {
			return steps
		}
	}
	return nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
