package fusion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/it-spirit/spiritsearch/assistant"
	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/enrich"
	"github.com/it-spirit/spiritsearch/llm"
	"github.com/it-spirit/spiritsearch/metrics"
	"github.com/it-spirit/spiritsearch/schema"
)

// ErrorMessage is rendered inline when deep research was requested but the
// fusion pipeline failed. The caller still returns the internal results.
const ErrorMessage = "⚠️ La recherche approfondie a échoué, voici uniquement les résultats internes."

// NoSpecialistMessage is rendered inline when deep research was requested
// but no specialist assistant exists for the resolved ERP. Unlike
// ErrorMessage it reports a configuration gap, not a failure.
const NoSpecialistMessage = "ℹ️ Aucun assistant spécialisé n'est disponible pour cet ERP, voici les résultats internes."

// ErrNoSpecialist marks a deep-research request whose ERP has no configured
// assistant.
var ErrNoSpecialist = errors.New("fusion: no specialist assistant configured")

// tokenBudget caps the internal summaries fed to the synthesis prompt.
const tokenBudget = 3000

// ProviderError reports a failure in one of the fusion providers.
type ProviderError struct {
	Stage string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fusion: %s: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// uselessPhrases flag specialist replies that carry no actual answer. The
// assistants respond in French; a couple of English fallbacks are included
// for mixed-language prompts.
var uselessPhrases = []string{
	"je ne sais pas",
	"je n'ai pas trouvé",
	"je n'ai pas trouve",
	"aucune information",
	"je ne dispose pas",
	"je ne peux pas répondre",
	"i don't know",
	"i do not have",
	"no information",
}

// IsUseless reports whether a specialist reply is a non-answer.
func IsUseless(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range uselessPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ShouldFuse decides whether the deep-research path runs. An explicit flag
// always wins; otherwise fusion auto-enables for generic functional
// questions on a resolvable ERP, but not for ticket lookups.
func ShouldFuse(req schema.SearchRequest, erp string) bool {
	if req.DeepResearch != nil {
		return *req.DeepResearch
	}
	if erp == "" {
		return false
	}
	return enrich.IsFunctionalQuestion(req.Query) && !enrich.HasTicketIntent(req.Query)
}

// Engine runs the specialist + synthesis fusion.
type Engine struct {
	assistants assistant.Provider
	llm        llm.Provider
	cfg        config.AssistantsConfig
}

// NewEngine creates the fusion engine.
func NewEngine(assistants assistant.Provider, provider llm.Provider, cfg config.AssistantsConfig) *Engine {
	return &Engine{assistants: assistants, llm: provider, cfg: cfg}
}

// Fuse asks the ERP specialist, drops non-answers, and synthesizes one text
// from the specialist reply and the internal results.
func (e *Engine) Fuse(ctx context.Context, query, erp string, results []schema.Result) (string, error) {
	assistantID := e.cfg.AssistantID(erp)
	if assistantID == "" {
		metrics.IncFusionOutcome("skipped")
		return "", &ProviderError{Stage: "specialist", Err: ErrNoSpecialist}
	}

	specialist, err := e.assistants.Ask(ctx, assistantID, query)
	if err != nil {
		metrics.IncFusionOutcome("error")
		return "", &ProviderError{Stage: "specialist", Err: err}
	}
	if IsUseless(specialist) {
		logger.Infof("fusion: specialist reply discarded as non-answer")
		metrics.IncFusionOutcome("useless")
		specialist = ""
	}

	summaries := internalSummaries(results)
	if specialist == "" && len(summaries) == 0 {
		metrics.IncFusionOutcome("empty")
		return "", &ProviderError{Stage: "synthesis", Err: fmt.Errorf("nothing to synthesize")}
	}

	fused, err := e.llm.Chat(ctx, "You are a senior IT support consultant.", llm.SynthesisPrompt(query, summaries, specialist))
	if err != nil {
		metrics.IncFusionOutcome("error")
		return "", &ProviderError{Stage: "synthesis", Err: err}
	}
	metrics.IncFusionOutcome("fused")
	return strings.TrimSpace(fused), nil
}

// internalSummaries renders the results as short numbered entries, trimmed
// to the token budget.
func internalSummaries(results []schema.Result) []string {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warnf("fusion: tokenizer unavailable, using untrimmed summaries: %v", err)
	}
	used := 0
	var out []string
	for _, r := range results {
		entry := r.Title()
		if body := r.Body(); body != "" && body != entry {
			entry += ": " + body
		}
		if r.Key != "" && !strings.Contains(entry, r.Key) {
			entry = "[" + r.Key + "] " + entry
		}
		if enc != nil {
			n := len(enc.Encode(entry, nil, nil))
			if used+n > tokenBudget {
				break
			}
			used += n
		}
		out = append(out, entry)
	}
	return out
}
