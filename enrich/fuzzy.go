package enrich

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fuzzy client-name matching. Names are lowercased and accent-stripped before
// comparison so "Société Générale" matches "societe generale".

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalizeName(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// levenshtein returns the edit distance between two strings, by rune.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// similarity scores two normalized strings from 0 to 100.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	return 100 * (longest - levenshtein(a, b)) / longest
}

// matchInText scans the normalized query text for a registry client name.
// An exact substring wins immediately with score 100; otherwise each name
// is compared against query token windows of its own word count and the
// best score wins at or above threshold. Candidates are scanned in order
// and ties keep the earliest.
func matchInText(query string, candidates []string, threshold int) (string, int, bool) {
	normQuery := normalizeName(query)
	toks := tokens(query)
	best, bestScore := "", -1
	for _, c := range candidates {
		name := normalizeName(c)
		if name == "" {
			continue
		}
		if strings.Contains(normQuery, name) {
			return c, 100, true
		}
		width := len(strings.Fields(name))
		if width == 0 || width > len(toks) {
			continue
		}
		for i := 0; i+width <= len(toks); i++ {
			window := strings.Join(toks[i:i+width], " ")
			if score := similarity(name, window); score > bestScore {
				best, bestScore = c, score
			}
		}
	}
	if bestScore >= threshold && best != "" {
		return best, bestScore, true
	}
	return "", bestScore, false
}

// bestMatch finds the candidate most similar to name, at or above threshold.
// Candidates are scanned in order and ties keep the earliest, so results are
// deterministic for a stable candidate list.
func bestMatch(name string, candidates []string, threshold int) (string, int, bool) {
	target := normalizeName(name)
	best, bestScore := "", -1
	for _, c := range candidates {
		score := similarity(target, normalizeName(c))
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore >= threshold && best != "" {
		return best, bestScore, true
	}
	return "", bestScore, false
}
