package ui

import (
	"sort"
	"strings"
	"unicode"

	"swashark/internal/model"
)

type scoredIdx struct {
	idx   int
	score int
}

// fuzzyMatchScore returns (score, ok). Lower score is better.
// Matching is a case-insensitive subsequence match; runs of consecutive
// characters and matches at word starts cost less.
func fuzzyMatchScore(needle, haystack string) (int, bool) {
	n := []rune(strings.ToLower(needle))
	h := []rune(strings.ToLower(haystack))
	if len(n) == 0 {
		return 0, true
	}

	score := 0
	j := 0
	last := -2
	for i := 0; i < len(h) && j < len(n); i++ {
		if h[i] != n[j] {
			continue
		}
		cost := i
		if i == last+1 {
			cost = 0
		} else if i == 0 || !unicode.IsLetter(h[i-1]) && !unicode.IsDigit(h[i-1]) {
			cost = i / 2
		}
		score += cost
		last = i
		j++
	}
	if j != len(n) {
		return 0, false
	}
	return score, true
}

// filterEndpoints returns the indexes of eps matching needle, best first.
// An empty needle keeps every endpoint in catalog order.
func filterEndpoints(eps []model.Endpoint, needle string) []int {
	needle = strings.TrimSpace(needle)
	out := make([]int, 0, len(eps))
	if needle == "" {
		for i := range eps {
			out = append(out, i)
		}
		return out
	}

	var scored []scoredIdx
	for i, ep := range eps {
		cand := ep.Method + " " + ep.Path + " " + firstNonEmpty(ep.Summary, ep.OperationID) + " " + ep.Tag
		if s, ok := fuzzyMatchScore(needle, cand); ok {
			scored = append(scored, scoredIdx{idx: i, score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score < scored[j].score
	})
	for _, s := range scored {
		out = append(out, s.idx)
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
