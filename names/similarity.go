// Package names scores how closely two person-name strings match after
// normalization. The score feeds the verification decision engine.
package names

import (
	"strings"

	"github.com/agext/levenshtein"
)

// MatchThreshold is the minimum similarity at which two names are
// considered the same person's name. Shared with the decision engine.
const MatchThreshold = 0.8

// tokenFloor is the minimum per-token similarity that still contributes
// to the score; weaker token matches count as zero.
const tokenFloor = 0.8

// Normalize trims, uppercases, collapses internal whitespace runs and
// folds the letter Ё to Е, which OCR and manual entry use
// interchangeably.
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "Ё", "Е")
}

// Similarity returns a score in [0,1] for two free-text names.
//
// Identical normalized strings score 1.0. With an equal number of word
// tokens the names are compared position by position, so a swapped
// given/family name order degrades the score. With differing token
// counts the whole strings are compared by edit distance. This is a
// deliberate position-sensitive heuristic.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}

	tokensA := strings.Split(na, " ")
	tokensB := strings.Split(nb, " ")
	if len(tokensA) != len(tokensB) {
		return editSimilarity(na, nb)
	}

	var points float64
	for i := range tokensA {
		if tokensA[i] == tokensB[i] {
			points++
			continue
		}
		if s := editSimilarity(tokensA[i], tokensB[i]); s > tokenFloor {
			points += s
		}
	}
	return points / float64(len(tokensA))
}

// Match reports whether the two names are similar enough to belong to
// the same person.
func Match(a, b string) bool {
	return Similarity(a, b) >= MatchThreshold
}

// editSimilarity is the normalized Levenshtein similarity
// 1 - distance/max(len), with lengths counted in runes.
func editSimilarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.Distance(a, b, nil)
	return 1.0 - float64(dist)/float64(maxLen)
}
