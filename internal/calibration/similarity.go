package calibration

import (
	"strings"
	"unicode/utf8"
)

// minTokenLength is the shortest token that counts toward similarity
const minTokenLength = 4

// Similarity returns the Jaccard overlap of the qualifying word sets of a and b.
// It returns 0 when either text has no token longer than three characters.
func Similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(token) >= minTokenLength {
			set[token] = struct{}{}
		}
	}
	return set
}
