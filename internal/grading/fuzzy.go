package grading

import (
	"strings"
)

// FreeResponseMax is the top score a free-response answer can earn.
const FreeResponseMax = 3

// Similarity bands for the offline fuzzy grader.
const (
	closeMatchThreshold   = 0.85
	partialMatchThreshold = 0.60
)

// NormalizeResponse lowercases, trims, and collapses inner whitespace so
// "Anaphase " and "anaphase" compare equal.
func NormalizeResponse(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ScoreFreeResponse grades a free-response answer locally on the 0..3
// scale: 3 for a normalized exact match, 2 for a close match, 1 for a
// partial match, 0 otherwise. The best score across accepted answers wins.
func ScoreFreeResponse(response string, accepted []string) float64 {
	resp := NormalizeResponse(response)
	if resp == "" {
		return 0
	}

	best := 0.0
	for _, a := range accepted {
		key := NormalizeResponse(a)
		if key == "" {
			continue
		}
		var score float64
		switch sim := similarity(resp, key); {
		case resp == key:
			score = FreeResponseMax
		case sim >= closeMatchThreshold:
			score = 2
		case sim >= partialMatchThreshold:
			score = 1
		}
		if score > best {
			best = score
		}
	}
	return best
}

// similarity is a Levenshtein ratio in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
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
