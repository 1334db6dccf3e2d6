// Package signals provides pure content-level heuristics shared by the
// trust engine and the moderation gate. Every function here is a
// stateless scan over its input text; none of them touch a store or a
// network, which keeps them trivially safe for concurrent use.
package signals

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SuspiciousKeywords are low-effort filler terms that frequently show up
// in throwaway or joke submissions.
var SuspiciousKeywords = []string{
	"test", "blabla", "aaaa", "zzzz", "lol",
	"fake", "faux", "pour rire", "c'est bidon",
}

// excessivePunctuation matches 5 or more consecutive '!' or '?'.
var excessivePunctuation = regexp.MustCompile(`[!?]{5,}`)

// MatchSuspiciousKeywords returns the subset of SuspiciousKeywords that
// appear in text as case-insensitive substrings, in list order.
func MatchSuspiciousKeywords(text string) []string {
	lower := strings.ToLower(text)

	var matched []string
	for _, kw := range SuspiciousKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// HasRepetitivePattern reports whether text contains a run of at least 3
// characters immediately repeated at least 3 more times (e.g. "abcabcabcabc").
// Go's regexp package (RE2) does not support backreferences, so this is a
// direct scan over candidate seed lengths. Matching is case-insensitive.
func HasRepetitivePattern(text string) bool {
	const minSeed = 3
	const minRepeats = 3 // additional copies after the seed

	s := strings.ToLower(text)
	n := len(s)
	// A seed plus 3 copies needs 4*minSeed bytes at minimum.
	if n < minSeed*(minRepeats+1) {
		return false
	}

	maxSeed := n / (minRepeats + 1)
	for seed := minSeed; seed <= maxSeed; seed++ {
		for start := 0; start+seed*(minRepeats+1) <= n; start++ {
			chunk := s[start : start+seed]
			repeats := 0
			for pos := start + seed; pos+seed <= n && s[pos:pos+seed] == chunk; pos += seed {
				repeats++
				if repeats >= minRepeats {
					return true
				}
			}
		}
	}
	return false
}

// IsAllCaps reports whether text is longer than 20 characters and equals
// its own uppercase transform (a common shouting/spam signal).
func IsAllCaps(text string) bool {
	return utf8.RuneCountInString(text) > 20 && text == strings.ToUpper(text)
}

// HasExcessivePunctuation reports whether text contains 5 or more
// consecutive '!' or '?' characters.
func HasExcessivePunctuation(text string) bool {
	return excessivePunctuation.MatchString(text)
}

// HasCharRun reports whether text contains at least n consecutive
// identical characters. Implemented as a linear scan for the same reason
// as HasRepetitivePattern: RE2 has no backreferences.
func HasCharRun(text string, n int) bool {
	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= n {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// UppercaseRatio returns the fraction of characters in text that are
// uppercase ASCII letters. Returns 0 for empty text.
func UppercaseRatio(text string) float64 {
	total := 0
	upper := 0
	for _, r := range text {
		total++
		if r >= 'A' && r <= 'Z' {
			upper++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(upper) / float64(total)
}

// Similarity computes a 0-100 similarity between two texts. Identical
// texts (case- and whitespace-insensitive) score 100. Otherwise the score
// is the number of words longer than 3 characters shared between the two
// texts, divided by the larger word count, scaled to 100 and rounded.
//
// This is a cheap bag-of-words overlap ratio, not an edit distance. It is
// intentionally coarse: it only needs to catch near-identical duplicate
// submissions inside a short time window.
func Similarity(a, b string) int {
	if a == "" || b == "" {
		return 0
	}

	s1 := strings.TrimSpace(strings.ToLower(a))
	s2 := strings.TrimSpace(strings.ToLower(b))
	if s1 == s2 {
		return 100
	}

	words1 := strings.FieldsFunc(s1, unicode.IsSpace)
	words2 := strings.FieldsFunc(s2, unicode.IsSpace)

	set2 := make(map[string]bool, len(words2))
	for _, w := range words2 {
		set2[w] = true
	}

	common := 0
	for _, w := range words1 {
		if utf8.RuneCountInString(w) > 3 && set2[w] {
			common++
		}
	}

	maxWords := len(words1)
	if len(words2) > maxWords {
		maxWords = len(words2)
	}
	if maxWords == 0 {
		return 0
	}

	return int(math.Round(float64(common) / float64(maxWords) * 100))
}
