// Package evaluate scores answer logs against their reference answers using
// classical NLP similarity metrics and renders an aggregate report.
package evaluate

import (
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// bleuMaxOrder is the highest n-gram order used by the BLEU score.
const bleuMaxOrder = 4

// tokenize splits text into scoring units: whitespace-separated words, with
// CJK characters counted as individual tokens since they carry no spaces.
func tokenize(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(text) {
		var word []rune
		for _, r := range field {
			if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) {
				if len(word) > 0 {
					tokens = append(tokens, string(word))
					word = word[:0]
				}
				tokens = append(tokens, string(r))
				continue
			}
			word = append(word, r)
		}
		if len(word) > 0 {
			tokens = append(tokens, string(word))
		}
	}
	return tokens
}

// BLEU computes a smoothed sentence-level BLEU score of response against
// reference, with brevity penalty. Scores range 0 to 1.
func BLEU(response, reference string) float64 {
	candidate := tokenize(response)
	ref := tokenize(reference)
	if len(candidate) == 0 || len(ref) == 0 {
		return 0
	}

	maxOrder := bleuMaxOrder
	if len(candidate) < maxOrder {
		maxOrder = len(candidate)
	}
	if len(ref) < maxOrder {
		maxOrder = len(ref)
	}

	logSum := 0.0
	for n := 1; n <= maxOrder; n++ {
		p := modifiedPrecision(candidate, ref, n)
		if p == 0 {
			// smoothing keeps a single missing order from zeroing the score
			p = 1.0 / float64(2*len(candidate))
		}
		logSum += math.Log(p)
	}
	score := math.Exp(logSum / float64(maxOrder))

	if len(candidate) < len(ref) {
		score *= math.Exp(1 - float64(len(ref))/float64(len(candidate)))
	}
	return score
}

// modifiedPrecision is the clipped n-gram precision of candidate against ref.
func modifiedPrecision(candidate, ref []string, n int) float64 {
	candCounts := ngramCounts(candidate, n)
	if len(candCounts) == 0 {
		return 0
	}
	refCounts := ngramCounts(ref, n)

	clipped, total := 0, 0
	for gram, count := range candCounts {
		total += count
		limit := refCounts[gram]
		if count < limit {
			limit = count
		}
		clipped += limit
	}
	if total == 0 {
		return 0
	}
	return float64(clipped) / float64(total)
}

func ngramCounts(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], "\x1f")]++
	}
	return counts
}

// RougeL computes the ROUGE-L F-measure of response against reference,
// based on the longest common token subsequence.
func RougeL(response, reference string) float64 {
	candidate := tokenize(response)
	ref := tokenize(reference)
	if len(candidate) == 0 || len(ref) == 0 {
		return 0
	}

	lcs := lcsLength(candidate, ref)
	if lcs == 0 {
		return 0
	}

	precision := float64(lcs) / float64(len(candidate))
	recall := float64(lcs) / float64(len(ref))
	return 2 * precision * recall / (precision + recall)
}

func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// StringSimilarity scores response against reference as 1 minus the
// normalized Levenshtein distance.
func StringSimilarity(response, reference string) float64 {
	if response == reference {
		return 1
	}

	maxLen := len([]rune(response))
	if n := len([]rune(reference)); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}

	distance := levenshtein.ComputeDistance(response, reference)
	return 1 - float64(distance)/float64(maxLen)
}
