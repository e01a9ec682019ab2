package interpreter

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// MatchThreshold is the minimum similarity for a typed answer to select an
// option.
const MatchThreshold = 80

// Similarity scores two strings from 0 to 100. It is the better of a plain
// edit-distance ratio and the same ratio over sorted tokens, so word order
// does not matter ("pain chest" vs "chest pain").
func Similarity(a, b string) int {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	return max(ratio(a, b), ratio(sortTokens(a), sortTokens(b)))
}

// BestMatch returns the index of the choice most similar to query, if it
// scores at least cutoff. Ties keep the earliest choice.
func BestMatch(query string, choices []string, cutoff int) (int, bool) {
	best, bestScore := -1, -1
	for i, c := range choices {
		if s := Similarity(query, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < cutoff {
		return -1, false
	}
	return best, true
}

func ratio(a, b string) int {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(d)/float64(longest))))
}

func sortTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}
