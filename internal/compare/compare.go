// Package compare measures word-level agreement between an approved
// reference text and an OCR extraction. Similarity is computed over
// whitespace-normalized word tokens, which is the granularity that matters
// for label compliance: "500mg" and "500 mg" are different words.
package compare

import (
	"math"
	"strings"
)

// PassThreshold is the word-level similarity required for PASS (inclusive).
const PassThreshold = 0.95

// Deviation is one word present in only one of the two texts.
type Deviation struct {
	Type string `json:"type"` // added or removed
	Word string `json:"word"`
}

// WordCount reports token counts for both inputs.
type WordCount struct {
	Verified   int `json:"verified"`
	Production int `json:"production"`
}

// Result is a full comparison report.
type Result struct {
	MatchPercentage float64     `json:"match_percentage"`
	Deviations      []Deviation `json:"deviations"`
	Status          string      `json:"status"` // PASS or FAIL
	WordCount       WordCount   `json:"word_count"`
}

// Normalize collapses all whitespace runs to single spaces and trims the
// ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Texts compares the approved reference against the extracted production
// text. Empty or blank input on either side is a zero-percent FAIL, never an
// accidental pass.
func Texts(verified, production string) Result {
	verifiedWords := strings.Fields(verified)
	productionWords := strings.Fields(production)

	if len(verifiedWords) == 0 || len(productionWords) == 0 {
		return Result{
			MatchPercentage: 0,
			Deviations:      []Deviation{},
			Status:          "FAIL",
			WordCount:       WordCount{},
		}
	}

	table := lcsTable(verifiedWords, productionWords)
	matches := table[0][0]

	similarity := 2 * float64(matches) / float64(len(verifiedWords)+len(productionWords))

	status := "FAIL"
	if similarity >= PassThreshold {
		status = "PASS"
	}

	return Result{
		MatchPercentage: math.Round(similarity*10000) / 100,
		Deviations:      deviations(verifiedWords, productionWords, table),
		Status:          status,
		WordCount: WordCount{
			Verified:   len(verifiedWords),
			Production: len(productionWords),
		},
	}
}

// lcsTable fills the longest-common-subsequence length table where
// table[i][j] is the LCS length of a[i:] and b[j:].
func lcsTable(a, b []string) [][]int {
	table := make([][]int, len(a)+1)
	for i := range table {
		table[i] = make([]int, len(b)+1)
	}

	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				table[i][j] = table[i+1][j+1] + 1
			} else if table[i+1][j] >= table[i][j+1] {
				table[i][j] = table[i+1][j]
			} else {
				table[i][j] = table[i][j+1]
			}
		}
	}

	return table
}

// deviations walks the LCS alignment and records words unique to one side,
// removals before additions at each divergence.
func deviations(a, b []string, table [][]int) []Deviation {
	out := []Deviation{}
	i, j := 0, 0

	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j] && table[i][j] == table[i+1][j+1]+1:
			i++
			j++
		case table[i+1][j] >= table[i][j+1]:
			out = append(out, Deviation{Type: "removed", Word: a[i]})
			i++
		default:
			out = append(out, Deviation{Type: "added", Word: b[j]})
			j++
		}
	}
	for ; i < len(a); i++ {
		out = append(out, Deviation{Type: "removed", Word: a[i]})
	}
	for ; j < len(b); j++ {
		out = append(out, Deviation{Type: "added", Word: b[j]})
	}

	return out
}
