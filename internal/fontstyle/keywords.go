package fontstyle

import (
	"strings"

	"golang.org/x/text/cases"
)

// Keyword maps a weight name found in font filenames to its CSS weight.
type Keyword struct {
	Name   string
	Weight int
}

// Keywords is the ordered weight table.
var Keywords = []Keyword{
	{"Thin", 100},
	{"Extra Light", 200},
	{"Light", 300},
	{"Regular", 400},
	{"Medium", 500},
	{"Semi Bold", 600},
	{"Bold", 700},
	{"Extra Bold", 800},
	{"Black", 900},
}

var separators = strings.NewReplacer(" ", "", "-", "", "_", "")

// caseFold returns s case-folded. A Caser is stateful, so each call gets its own.
func caseFold(s string) string {
	return cases.Fold().String(s)
}

func fold(s string) string {
	return separators.Replace(caseFold(s))
}

// WeightOf scans s for weight keywords. When several keywords occur the
// longest one wins, so "ExtraBold" is 800 rather than 700; equal lengths
// resolve to the later table entry.
func WeightOf(s string) (int, bool) {
	subject := fold(s)
	best, bestLen := 0, 0
	for _, kw := range Keywords {
		k := fold(kw.Name)
		if strings.Contains(subject, k) && len(k) >= bestLen {
			best, bestLen = kw.Weight, len(k)
		}
	}
	return best, bestLen > 0
}

// IsItalic reports whether s mentions "italic" in any letter case.
func IsItalic(s string) bool {
	return strings.Contains(caseFold(s), "italic")
}
