package shared

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeLabel trims a user supplied label and collapses inner whitespace.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(label), " ")
}

// FoldLabel returns the comparison key of a label: normalized and case folded.
// A Caser is stateful, so each call builds its own.
func FoldLabel(label string) string {
	return cases.Fold().String(NormalizeLabel(label))
}

// SameLabel reports whether two labels name the same thing.
func SameLabel(a, b string) bool {
	return FoldLabel(a) == FoldLabel(b)
}
