// Package importer hydrates vacancy task status from external task-manager exports.
package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a free-text task name into a comparison key: compatibility
// normalized, format characters dropped, "&" spelled out, punctuation turned into
// spaces, case folded and whitespace collapsed.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '&':
			b.WriteString(" and ")
		case unicode.Is(unicode.Cf, r):
			// BOM, zero-width space and joiners
		case unicode.IsPunct(r), unicode.IsSymbol(r), unicode.IsSpace(r), unicode.IsControl(r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	// A Caser is stateful; one per call keeps Normalize safe for concurrent use.
	folded := cases.Fold().String(b.String())
	return strings.Join(strings.Fields(folded), " ")
}
