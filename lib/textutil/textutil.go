package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// FoldDiacritics strips combining marks, "SÃO PAULO" becomes "SAO PAULO".
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeName upper-cases, folds diacritics, trims and collapses inner
// whitespace so names typed by a user compare equal to the portal's options.
func NormalizeName(name string) string {
	name = FoldDiacritics(name)
	name = strings.ToUpper(name)
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// ContainsFolded reports whether needle occurs in haystack after both have
// been normalized with NormalizeName.
func ContainsFolded(haystack, needle string) bool {
	needle = NormalizeName(needle)
	if needle == "" {
		return false
	}
	return strings.Contains(NormalizeName(haystack), needle)
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, NormalizeName(m)) {
			return true
		}
	}
	return false
}
