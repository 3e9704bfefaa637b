package conditions

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures the decomposition step leaves intact.
var foldReplacer = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "œ", "oe", "ø", "o", "đ", "d", "ð", "d",
	"ł", "l", "þ", "th", "ı", "i", "ŀ", "l", "ĳ", "ij",
)

// FoldToASCII lowercases s and strips diacritics, so "Émile" and "emile"
// compare equal. It is applied to expected and actual strings alike.
func FoldToASCII(s string) string {
	lower := strings.ToLower(s)
	if isASCII(lower) {
		return lower
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return foldReplacer.Replace(folded)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// foldAny folds strings and leaves other values untouched.
func foldAny(v any) any {
	if s, ok := v.(string); ok {
		return FoldToASCII(s)
	}
	return v
}
