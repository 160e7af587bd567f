// Package normalize cleans raw scraped text and derives comparison keys for
// project names.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// invisible lists format characters dropped before comparison: zero-width
// space/joiners, word joiner, BOM, soft hyphen and the Arabic tatweel.
var invisible = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u200e", "",
	"\u200f", "",
	"\u2060", "",
	"\ufeff", "",
	"\u00ad", "",
	"\u0640", "",
)

// Text applies NFKC normalization, removes invisible characters and
// collapses whitespace runs into single spaces. Text is idempotent.
func Text(s string) string {
	s = invisible.Replace(s)
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Script is the dominant writing system of a text.
type Script string

const (
	ScriptUnknown Script = ""
	ScriptLatin   Script = "latin"
	ScriptArabic  Script = "arabic"
	ScriptMixed   Script = "mixed"
)

// DetectScript classifies text by the letters it contains. A text counts as
// mixed when the minority script holds at least a fifth of the letters.
func DetectScript(s string) Script {
	var arabic, latin int
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	total := arabic + latin
	switch {
	case total == 0:
		return ScriptUnknown
	case arabic*5 >= total && latin*5 >= total:
		return ScriptMixed
	case arabic > latin:
		return ScriptArabic
	default:
		return ScriptLatin
	}
}

// HasArabic reports whether s contains any Arabic letter.
func HasArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
