package normalize

import (
	"strings"
	"unicode"
)

// fillerTokens carry no identity in a project name.
var fillerTokens = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true,
	"project": true, "projects": true,
	"مشروع": true, "مشاريع": true,
}

// numberTokens map spelled-out and roman numerals to digits.
var numberTokens = map[string]string{
	"one": "1", "first": "1", "i": "1", "1st": "1",
	"two": "2", "second": "2", "ii": "2", "2nd": "2",
	"three": "3", "third": "3", "iii": "3", "3rd": "3",
	"four": "4", "fourth": "4", "iv": "4", "4th": "4",
	"five": "5", "fifth": "5", "v": "5", "5th": "5",
	"six": "6", "sixth": "6", "vi": "6", "6th": "6",
	"seven": "7", "seventh": "7", "vii": "7", "7th": "7",
	"eight": "8", "eighth": "8", "viii": "8", "8th": "8",
	"nine": "9", "ninth": "9", "ix": "9", "9th": "9",
	"ten": "10", "tenth": "10", "x": "10", "10th": "10",
	"الأولى": "1", "الاولى": "1", "الأول": "1", "الاول": "1",
	"الثانية": "2", "الثاني": "2",
	"الثالثة": "3", "الثالث": "3",
}

// arabicFolds unifies letter variants that are used interchangeably.
var arabicFolds = strings.NewReplacer(
	"أ", "ا",
	"إ", "ا",
	"آ", "ا",
	"ٱ", "ا",
	"ى", "ي",
	"ة", "ه",
)

// NameTokens splits a project name into comparison tokens: lower-cased,
// punctuation removed, filler words dropped and numerals unified.
func NameTokens(name string) []string {
	name = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, strings.ToLower(Text(name)))
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if fillerTokens[f] {
			continue
		}
		if d, ok := numberTokens[f]; ok {
			out = append(out, d)
			continue
		}
		if HasArabic(f) {
			f = arabicFolds.Replace(f)
		}
		out = append(out, f)
	}
	return out
}

// NameKey is the canonical comparison key of a project name. Names that
// differ only in case, punctuation, filler words or numeral spelling share a
// key.
func NameKey(name string) string {
	return strings.Join(NameTokens(name), " ")
}
