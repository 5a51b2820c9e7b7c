package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EmptyPrompt is spoken in place of empty input.
const EmptyPrompt = "You need to add some text for me to talk."

// puncReplacements are applied in order after whitespace collapsing.
var puncReplacements = []struct{ old, new string }{
	{"...", ", "},
	{"…", ", "},
	{":", ","},
	{" - ", ", "},
	{";", ", "},
	{"—", "-"},
	{"–", "-"},
	{" ,", ","},
	{"“", "\""},
	{"”", "\""},
	{"‘", "'"},
	{"’", "'"},
}

// PuncNorm rewrites punctuation the speech models handle poorly:
//  1. Empty input becomes EmptyPrompt.
//  2. The first letter is capitalized.
//  3. Whitespace runs collapse to a single space.
//  4. Ellipses, colons and semicolons become commas; dashes and curly quotes
//     are folded to ASCII.
//  5. A full stop is appended unless the text already ends in . ! ? - or ,.
func PuncNorm(s string) string {
	if s == "" {
		return EmptyPrompt
	}

	r, size := utf8.DecodeRuneInString(s)
	if unicode.IsLower(r) {
		s = string(unicode.ToUpper(r)) + s[size:]
	}

	s = strings.Join(strings.Fields(s), " ")

	for _, p := range puncReplacements {
		s = strings.ReplaceAll(s, p.old, p.new)
	}

	s = strings.TrimRight(s, " ")
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "!") && !strings.HasSuffix(s, "?") &&
		!strings.HasSuffix(s, "-") && !strings.HasSuffix(s, ",") {
		s += "."
	}

	return s
}
