package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultName is used when a description yields no usable characters.
const DefaultName = "module"

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips diacritics so "Créer" becomes "Creer".
func Fold(s string) string {
	out, _, err := transform.String(foldAccents, s)
	if err != nil {
		return s
	}
	return out
}

// DeriveName builds a logical module name from the first word of a task
// description: accents folded, lowercased, alphanumerics only.
func DeriveName(description string) string {
	fields := strings.Fields(description)
	if len(fields) == 0 {
		return DefaultName
	}
	name := Sanitize(fields[0])
	if name == "" {
		return DefaultName
	}
	return name
}

// Sanitize lowercases a user supplied name and keeps letters, digits and
// underscores. Hyphens become underscores.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(Fold(name)) {
		if r == '-' {
			r = '_'
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	// identifiers in every supported language must not start with a digit
	if out != "" && unicode.IsDigit(rune(out[0])) {
		out = "m" + out
	}
	return out
}

// Pascal converts snake_case to PascalCase ("shopping_cart" -> "ShoppingCart").
func Pascal(name string) string {
	caser := cases.Title(language.Und)
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(caser.String(part))
	}
	return b.String()
}

// Title is used for console headings ("openai" -> "Openai").
func Title(s string) string {
	return cases.Title(language.Und).String(s)
}

// Tail returns at most max bytes from the end of s, cut on a line boundary
// when one is available.
func Tail(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[len(s)-max:]
	if i := strings.IndexByte(cut, '\n'); i >= 0 && i < len(cut)-1 {
		cut = cut[i+1:]
	}
	return "...(truncated)\n" + cut
}
