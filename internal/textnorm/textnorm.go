// Package textnorm holds the pure string transforms shared by the filename
// synthesizer and the source adapters.
package textnorm

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/JakeFAU/sermon-harvester/internal/sermon"
)

// illegal lists characters that cannot appear in a filename on common filesystems.
const illegal = `\/*?"<>|`

var substitutions = map[rune]string{
	'ß': "ss", 'æ': "ae", 'Æ': "AE", 'œ': "oe", 'Œ': "OE",
	'ø': "o", 'Ø': "O", 'ł': "l", 'Ł': "L", 'đ': "d", 'Đ': "D",
	'þ': "th", 'Þ': "Th", 'ð': "d",
	'‘': "'", '’': "'", '‚': "'", '“': `"`, '”': `"`, '„': `"`,
	'–': "-", '—': "-", '‐': "-", '…': "...", '\u00a0': " ",
}

// Normalizer renders arbitrary scraped text into a filesystem-safe form.
type Normalizer struct {
	// Replacement substitutes colons and ampersands. Empty removes them.
	Replacement string
	// Transliterate folds the text to ASCII before cleaning.
	Transliterate bool
}

// Default mirrors the configuration defaults.
func Default() Normalizer {
	return Normalizer{Replacement: "_", Transliterate: true}
}

// Normalize applies transliteration, character substitution and whitespace
// collapsing in that order. The result is trimmed.
func (n Normalizer) Normalize(s string) string {
	if n.Transliterate {
		s = ASCII(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ':' || r == '&':
			b.WriteString(n.Replacement)
		case strings.ContainsRune(illegal, r):
		case unicode.IsControl(r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return CollapseSpaces(b.String())
}

// ASCII transliterates s to ASCII: accents are stripped, common ligatures and
// typographic punctuation are spelled out, anything else non-ASCII is dropped.
func ASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if sub, ok := substitutions[r]; ok {
			b.WriteString(sub)
			continue
		}
		b.WriteRune(r)
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})), norm.NFC)
	out, _, err := transform.String(t, b.String())
	if err != nil {
		return b.String()
	}
	return out
}

// CollapseSpaces replaces every run of whitespace with a single space and trims the ends.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatDate renders a date as YYYY-MM-DD; the zero time renders empty.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(sermon.DateLayout)
}

// IsMissing reports whether a scraped value should be treated as absent.
func IsMissing(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NA", "N/A", "NAN", "NONE", "NULL":
		return true
	}
	return false
}

// ParseDate tries each layout in order against the cleaned value.
func ParseDate(raw string, layouts []string) (time.Time, bool) {
	raw = CollapseSpaces(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
