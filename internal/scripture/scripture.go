// Package scripture compacts verbose scripture citations.
package scripture

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/JakeFAU/sermon-harvester/internal/sermon"
	"github.com/JakeFAU/sermon-harvester/internal/textnorm"
)

var dashSpace = regexp.MustCompile(`\s*-\s*`)

// Simplify collapses a ranged citation onto its shared prefix:
// "Genesis 1:1 - Genesis 2:3" becomes "Genesis 1:1-2:3". Input without a dash,
// or a missing value, is returned unchanged.
func Simplify(s string) string {
	if textnorm.IsMissing(s) || !strings.Contains(s, "-") {
		return s
	}
	parts := strings.Split(dashSpace.ReplaceAllString(strings.TrimSpace(s), "-"), "-")
	if len(parts) < 2 {
		return s
	}
	prefix := commonPrefix(parts[0], parts[1])
	var b strings.Builder
	b.WriteString(prefix)
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('-')
		}
		if prefix != "" && strings.HasPrefix(p, prefix) {
			p = p[len(prefix):]
		}
		b.WriteString(p)
	}
	return b.String()
}

// SimplifyList applies Simplify to every "; " separated citation.
func SimplifyList(s string) string {
	if textnorm.IsMissing(s) || !strings.Contains(s, "-") {
		return s
	}
	parts := sermon.SplitList(s)
	for i, p := range parts {
		parts[i] = Simplify(p)
	}
	return strings.Join(parts, sermon.ListSeparator)
}

// commonPrefix returns the longest shared prefix of a and b, cut back to just
// after its last boundary rune so chapter and verse numbers are never split.
func commonPrefix(a, b string) string {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	cut := strings.LastIndexFunc(a[:n], isBoundary)
	if cut < 0 {
		return ""
	}
	return a[:cut+1]
}

func isBoundary(r rune) bool {
	return r == ' ' || r == ':' || r == '.'
}

// CommasToSemicolons rewrites a comma separated verse list into the
// semicolon separated form. Commas inside parentheses are kept. The result
// is ambiguous when some part carries no book name, as in "John 3:16, 18",
// and should be flagged for review by the caller.
func CommasToSemicolons(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, false
	}
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])

	kept := make([]string, 0, len(parts))
	ambiguous := false
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.ContainsFunc(p, unicode.IsLetter) {
			ambiguous = true
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, sermon.ListSeparator), ambiguous
}
