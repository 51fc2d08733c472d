// Package naming synthesizes the deterministic artifact name of a sermon.
package naming

import (
	"strings"
	"time"

	"github.com/JakeFAU/sermon-harvester/internal/sermon"
	"github.com/JakeFAU/sermon-harvester/internal/textnorm"
)

// Separator joins the parts of a synthesized name.
const Separator = " - "

// Synthesizer builds names from record fields. The name doubles as the
// download idempotence key, so Synthesize must stay pure.
type Synthesizer struct {
	Normalizer textnorm.Normalizer
}

// New returns a Synthesizer using n.
func New(n textnorm.Normalizer) Synthesizer {
	return Synthesizer{Normalizer: n}
}

// Synthesize returns "date - text - title - teacher", omitting absent parts
// together with their separator.
func (s Synthesizer) Synthesize(title, text, teacher string, date time.Time) string {
	parts := make([]string, 0, 4)
	for _, raw := range []string{textnorm.FormatDate(date), text, title, teacher} {
		if textnorm.IsMissing(raw) {
			continue
		}
		if part := s.Normalizer.Normalize(raw); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, Separator)
}

// Apply sets rec.Name from its own fields and returns the record.
func (s Synthesizer) Apply(rec sermon.Record) sermon.Record {
	rec.Name = s.Synthesize(rec.Title, rec.Text, rec.Teacher, rec.Date)
	return rec
}
