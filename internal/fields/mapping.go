package fields

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/sermon-harvester/internal/sermon"
	"github.com/JakeFAU/sermon-harvester/internal/textnorm"
)

// Canonical field names.
const (
	Title   = "Title"
	Teacher = "Teacher"
	Text    = "Text"
	Topics  = "Topics"
	Date    = "Date"
	Source  = "Source"
	Page    = "Page"
	Audio   = "Audio"
	Files   = "Files"
)

// ErrUnknownField is returned by Set for names outside the canonical schema.
var ErrUnknownField = errors.New("unknown canonical field")

var canonical = map[string]string{
	"title": Title, "teacher": Teacher, "text": Text, "topics": Topics,
	"ministry": Topics, "date": Date, "source": Source, "page": Page,
	"audio": Audio, "files": Files,
}

// Mapping translates raw scraped labels to canonical field names. Keys are
// matched case-insensitively.
type Mapping map[string]string

// DefaultMapping covers the labels common to church publishing platforms.
func DefaultMapping() Mapping {
	return Mapping{
		"speaker":   Teacher,
		"speakers":  Teacher,
		"preacher":  Teacher,
		"pastor":    Teacher,
		"teachers":  Teacher,
		"scripture": Text,
		"passage":   Text,
		"passages":  Text,
		"bible":     Text,
		"topic":     Topics,
		"tags":      Topics,
		"preached":  Date,
		"downloads": Files,
	}
}

// Merge returns a copy of m overlaid with other.
func (m Mapping) Merge(other map[string]string) Mapping {
	out := make(Mapping, len(m)+len(other))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	for k, v := range other {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Resolve returns the canonical field for a raw label.
func (m Mapping) Resolve(label string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if field, ok := m[key]; ok {
		if c, ok := canonical[strings.ToLower(field)]; ok {
			return c, true
		}
	}
	c, ok := canonical[key]
	return c, ok
}

// Apply copies the row onto rec. Unknown labels, and dates no layout
// accepts, are kept in rec.Extra as "Label: value" pairs.
func (m Mapping) Apply(row Row, rec sermon.Record, layouts []string) (sermon.Record, []string) {
	warnings := append([]string(nil), row.Warnings...)
	extras := sermon.SplitList(rec.Extra)
	for i, label := range row.Columns {
		value := row.Values[i]
		if textnorm.IsMissing(value) {
			continue
		}
		field, ok := m.Resolve(label)
		if !ok {
			extras = append(extras, label+": "+value)
			continue
		}
		if err := Set(&rec, field, value, layouts); err != nil {
			warnings = append(warnings, err.Error())
			extras = append(extras, label+": "+value)
		}
	}
	rec.Extra = sermon.JoinList(extras...)
	return rec, warnings
}

// Set assigns one canonical field. Text fields that are already populated
// are extended as a "; " list.
func Set(rec *sermon.Record, field, value string, layouts []string) error {
	value = textnorm.CollapseSpaces(value)
	c, ok := canonical[strings.ToLower(field)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	switch c {
	case Title:
		rec.Title = value
	case Teacher:
		rec.Teacher = sermon.JoinList(rec.Teacher, value)
	case Text:
		rec.Text = sermon.JoinList(rec.Text, value)
	case Topics:
		rec.Topics = sermon.JoinList(rec.Topics, value)
	case Date:
		d, ok := textnorm.ParseDate(value, layouts)
		if !ok {
			return fmt.Errorf("date %q matches no configured layout", value)
		}
		rec.Date = d
	case Source:
		rec.Source = value
	case Page:
		rec.Page = value
	case Audio:
		rec.Audio = value
	case Files:
		rec.Files = sermon.JoinList(rec.Files, value)
	}
	return nil
}
