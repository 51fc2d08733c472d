// Package sermon defines the canonical record produced by every source adapter.
package sermon

import (
	"strings"
	"time"
)

// DateLayout is the canonical rendering of Record.Date.
const DateLayout = "2006-01-02"

// SelectedScriptures is the sentinel Text value used when a sermon names no passage.
const SelectedScriptures = "Selected Scriptures"

// ListSeparator joins multi-valued fields (co-speakers, topics, passages, attachments).
const ListSeparator = "; "

// Record is one normalized sermon row.
type Record struct {
	Title   string
	Teacher string
	Text    string
	Topics  string
	Date    time.Time
	Source  string
	Page    string
	Audio   string
	Files   string
	Name    string
	// Extra carries scraped labels that have no canonical column, as "Label: value" pairs.
	Extra string
}

// HasAudio reports whether the record can be queued for download.
func (r Record) HasAudio() bool {
	return strings.TrimSpace(r.Audio) != ""
}

// DateString renders Date as YYYY-MM-DD, or "" when the date is missing.
func (r Record) DateString() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format(DateLayout)
}

// Table is the ordered set of records produced by one or more adapter runs.
type Table struct {
	Source  string
	Records []Record
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Records)
}

// WithAudio returns the records that reference an audio asset, preserving order.
func (t Table) WithAudio() []Record {
	out := make([]Record, 0, len(t.Records))
	for _, rec := range t.Records {
		if rec.HasAudio() {
			out = append(out, rec)
		}
	}
	return out
}

// JoinList joins the non-empty, trimmed values with ListSeparator.
func JoinList(values ...string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ListSeparator)
}

// SplitList splits a ListSeparator-joined value back into its trimmed parts.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
