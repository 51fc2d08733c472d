// Package fields merges scraped label/value pairs into canonical sermon fields.
package fields

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/sermon-harvester/internal/sermon"
)

// TopicsLabel names the one label allowed to absorb surplus values.
const TopicsLabel = "Topics"

// Row is the merged result of one item page.
type Row struct {
	Columns  []string
	Values   []string
	Warnings []string
}

// Get returns the value of the named column, matched case-insensitively.
func (r Row) Get(column string) (string, bool) {
	for i, c := range r.Columns {
		if strings.EqualFold(c, column) {
			return r.Values[i], true
		}
	}
	return "", false
}

// Normalize merges same-order labels and contents scraped from one page into
// a single row whose columns are "Title" followed by the unique labels.
//
// Surplus contents are attributed to the first Topics label as one contiguous
// block; without a Topics label they are joined onto the last label and a
// warning is recorded. Missing contents leave empty values. Repeated labels
// have their values joined with "; " under the first occurrence.
func Normalize(title string, labels, contents []string) Row {
	var row Row
	labels = cleanLabels(labels)
	values := make([]string, len(labels))

	excess := len(contents) - len(labels)
	switch {
	case excess > 0 && len(labels) == 0:
		row.Warnings = append(row.Warnings, fmt.Sprintf("%d unlabelled values dropped", len(contents)))
	case excess > 0:
		topics := indexOf(labels, TopicsLabel)
		if topics < 0 {
			topics = len(labels) - 1
			row.Warnings = append(row.Warnings, fmt.Sprintf(
				"%d surplus values without a %s label joined onto %q", excess, TopicsLabel, labels[topics]))
		}
		for i := range labels {
			switch {
			case i < topics:
				values[i] = contents[i]
			case i == topics:
				values[i] = sermon.JoinList(contents[i : i+excess+1]...)
			default:
				values[i] = contents[i+excess]
			}
		}
	default:
		for i := range labels {
			if i < len(contents) {
				values[i] = contents[i]
			}
		}
	}

	row.Columns = append(row.Columns, "Title")
	row.Values = append(row.Values, strings.TrimSpace(title))
	for i, label := range labels {
		if j := indexOf(row.Columns, label); j >= 0 {
			row.Values[j] = sermon.JoinList(row.Values[j], values[i])
			continue
		}
		row.Columns = append(row.Columns, label)
		row.Values = append(row.Values, strings.TrimSpace(values[i]))
	}
	return row
}

func cleanLabels(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(l), ":"))
	}
	return out
}

func indexOf(list []string, want string) int {
	for i, v := range list {
		if strings.EqualFold(v, want) {
			return i
		}
	}
	return -1
}
