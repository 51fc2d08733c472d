package catalog

import (
	"github.com/JakeFAU/sermon-harvester/internal/sermon"
)

// Compiler merges several tables into one catalog.
type Compiler interface {
	Compile(tables ...[]sermon.Record) []sermon.Record
}

// Distinct is the union-and-distinct Compiler: rows are kept in first-seen
// order and dropped when every column equals an earlier row.
type Distinct struct{}

// Compile implements Compiler.
func (Distinct) Compile(tables ...[]sermon.Record) []sermon.Record {
	seen := make(map[sermon.Record]struct{})
	var out []sermon.Record
	for _, table := range tables {
		for _, rec := range table {
			key := rec
			key.Date = rec.Date.UTC()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}
