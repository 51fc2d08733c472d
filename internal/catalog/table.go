// Package catalog persists sermon tables and reads them back for downloading.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/sermon"
	"github.com/JakeFAU/sermon-harvester/internal/textnorm"
)

// Columns is the stable header of every table file.
var Columns = []string{"Title", "Teacher", "Text", "Topics", "Date", "Source", "Page", "Audio", "Files", "Name", "Extra"}

// ContentType of a rendered table file.
const ContentType = "text/csv; charset=utf-8"

// ErrMissingColumn is returned when a table lacks a required column.
var ErrMissingColumn = errors.New("catalog table missing column")

var aliases = map[string]string{"ministry": "Topics", "ministry/topics": "Topics"}

// required columns a downloadable table must carry.
var required = []string{"Title", "Audio", "Name"}

// FileName returns "<source>_<YYYYMMDDTHHMMSSZ>.csv" for a run finished at t.
func FileName(source string, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", strings.ReplaceAll(source, "/", "_"), t.UTC().Format("20060102T150405Z"))
}

// Write renders records as CSV with the stable header.
func Write(w io.Writer, records []sermon.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Title, rec.Teacher, rec.Text, rec.Topics, rec.DateString(), rec.Source,
			rec.Page, rec.Audio, rec.Files, rec.Name, rec.Extra,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %q: %w", rec.Page, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return nil
}

// Read parses a table. Ministry is accepted for Topics and unknown columns
// are ignored. Cells holding a missing-value marker such as NA read as empty,
// and a date that does not parse is logged and left zero.
func Read(r io.Reader, logger *zap.Logger) ([]sermon.Record, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if alias, ok := aliases[strings.ToLower(h)]; ok {
			h = alias
		}
		for _, c := range Columns {
			if strings.EqualFold(c, h) {
				index[c] = i
			}
		}
	}
	for _, c := range required {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var out []sermon.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) || textnorm.IsMissing(row[i]) {
				return ""
			}
			return row[i]
		}
		rec := sermon.Record{
			Title: get("Title"), Teacher: get("Teacher"), Text: get("Text"), Topics: get("Topics"),
			Source: get("Source"), Page: get("Page"), Audio: get("Audio"), Files: get("Files"),
			Name: get("Name"), Extra: get("Extra"),
		}
		if raw := strings.TrimSpace(get("Date")); raw != "" {
			d, err := time.Parse(sermon.DateLayout, raw)
			if err != nil {
				logger.Warn("catalog date unreadable, leaving it empty",
					zap.Int("row", line), zap.String("date", raw), zap.String("name", rec.Name))
			} else {
				rec.Date = d
			}
		}
		out = append(out, rec)
	}
}

// ReadFile reads the table stored at path.
func ReadFile(path string, logger *zap.Logger) ([]sermon.Record, error) {
	f, err := os.Open(path) // #nosec G304 -- catalog paths come from the operator
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	records, err := Read(f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
