// Package platform adapts hosted sermon platforms that embed each item as a
// JSON payload in a script element.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/fields"
	"github.com/JakeFAU/sermon-harvester/internal/sermon"
	"github.com/JakeFAU/sermon-harvester/internal/source"
	"github.com/JakeFAU/sermon-harvester/internal/textnorm"
)

// ErrNoPayload is returned when an item page carries no valid JSON payload.
var ErrNoPayload = errors.New("item page has no json payload")

// Rules locate the payload and map its keys onto canonical fields.
type Rules struct {
	ItemLinkSelector string
	PayloadSelector  string
	// Paths maps a canonical field name (lowercase) to a gjson path.
	Paths       map[string]string
	DateLayouts []string
}

var fieldOrder = []string{fields.Title, fields.Teacher, fields.Text, fields.Topics, fields.Date, fields.Audio, fields.Files}

// DefaultRules match the payload shape of the common hosted platforms.
func DefaultRules() Rules {
	return Rules{
		ItemLinkSelector: ".media-list a.media-item[href]",
		PayloadSelector:  "script[type='application/json'][data-sermon], script#sermon-data",
		Paths: map[string]string{
			"title":   "title",
			"teacher": "speakers.#.name",
			"text":    "passages",
			"topics":  "topics",
			"date":    "date",
			"audio":   "media.audio.url",
			"files":   "attachments.#.url",
		},
	}
}

// Adapter implements source.Adapter for embedded JSON payloads.
type Adapter struct {
	kit   source.Kit
	rules Rules
}

// New returns an adapter. Configured paths override the defaults per field.
func New(kit source.Kit, rules Rules) *Adapter {
	def := DefaultRules()
	if strings.TrimSpace(rules.ItemLinkSelector) == "" {
		rules.ItemLinkSelector = def.ItemLinkSelector
	}
	if strings.TrimSpace(rules.PayloadSelector) == "" {
		rules.PayloadSelector = def.PayloadSelector
	}
	paths := make(map[string]string, len(def.Paths))
	for k, v := range def.Paths {
		paths[k] = v
	}
	for k, v := range rules.Paths {
		paths[strings.ToLower(k)] = v
	}
	rules.Paths = paths
	rules.DateLayouts = source.Layouts(rules.DateLayouts)
	return &Adapter{kit: kit, rules: rules}
}

// Name implements source.Adapter.
func (a *Adapter) Name() string {
	return a.kit.Name
}

// ListItemLinks implements source.Adapter.
func (a *Adapter) ListItemLinks(ctx context.Context, entryURL string) ([]string, error) {
	return a.kit.ListLinks(ctx, entryURL, a.rules.ItemLinkSelector)
}

// ParseItem implements source.Adapter.
func (a *Adapter) ParseItem(ctx context.Context, itemURL string) (sermon.Record, error) {
	doc, resp, err := a.kit.Document(ctx, itemURL)
	if err != nil {
		return sermon.Record{}, err
	}
	payload := strings.TrimSpace(doc.Find(a.rules.PayloadSelector).First().Text())
	if payload == "" || !gjson.Valid(payload) {
		return sermon.Record{}, fmt.Errorf("%s: %w", itemURL, ErrNoPayload)
	}
	rec := a.Map(payload)
	rec.Audio = source.ResolveList(resp.URL, rec.Audio)
	rec.Files = source.ResolveList(resp.URL, rec.Files)
	return a.kit.Finish(rec, itemURL), nil
}

// Map copies the configured payload paths onto a record. Values that do not
// fit their field are logged and left empty.
func (a *Adapter) Map(payload string) sermon.Record {
	var rec sermon.Record
	for _, field := range fieldOrder {
		path := a.rules.Paths[strings.ToLower(field)]
		if path == "" {
			continue
		}
		result := gjson.Get(payload, path)
		if !result.Exists() {
			continue
		}
		if field == fields.Date && result.Type == gjson.Number {
			rec.Date = time.Unix(result.Int(), 0).UTC()
			continue
		}
		value := sermon.JoinList(values(result)...)
		if textnorm.IsMissing(value) {
			continue
		}
		if err := fields.Set(&rec, field, value, a.rules.DateLayouts); err != nil {
			a.kit.Log().Warn("payload field skipped", zap.String("field", field), zap.Error(err))
		}
	}
	return rec
}

func values(result gjson.Result) []string {
	if !result.IsArray() {
		return []string{result.String()}
	}
	var out []string
	result.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}
