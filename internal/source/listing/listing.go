// Package listing adapts sites that publish each sermon as a page of
// label/value pairs.
package listing

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/fields"
	"github.com/JakeFAU/sermon-harvester/internal/sermon"
	"github.com/JakeFAU/sermon-harvester/internal/source"
)

// Rules are the selectors used on listing and item pages.
type Rules struct {
	ItemLinkSelector string
	TitleSelector    string
	LabelSelector    string
	ContentSelector  string
	AudioSelector    string
	FilesSelector    string
	DateLayouts      []string
	Mapping          fields.Mapping
}

// DefaultRules match the common "dl.sermon-meta" item layout.
func DefaultRules() Rules {
	return Rules{
		ItemLinkSelector: ".sermon-list a.sermon-link[href]",
		TitleSelector:    "h1",
		LabelSelector:    ".sermon-meta dt",
		ContentSelector:  ".sermon-meta dd",
		AudioSelector:    "audio source[src], audio[src], a.audio-download[href]",
		FilesSelector:    "a.file-download[href]",
		Mapping:          fields.DefaultMapping(),
	}
}

// Adapter implements source.Adapter for label/value item pages.
type Adapter struct {
	kit   source.Kit
	rules Rules
}

// New returns an adapter. Empty rule fields take the defaults.
func New(kit source.Kit, rules Rules) *Adapter {
	def := DefaultRules()
	rules.ItemLinkSelector = orDefault(rules.ItemLinkSelector, def.ItemLinkSelector)
	rules.TitleSelector = orDefault(rules.TitleSelector, def.TitleSelector)
	rules.LabelSelector = orDefault(rules.LabelSelector, def.LabelSelector)
	rules.ContentSelector = orDefault(rules.ContentSelector, def.ContentSelector)
	rules.AudioSelector = orDefault(rules.AudioSelector, def.AudioSelector)
	rules.FilesSelector = orDefault(rules.FilesSelector, def.FilesSelector)
	if rules.Mapping == nil {
		rules.Mapping = def.Mapping
	}
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
	title := source.Text(doc, a.rules.TitleSelector)
	labels := texts(doc.Find(a.rules.LabelSelector))
	contents := texts(doc.Find(a.rules.ContentSelector))

	row := fields.Normalize(title, labels, contents)
	rec, warnings := a.rules.Mapping.Apply(row, sermon.Record{}, a.rules.DateLayouts)
	for _, w := range warnings {
		a.kit.Log().Warn("item field warning", zap.String("url", itemURL), zap.String("warning", w))
	}

	rec.Audio = source.ResolveList(resp.URL, rec.Audio)
	if !rec.HasAudio() {
		rec.Audio = source.Attr(doc, resp.URL, a.rules.AudioSelector)
	}
	files := source.AttrAll(doc, resp.URL, a.rules.FilesSelector)
	rec.Files = sermon.JoinList(append([]string{source.ResolveList(resp.URL, rec.Files)}, files...)...)
	return a.kit.Finish(rec, itemURL), nil
}

func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
