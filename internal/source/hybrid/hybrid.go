// Package hybrid adapts sites that describe each sermon with Open Graph meta
// tags plus a free-text subtitle such as "May 7, 2023 | John Smith | John 3:16".
package hybrid

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/crawler"
	"github.com/JakeFAU/sermon-harvester/internal/scripture"
	"github.com/JakeFAU/sermon-harvester/internal/sermon"
	"github.com/JakeFAU/sermon-harvester/internal/source"
	"github.com/JakeFAU/sermon-harvester/internal/textnorm"
)

// Rules locate the subtitle and name its separator.
type Rules struct {
	ItemLinkSelector string
	SubtitleSelector string
	Separator        string
	DateLayouts      []string
}

var audioMeta = []string{"og:audio", "og:audio:url", "og:audio:secure_url"}

// DefaultRules match the usual blog-style sermon archive.
func DefaultRules() Rules {
	return Rules{
		ItemLinkSelector: ".entry-title a[href]",
		SubtitleSelector: ".sermon-subtitle",
		Separator:        "|",
	}
}

// Adapter implements source.Adapter for meta tag pages.
type Adapter struct {
	kit   source.Kit
	rules Rules
}

// New returns an adapter. Empty rule fields take the defaults.
func New(kit source.Kit, rules Rules) *Adapter {
	def := DefaultRules()
	if strings.TrimSpace(rules.ItemLinkSelector) == "" {
		rules.ItemLinkSelector = def.ItemLinkSelector
	}
	if strings.TrimSpace(rules.SubtitleSelector) == "" {
		rules.SubtitleSelector = def.SubtitleSelector
	}
	if strings.TrimSpace(rules.Separator) == "" {
		rules.Separator = def.Separator
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
	logger := a.kit.Log().With(zap.String("url", itemURL))

	var rec sermon.Record
	if titles := source.Meta(doc, "og:title"); len(titles) > 0 {
		rec.Title = titles[0]
	} else {
		rec.Title = source.Text(doc, "title")
	}
	for _, key := range audioMeta {
		for _, raw := range source.Meta(doc, key) {
			if abs, ok := crawler.ResolveURL(resp.URL, raw); ok {
				rec.Audio = abs
				break
			}
		}
		if rec.Audio != "" {
			break
		}
	}
	rec.Topics = sermon.JoinList(source.Meta(doc, "article:tag")...)

	var extras []string
	date, teacher, text := a.Split(source.Text(doc, a.rules.SubtitleSelector))
	if date != "" {
		if d, ok := textnorm.ParseDate(date, a.rules.DateLayouts); ok {
			rec.Date = d
		} else {
			logger.Warn("subtitle date not recognised", zap.String("date", date))
			extras = append(extras, "Date: "+date)
		}
	}
	rec.Teacher = teacher
	if textnorm.IsMissing(text) {
		rec.Text = sermon.SelectedScriptures
	} else {
		converted, ambiguous := scripture.CommasToSemicolons(textnorm.CollapseSpaces(text))
		if ambiguous {
			logger.Warn("scripture list ambiguous", zap.String("text", text), zap.String("converted", converted))
		}
		rec.Text = converted
	}
	rec.Extra = sermon.JoinList(extras...)
	return a.kit.Finish(rec, itemURL), nil
}

// Split cuts the subtitle into up to three positional fields: date,
// teacher and text. Missing positions are empty.
func (a *Adapter) Split(subtitle string) (date, teacher, text string) {
	subtitle = strings.TrimSpace(subtitle)
	if subtitle == "" {
		return "", "", ""
	}
	parts := strings.SplitN(subtitle, a.rules.Separator, 3)
	out := make([]string, 3)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if textnorm.IsMissing(p) {
			p = ""
		}
		out[i] = p
	}
	return out[0], out[1], out[2]
}
