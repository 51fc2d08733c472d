package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/crawler"
	"github.com/JakeFAU/sermon-harvester/internal/naming"
	"github.com/JakeFAU/sermon-harvester/internal/scripture"
	"github.com/JakeFAU/sermon-harvester/internal/sermon"
	"github.com/JakeFAU/sermon-harvester/internal/textnorm"
)

// DefaultDateLayouts are tried in order when a site configures none.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	"01/02/2006",
	"1/2/2006",
	"2 January 2006",
	"2006-01-02T15:04:05Z07:00",
}

// Kit bundles what every adapter needs to fetch, paginate and finish records.
type Kit struct {
	Name      string
	Fetcher   crawler.Fetcher
	Paginator *crawler.Paginator
	Namer     naming.Synthesizer
	PageParam string
	Logger    *zap.Logger
}

// ListLinks walks the numbered listing pages of entryURL and collects the
// links matching selector.
func (k Kit) ListLinks(ctx context.Context, entryURL, selector string) ([]string, error) {
	template, err := crawler.NewPageTemplate(entryURL, k.pageParam())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntryURL, err)
	}
	links, err := k.Paginator.Collect(ctx, entryURL, template, crawler.LinkExtractor(selector))
	if err != nil {
		return links, fmt.Errorf("collect links: %w", err)
	}
	return links, nil
}

// Document fetches and parses one item page.
func (k Kit) Document(ctx context.Context, itemURL string) (*goquery.Document, crawler.FetchResponse, error) {
	resp, err := k.Fetcher.Fetch(ctx, crawler.FetchRequest{URL: itemURL})
	if err != nil {
		return nil, resp, fmt.Errorf("fetch item: %w", err)
	}
	doc, err := crawler.Document(resp)
	if err != nil {
		return nil, resp, err
	}
	return doc, resp, nil
}

// Finish stamps provenance, simplifies scripture ranges and synthesizes the
// file name. It is the last step of every adapter's ParseItem.
func (k Kit) Finish(rec sermon.Record, itemURL string) sermon.Record {
	rec.Source = k.Name
	rec.Page = itemURL
	rec.Title = textnorm.CollapseSpaces(rec.Title)
	rec.Text = scripture.SimplifyList(rec.Text)
	return k.Namer.Apply(rec)
}

// Log returns the adapter logger.
func (k Kit) Log() *zap.Logger {
	if k.Logger == nil {
		return zap.NewNop()
	}
	return k.Logger
}

func (k Kit) pageParam() string {
	if strings.TrimSpace(k.PageParam) == "" {
		return "page"
	}
	return k.PageParam
}

// Text returns the collapsed text of the first match of selector.
func Text(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return textnorm.CollapseSpaces(doc.Find(selector).First().Text())
}

// Attr returns the first non-empty src or href of the elements matching
// selector, resolved against baseURL.
func Attr(doc *goquery.Document, baseURL, selector string) string {
	links := AttrAll(doc, baseURL, selector)
	if len(links) == 0 {
		return ""
	}
	return links[0]
}

// AttrAll returns every src or href of the elements matching selector,
// resolved against baseURL, de-duplicated in document order.
func AttrAll(doc *goquery.Document, baseURL, selector string) []string {
	if selector == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("src")
		if !ok || strings.TrimSpace(raw) == "" {
			raw, ok = s.Attr("href")
		}
		if !ok || strings.TrimSpace(raw) == "" {
			raw, ok = s.Attr("content")
		}
		if !ok {
			return
		}
		abs, ok := crawler.ResolveURL(baseURL, strings.TrimSpace(raw))
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}

// ResolveList resolves each part of a list value against baseURL. Parts that
// are not http(s) links after resolving are kept as scraped.
func ResolveList(baseURL, value string) string {
	parts := sermon.SplitList(value)
	for i, p := range parts {
		if abs, ok := crawler.ResolveURL(baseURL, p); ok {
			parts[i] = abs
		}
	}
	return sermon.JoinList(parts...)
}

// Meta returns the content of every <meta> tag whose property or name equals key.
func Meta(doc *goquery.Document, key string) []string {
	var out []string
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		if prop == "" {
			prop, _ = s.Attr("name")
		}
		if !strings.EqualFold(prop, key) {
			return
		}
		if content := textnorm.CollapseSpaces(s.AttrOr("content", "")); content != "" {
			out = append(out, content)
		}
	})
	return out
}

// Layouts returns layouts, or DefaultDateLayouts when empty.
func Layouts(layouts []string) []string {
	if len(layouts) == 0 {
		return DefaultDateLayouts
	}
	return layouts
}
