package crawler

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Document parses a fetched page.
func Document(resp FetchResponse) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", resp.URL, err)
	}
	return doc, nil
}

// SelectLinks returns the absolute, de-duplicated href targets of the
// elements matching selector, in document order.
func SelectLinks(doc *goquery.Document, baseURL, selector string) []string {
	var links []string
	seen := make(map[string]struct{})
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs, ok := ResolveURL(baseURL, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// LinkExtractor builds an ExtractFunc that selects item links with a CSS selector.
func LinkExtractor(selector string) ExtractFunc {
	return func(resp FetchResponse) ([]string, error) {
		doc, err := Document(resp)
		if err != nil {
			return nil, err
		}
		return SelectLinks(doc, resp.URL, selector), nil
	}
}
