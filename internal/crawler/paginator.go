package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxPages bounds a walk when no cap is configured.
const DefaultMaxPages = 500

// PagePlaceholder marks the page index inside a path-style entry URL.
const PagePlaceholder = "{page}"

// PageTemplate renders the URL of a 1-based page index.
type PageTemplate func(page int) string

// ExtractFunc returns the item links found on one fetched page.
type ExtractFunc func(resp FetchResponse) ([]string, error)

// Paginator walks numbered listing pages until one comes back empty.
type Paginator struct {
	Fetcher  Fetcher
	MaxPages int
	Logger   *zap.Logger
}

// Collect fetches pages 1, 2, ... and returns the order-preserving union of
// the links they yield. The walk stops at the first page with no links, at a
// 404 or 410, or at MaxPages. When no page yields a link the entry URL
// itself is returned as the only item. A fetch failure on any other page
// stops the walk and is returned together with the links gathered so far.
func (p *Paginator) Collect(ctx context.Context, entryURL string, template PageTemplate, extract ExtractFunc) ([]string, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var links []string
	seen := make(map[string]struct{})
	for page := 1; ; page++ {
		if page > maxPages {
			logger.Warn("page cap reached", zap.String("entry", entryURL), zap.Int("max_pages", maxPages))
			break
		}
		if err := ctx.Err(); err != nil {
			return links, fmt.Errorf("collect %s: %w", entryURL, err)
		}
		pageURL := template(page)
		resp, err := p.Fetcher.Fetch(ctx, FetchRequest{URL: pageURL})
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Gone() {
				logger.Info("page empty", zap.Int("page", page), zap.String("url", pageURL), zap.Int("status", statusErr.StatusCode))
				break
			}
			return links, fmt.Errorf("page %d (%s): %w", page, pageURL, err)
		}
		found, err := extract(resp)
		if err != nil {
			return links, fmt.Errorf("extract page %d (%s): %w", page, pageURL, err)
		}
		if len(found) == 0 {
			logger.Info("page empty", zap.Int("page", page), zap.String("url", pageURL))
			break
		}
		added := 0
		for _, link := range found {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
			added++
		}
		logger.Info("page read", zap.Int("page", page), zap.String("url", pageURL), zap.Int("links", len(found)), zap.Int("new", added))
	}

	if len(links) == 0 {
		return []string{entryURL}, nil
	}
	return links, nil
}

// QueryPageTemplate sets the page query parameter on the entry URL,
// replacing any value it already carries.
func QueryPageTemplate(entryURL, param string) (PageTemplate, error) {
	if strings.TrimSpace(param) == "" {
		return nil, errors.New("page parameter is required")
	}
	u, err := url.Parse(entryURL)
	if err != nil {
		return nil, fmt.Errorf("parse entry url: %w", err)
	}
	return func(page int) string {
		clone := *u
		q := clone.Query()
		q.Set(param, strconv.Itoa(page))
		clone.RawQuery = q.Encode()
		return clone.String()
	}, nil
}

// PathPageTemplate substitutes the page index for PagePlaceholder.
func PathPageTemplate(pattern string) (PageTemplate, error) {
	if !strings.Contains(pattern, PagePlaceholder) {
		return nil, fmt.Errorf("pattern %q has no %s placeholder", pattern, PagePlaceholder)
	}
	return func(page int) string {
		return strings.ReplaceAll(pattern, PagePlaceholder, strconv.Itoa(page))
	}, nil
}

// NewPageTemplate picks PathPageTemplate when the entry URL carries the
// placeholder and QueryPageTemplate otherwise.
func NewPageTemplate(entryURL, param string) (PageTemplate, error) {
	if strings.Contains(entryURL, PagePlaceholder) {
		return PathPageTemplate(entryURL)
	}
	return QueryPageTemplate(entryURL, param)
}
