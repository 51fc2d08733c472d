// Package source defines the site adapter contract and the harvest run that
// turns an entry URL into a persisted catalog table.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/catalog"
	"github.com/JakeFAU/sermon-harvester/internal/dispatch"
	"github.com/JakeFAU/sermon-harvester/internal/metrics"
	"github.com/JakeFAU/sermon-harvester/internal/sermon"
)

// ErrInvalidEntryURL aborts a run whose entry point is not an absolute http(s) URL.
var ErrInvalidEntryURL = errors.New("invalid entry url")

// Adapter lists and parses the sermons of one publishing platform.
type Adapter interface {
	Name() string
	ListItemLinks(ctx context.Context, entryURL string) ([]string, error)
	ParseItem(ctx context.Context, itemURL string) (sermon.Record, error)
}

// ItemError records an item that could not be parsed.
type ItemError struct {
	URL string
	Err error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %s: %v", e.URL, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one Harvest call.
type Result struct {
	Table    sermon.Table
	Receipt  catalog.Receipt
	Failures []ItemError
	// ListErr is set when pagination stopped early; Table holds what was listed before.
	ListErr  error
	Duration time.Duration
}

// Harvester runs an adapter end to end.
type Harvester struct {
	Executor  dispatch.Executor
	Persister catalog.Persister
	Logger    *zap.Logger
}

// ValidateEntryURL checks that raw is an absolute http or https URL.
func ValidateEntryURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidEntryURL, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEntryURL, raw)
	}
	return nil
}

// Harvest lists the items behind entryURL, parses them in parallel and
// persists the resulting table. Item failures are reported in the result
// and never abort the run.
func (h *Harvester) Harvest(ctx context.Context, adapter Adapter, entryURL string) (Result, error) {
	start := time.Now()
	name := adapter.Name()
	logger := h.logger().With(zap.String("source", name))
	if err := ValidateEntryURL(entryURL); err != nil {
		return Result{}, err
	}

	var res Result
	links, err := adapter.ListItemLinks(ctx, entryURL)
	if err != nil {
		if len(links) == 0 {
			return Result{}, fmt.Errorf("list %s: %w", name, err)
		}
		logger.Warn("listing stopped early", zap.Int("links", len(links)), zap.Error(err))
		res.ListErr = err
	}
	logger.Info("items listed", zap.String("entry", entryURL), zap.Int("items", len(links)))

	exec := h.Executor
	if exec == nil {
		exec = &dispatch.Sequential{}
	}
	results := dispatch.Map(ctx, exec, links, adapter.ParseItem)

	res.Table = sermon.Table{Source: name, Records: make([]sermon.Record, 0, len(results))}
	for i, r := range results {
		if r.Err != nil {
			metrics.ObserveItem(name, "error")
			logger.Warn("item failed", zap.Int("item", i+1), zap.String("url", links[i]), zap.Error(r.Err))
			res.Failures = append(res.Failures, ItemError{URL: links[i], Err: r.Err})
			continue
		}
		metrics.ObserveItem(name, "ok")
		logger.Info("item parsed", zap.Int("item", i+1), zap.String("title", r.Value.Title))
		res.Table.Records = append(res.Table.Records, r.Value)
	}

	if h.Persister != nil {
		receipt, err := h.Persister.Persist(ctx, res.Table)
		if err != nil {
			return res, fmt.Errorf("persist %s: %w", name, err)
		}
		res.Receipt = receipt
	}
	res.Duration = time.Since(start)
	logger.Info("harvest finished",
		zap.Int("records", res.Table.Len()),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (h *Harvester) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger.Named("harvest")
}
