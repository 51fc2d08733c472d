// Package registry builds source adapters from configuration.
package registry

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/config"
	"github.com/JakeFAU/sermon-harvester/internal/crawler"
	"github.com/JakeFAU/sermon-harvester/internal/fields"
	"github.com/JakeFAU/sermon-harvester/internal/naming"
	"github.com/JakeFAU/sermon-harvester/internal/source"
	"github.com/JakeFAU/sermon-harvester/internal/source/hybrid"
	"github.com/JakeFAU/sermon-harvester/internal/source/listing"
	"github.com/JakeFAU/sermon-harvester/internal/source/platform"
)

// Deps are shared by every adapter.
type Deps struct {
	Fetcher   crawler.Fetcher
	Paginator *crawler.Paginator
	Namer     naming.Synthesizer
	Logger    *zap.Logger
}

// Build returns the adapter described by cfg.
func Build(cfg config.SourceConfig, deps Deps) (source.Adapter, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	kit := source.Kit{
		Name:      cfg.Name,
		Fetcher:   deps.Fetcher,
		Paginator: deps.Paginator,
		Namer:     deps.Namer,
		PageParam: cfg.PageParam,
		Logger:    logger.Named(cfg.Name),
	}
	r := cfg.Rules
	switch cfg.Kind {
	case config.KindListing:
		rules := listing.Rules{
			ItemLinkSelector: r.ItemLinkSelector,
			TitleSelector:    r.TitleSelector,
			LabelSelector:    r.LabelSelector,
			ContentSelector:  r.ContentSelector,
			AudioSelector:    r.AudioSelector,
			FilesSelector:    r.FilesSelector,
			DateLayouts:      r.DateLayouts,
			Mapping:          fields.DefaultMapping().Merge(r.Labels),
		}
		return listing.New(kit, rules), nil
	case config.KindPlatform:
		return platform.New(kit, platform.Rules{
			ItemLinkSelector: r.ItemLinkSelector,
			PayloadSelector:  r.PayloadSelector,
			Paths:            r.Paths,
			DateLayouts:      r.DateLayouts,
		}), nil
	case config.KindHybrid:
		return hybrid.New(kit, hybrid.Rules{
			ItemLinkSelector: r.ItemLinkSelector,
			SubtitleSelector: r.SubtitleSelector,
			Separator:        r.Separator,
			DateLayouts:      r.DateLayouts,
		}), nil
	default:
		return nil, fmt.Errorf("source %q: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

// BuildAll builds one adapter per configured source, keyed by name.
func BuildAll(sources []config.SourceConfig, deps Deps) (map[string]source.Adapter, error) {
	out := make(map[string]source.Adapter, len(sources))
	for _, cfg := range sources {
		a, err := Build(cfg, deps)
		if err != nil {
			return nil, err
		}
		out[cfg.Name] = a
	}
	return out, nil
}
