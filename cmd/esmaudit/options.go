package main

import (
	"log/slog"

	"github.com/panbanda/esmaudit/pkg/analyzer/walker"
	"github.com/panbanda/esmaudit/pkg/config"
	"github.com/panbanda/esmaudit/pkg/manifest"
	"github.com/panbanda/esmaudit/pkg/resolver"
)

func resolverOptions(cfg *config.Config) resolver.Options {
	return resolver.Options{
		Conditions:       cfg.Resolve.Conditions,
		MainFields:       cfg.Resolve.MainFields,
		Extensions:       cfg.Resolve.Extensions,
		ModuleStore:      cfg.Walk.ModuleStore,
		CacheSize:        cfg.Resolve.ManifestCache,
		PreserveSymlinks: cfg.Resolve.PreserveSymlinks,
	}
}

func walkerOptions(cfg *config.Config, logger *slog.Logger, onProgress func()) walker.Options {
	return walker.Options{
		Workers:        cfg.Walk.Workers,
		SkipPackages:   nonNil(cfg.Walk.SkipPackages),
		SkipExtensions: nonNil(cfg.Walk.SkipExtensions),
		ModuleStore:    cfg.Walk.ModuleStore,
		ScopePrefix:    cfg.Walk.ScopePrefix,
		OnProgress:     onProgress,
		Logger:         logger,
	}
}

func manifestOptions(cfg *config.Config) manifest.Options {
	return manifest.Options{
		IncludeDev:      cfg.Manifest.IncludeDev,
		IncludeOptional: cfg.Manifest.IncludeOptional,
		IncludePeer:     cfg.Manifest.IncludePeer,
	}
}

// nonNil keeps an empty configured list empty, since the walker reads nil
// as "use the defaults".
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
