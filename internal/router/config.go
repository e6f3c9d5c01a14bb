package router

import (
	"fmt"
	"net/url"

	"carsync/internal/config"
)

// ConfigFrom derives the router configuration from application config and
// the manifest.
func ConfigFrom(cfg *config.Config, m *config.Manifest) (Config, error) {
	origin, err := url.Parse(cfg.OriginURL)
	if err != nil {
		return Config{}, fmt.Errorf("parse origin url: %w", err)
	}
	patterns, err := m.CompiledAPIPatterns()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Origin:           origin,
		BaseName:         cfg.BaseCacheName(),
		StaticName:       cfg.StaticCacheName(),
		DataName:         cfg.DataCacheName(),
		Precache:         m.Precache,
		RefreshEndpoints: m.RefreshEndpoints,
		Rules: Rules{
			OriginHost:     origin.Hostname(),
			StaticPrefixes: m.StaticPrefixes,
			StaticSuffixes: m.StaticSuffixes,
			APIPrefix:      m.APIPrefix,
			APIPatterns:    patterns,
		},
	}, nil
}
