package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"carsync/internal/validation"
)

// Manifest describes what the worker precaches and how requests are routed.
// It lives in a YAML file because the lists are long and change with the
// dashboard's asset layout.
type Manifest struct {
	Precache       []string `yaml:"precache"`
	StaticPrefixes []string `yaml:"static_prefixes"`
	StaticSuffixes []string `yaml:"static_suffixes"`
	APIPrefix      string   `yaml:"api_prefix"`
	APIPatterns    []string `yaml:"api_patterns"`
	// RefreshEndpoints are re-fetched on every polling tick.
	RefreshEndpoints []string `yaml:"refresh_endpoints"`
}

// DefaultManifest returns the built-in dashboard manifest.
func DefaultManifest() *Manifest {
	return &Manifest{
		Precache: []string{
			"/",
			"/static/css/dashboard.css",
			"/static/css/charts.css",
			"/static/css/components.css",
			"/static/css/responsive.css",
			"/static/js/main.js",
			"/static/js/app.js",
			"/static/js/charts/price-trend.js",
			"/static/manifest.json",
			"https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/css/bootstrap.min.css",
			"https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/js/bootstrap.bundle.min.js",
			"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css",
			"https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.js",
			"https://fonts.googleapis.com/css2?family=Inter:wght@300;400;500;600;700&display=swap",
		},
		StaticPrefixes: []string{"/static/"},
		StaticSuffixes: []string{".css", ".js", ".png", ".jpg", ".svg", ".woff", ".woff2"},
		APIPrefix:      "/api/",
		APIPatterns: []string{
			`/api/cars/filters/`,
			`/api/searches/`,
			`/api/analytics/`,
			`/api/charts/`,
		},
		RefreshEndpoints: []string{
			"/api/analytics/",
			"/api/cars/",
		},
	}
}

// LoadManifest loads the manifest file, falling back to DefaultManifest when
// the file does not exist. Empty sections keep their defaults.
func LoadManifest(path string) (*Manifest, error) {
	m := DefaultManifest()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Manifest file is optional
			return m, nil
		}
		return nil, err
	}

	var file Manifest
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if len(file.Precache) > 0 {
		m.Precache = file.Precache
	}
	if len(file.StaticPrefixes) > 0 {
		m.StaticPrefixes = file.StaticPrefixes
	}
	if len(file.StaticSuffixes) > 0 {
		m.StaticSuffixes = file.StaticSuffixes
	}
	if file.APIPrefix != "" {
		m.APIPrefix = file.APIPrefix
	}
	if len(file.APIPatterns) > 0 {
		m.APIPatterns = file.APIPatterns
	}
	if len(file.RefreshEndpoints) > 0 {
		m.RefreshEndpoints = file.RefreshEndpoints
	}

	for _, entry := range m.Precache {
		if valid, msg := validation.ValidatePrecacheEntry(entry); !valid {
			return nil, fmt.Errorf("manifest precache entry %q: %s", entry, msg)
		}
	}
	for _, endpoint := range m.RefreshEndpoints {
		if valid, msg := validation.ValidateTargetPath(endpoint); !valid {
			return nil, fmt.Errorf("manifest refresh endpoint %q: %s", endpoint, msg)
		}
	}
	if _, err := m.CompiledAPIPatterns(); err != nil {
		return nil, err
	}
	return m, nil
}

// CompiledAPIPatterns compiles the API sub-path patterns.
func (m *Manifest) CompiledAPIPatterns() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(m.APIPatterns))
	for _, p := range m.APIPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid api pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
