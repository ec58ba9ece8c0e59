package config

import (
	"fmt"

	"github.com/cognicore/docxref/pkg/docxref/patterns"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	PatternsPath string
	CatalogPath  string
	SettingsPath string
}

// Components holds all loaded configuration components
type Components struct {
	Registry *patterns.Registry
	Catalog  *Catalog
	Settings Settings
}

// Load reads every configured file. Empty paths fall back to the built-in
// registry, an empty catalog and default settings.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{
		Registry: patterns.Default(),
		Catalog:  &Catalog{},
		Settings: DefaultSettings(),
	}

	if l.PatternsPath != "" {
		reg, err := LoadPatterns(l.PatternsPath)
		if err != nil {
			return nil, fmt.Errorf("load patterns: %w", err)
		}
		comp.Registry = reg
	}

	if l.CatalogPath != "" {
		cat, err := LoadCatalog(l.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		comp.Catalog = cat
	}

	if l.SettingsPath != "" {
		s, err := LoadSettings(l.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		comp.Settings = s
	}

	return comp, nil
}
