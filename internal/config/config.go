// Package config loads twbgraph settings from an HCL file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/agentic-research/twbgraph/api"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

const (
	// DefaultPreferences is where Tableau keeps the user preference file,
	// relative to the repository directory.
	DefaultPreferences = "Preferences/Preferences.tps"
	// DefaultCatalog is the catalog database written when none is configured.
	DefaultCatalog = "twbgraph.db"
)

// Default returns the configuration used when no file is present.
func Default() *api.Config {
	return &api.Config{
		Preferences: DefaultPreferences,
		Catalog:     DefaultCatalog,
	}
}

// Load reads the HCL file at path. A missing file yields Default unless
// required is set.
func Load(fsys billy.Filesystem, path string, required bool) (*api.Config, error) {
	src, err := util.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse decodes HCL source. Unset values fall back to Default.
func Parse(src []byte, filename string) (*api.Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var cfg api.Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	if cfg.Preferences == "" {
		cfg.Preferences = DefaultPreferences
	}
	if cfg.Catalog == "" {
		cfg.Catalog = DefaultCatalog
	}
	for i, b := range cfg.Bindings {
		if b.Palette == "" {
			return nil, fmt.Errorf("%s: binding %d has an empty palette label", filename, i)
		}
		if len(b.Columns) == 0 && !b.Measure {
			return nil, fmt.Errorf("%s: binding %q names no columns", filename, b.Palette)
		}
	}
	return &cfg, nil
}

// PaletteOr returns name, or the configured default palette when name is empty.
func PaletteOr(cfg *api.Config, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if cfg.Palette == "" {
		return "", errors.New("no palette given and none configured")
	}
	return cfg.Palette, nil
}
