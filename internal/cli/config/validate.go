package config

import (
	"fmt"
	"strings"
)

// Validate checks if the configuration is valid for running an extraction.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DefaultCatalog) == "" {
		return fmt.Errorf("default_catalog is required\nHint: pass --default-catalog or set it in sqlgraph.yaml")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// ValidateInput checks that an input path was given. Existence is checked by
// the engine, which resolves paths case-insensitively.
func (c *Config) ValidateInput() error {
	if strings.TrimSpace(c.Input) == "" {
		return fmt.Errorf("no input path\nHint: pass --input or set input in sqlgraph.yaml")
	}
	return nil
}
