// Package config provides configuration management for the sqlgraph CLI.
package config

// Config holds all CLI configuration options.
type Config struct {
	Input          string                   `koanf:"input"`
	Glob           string                   `koanf:"glob"`
	DefaultCatalog string                   `koanf:"default_catalog"`
	OutputPath     string                   `koanf:"output_path"`
	Title          string                   `koanf:"title"`
	StatePath      string                   `koanf:"state_path"`
	NoState        bool                     `koanf:"no_state"`
	Workers        int                      `koanf:"workers"`
	Verbose        bool                     `koanf:"verbose"`
	LogFormat      string                   `koanf:"log_format"`
	OutputFormat   string                   `koanf:"output"`
	Serve          *ServeConfig             `koanf:"serve"`
	Profile        string                   `koanf:"profile"`
	Profiles       map[string]ProfileConfig `koanf:"profiles"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// ProfileConfig holds per-profile overrides, selected with --profile.
type ProfileConfig struct {
	Input          string `koanf:"input"`
	DefaultCatalog string `koanf:"default_catalog"`
	Glob           string `koanf:"glob"`
}

// ServeConfig holds configuration for the HTTP server.
type ServeConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// DefaultServeConfig returns a ServeConfig with default values.
func DefaultServeConfig() *ServeConfig {
	return &ServeConfig{Port: DefaultPort}
}

// GetServeConfig returns the serve config with defaults applied for any unset values.
func (c *Config) GetServeConfig() *ServeConfig {
	if c.Serve == nil {
		return DefaultServeConfig()
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = DefaultPort
	}
	return c.Serve
}

// Default configuration values.
const (
	DefaultGlob       = "*.sql"
	DefaultOutputPath = "sqlgraph.html"
	DefaultStateFile  = ".sqlgraph/state.db"
	DefaultPort       = 8787
	DefaultLogFormat  = "text"
	DefaultOutput     = "auto" // TTY=text, non-TTY=markdown
)
