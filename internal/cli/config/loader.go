package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix is the prefix of environment variables read into the config.
// Nested keys use a double underscore: SQLGRAPH_SERVE__PORT sets serve.port.
const EnvPrefix = "SQLGRAPH_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configFileNames = []string{"sqlgraph.yaml", "sqlgraph.yml"}

// flagKeys maps CLI flag names whose config key differs from the
// kebab-to-snake default.
var flagKeys = map[string]string{
	"state": "state_path",
	"out":   "output_path",
	"port":  "serve.port",
}

// pathFlags are flags holding paths; when set on the command line they are
// relative to the working directory, not the project root.
var pathFlags = []string{"input", "out", "state"}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

func configExistsIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a sqlgraph config
// file and returns its directory and path.
func findProjectRootUpward(startDir string) (string, string) {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if cfg := configExistsIn(dir); cfg != "" {
			return dir, cfg
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ""
}

// locate determines the project root and the config file to load.
// Priority: explicit --config file > sqlgraph.yaml found upward from CWD > CWD.
func locate(cfgFile string) (root, path string) {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs), abs
		}
		return filepath.Dir(cfgFile), cfgFile
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		cwd = "."
	}
	if root, path := findProjectRootUpward(cwd); root != "" {
		return root, path
	}
	return cwd, ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, the config file, a .env file
// in the project root, environment variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	projectRoot, path := locate(cfgFile)

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"glob":        DefaultGlob,
		"output_path": DefaultOutputPath,
		"state_path":  DefaultStateFile,
		"log_format":  DefaultLogFormat,
		"output":      DefaultOutput,
		"serve.port":  DefaultPort,
		"verbose":     false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = path
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment, with .env from the project root filling unset variables
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	if err := cfg.applyProfile(flags); err != nil {
		return nil, err
	}

	cfg.Input = expandEnvVars(cfg.Input)
	cfg.OutputPath = expandEnvVars(cfg.OutputPath)
	cfg.StatePath = expandEnvVars(cfg.StatePath)

	// 6. Resolve relative paths: flag values against CWD, the rest against
	// the project root.
	fromFlag := changedFlags(flags)
	cfg.Input = resolvePath(cfg.Input, fromFlag["input"], projectRoot)
	cfg.OutputPath = resolvePath(cfg.OutputPath, fromFlag["out"], projectRoot)
	cfg.StatePath = resolvePath(cfg.StatePath, fromFlag["state"], projectRoot)
	cfg.GetServeConfig()

	currentConfig = &cfg
	return &cfg, nil
}

// applyProfile overlays the selected profile. Values set by flags win.
func (c *Config) applyProfile(flags *pflag.FlagSet) error {
	if c.Profile == "" {
		return nil
	}
	p, ok := c.Profiles[c.Profile]
	if !ok {
		return fmt.Errorf("unknown profile %q", c.Profile)
	}

	changed := func(name string) bool { return flags != nil && flags.Changed(name) }
	if p.Input != "" && !changed("input") {
		c.Input = p.Input
	}
	if p.DefaultCatalog != "" && !changed("default-catalog") {
		c.DefaultCatalog = p.DefaultCatalog
	}
	if p.Glob != "" && !changed("glob") {
		c.Glob = p.Glob
	}
	return nil
}

func changedFlags(flags *pflag.FlagSet) map[string]bool {
	out := make(map[string]bool, len(pathFlags))
	if flags == nil {
		return out
	}
	for _, name := range pathFlags {
		out[name] = flags.Changed(name)
	}
	return out
}

func resolvePath(path string, fromFlag bool, projectRoot string) string {
	if !fromFlag {
		return resolvePathRelativeTo(path, projectRoot)
	}
	if path == "" || path == ":memory:" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by the last LoadConfig.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unknown variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}
