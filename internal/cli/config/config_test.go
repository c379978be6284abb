package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sqlgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return dir, path
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single variable", input: "${TEST_VAR_ONE}", expected: "value_one"},
		{name: "multiple variables", input: "${TEST_VAR_ONE}/${TEST_VAR_TWO}", expected: "value_one/value_two"},
		{name: "unset variable stays as-is", input: "${UNSET_VARIABLE}", expected: "${UNSET_VARIABLE}"},
		{name: "no variables", input: "plain string", expected: "plain string"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	dir, path := writeConfig(t, "default_catalog: prod\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, "prod", cfg.DefaultCatalog)
	assert.Equal(t, DefaultGlob, cfg.Glob)
	assert.Equal(t, filepath.Join(dir, DefaultOutputPath), cfg.OutputPath)
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultPort, cfg.GetServeConfig().Port)
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FileValues(t *testing.T) {
	ResetConfig()
	dir, path := writeConfig(t, `input: sql
default_catalog: dw
glob: "*.ddl"
output_path: out/graph.html
state_path: ":memory:"
workers: 3
serve:
  port: 9000
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "sql"), cfg.Input)
	assert.Equal(t, "*.ddl", cfg.Glob)
	assert.Equal(t, filepath.Join(dir, "out", "graph.html"), cfg.OutputPath)
	assert.Equal(t, ":memory:", cfg.StatePath)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 9000, cfg.GetServeConfig().Port)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	_, path := writeConfig(t, "default_catalog: from_file\n")
	t.Setenv("SQLGRAPH_DEFAULT_CATALOG", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("default-catalog", "", "default catalog")
	require.NoError(t, flags.Set("default-catalog", "from_flag"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "from_flag", cfg.DefaultCatalog, "flag value should override config file and env var")
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	_, path := writeConfig(t, "default_catalog: from_file\n")
	t.Setenv("SQLGRAPH_DEFAULT_CATALOG", "from_env")
	t.Setenv("SQLGRAPH_SERVE__PORT", "9999")

	// The flag exists but is not set, so the env var is used.
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("default-catalog", "", "default catalog")

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.DefaultCatalog)
	assert.Equal(t, 9999, cfg.GetServeConfig().Port)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	ResetConfig()
	dir, path := writeConfig(t, "default_catalog: prod\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SQLGRAPH_TITLE=From dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SQLGRAPH_TITLE") })

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "From dotenv", cfg.Title)
}

func TestLoadConfig_FlagMapping(t *testing.T) {
	ResetConfig()
	_, path := writeConfig(t, "default_catalog: prod\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "")
	flags.String("out", "", "")
	flags.Int("port", 0, "")
	flags.Bool("no-state", false, "")
	require.NoError(t, flags.Set("state", "custom.db"))
	require.NoError(t, flags.Set("out", "report.html"))
	require.NoError(t, flags.Set("port", "1234"))
	require.NoError(t, flags.Set("no-state", "true"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	// Flag paths are relative to the working directory.
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "custom.db"), cfg.StatePath)
	assert.Equal(t, filepath.Join(wd, "report.html"), cfg.OutputPath)
	assert.Equal(t, 1234, cfg.GetServeConfig().Port)
	assert.True(t, cfg.NoState)
}

func TestLoadConfig_Profiles(t *testing.T) {
	content := `default_catalog: dev
input: sql
profiles:
  prod:
    default_catalog: prod
    input: ${SQLGRAPH_TEST_ROOT}/prod_sql
`
	t.Setenv("SQLGRAPH_TEST_ROOT", "/srv")

	t.Run("profile overrides file values", func(t *testing.T) {
		ResetConfig()
		_, path := writeConfig(t, content+"profile: prod\n")

		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "prod", cfg.DefaultCatalog)
		assert.Equal(t, filepath.FromSlash("/srv/prod_sql"), cfg.Input)
	})

	t.Run("flags win over profile", func(t *testing.T) {
		ResetConfig()
		_, path := writeConfig(t, content)

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("profile", "", "")
		flags.String("default-catalog", "", "")
		require.NoError(t, flags.Set("profile", "prod"))
		require.NoError(t, flags.Set("default-catalog", "adhoc"))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "adhoc", cfg.DefaultCatalog)
	})

	t.Run("unknown profile", func(t *testing.T) {
		ResetConfig()
		_, path := writeConfig(t, content+"profile: staging\n")

		_, err := LoadConfig(path, nil)
		assert.ErrorContains(t, err, `unknown profile "staging"`)
	})
}

func TestLoadConfig_SearchesUpward(t *testing.T) {
	ResetConfig()
	dir, path := writeConfig(t, "default_catalog: prod\n")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.DefaultCatalog)
	assert.Equal(t, filepath.Base(path), filepath.Base(GetConfigFileUsed()))
}

func TestLoadConfig_BadFile(t *testing.T) {
	ResetConfig()
	_, path := writeConfig(t, "default_catalog: [unclosed\n")

	_, err := LoadConfig(path, nil)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid", cfg: Config{DefaultCatalog: "prod"}},
		{name: "missing catalog", cfg: Config{DefaultCatalog: "  "}, wantErr: "default_catalog is required"},
		{name: "negative workers", cfg: Config{DefaultCatalog: "p", Workers: -1}, wantErr: "workers must not be negative"},
		{name: "bad log format", cfg: Config{DefaultCatalog: "p", LogFormat: "xml"}, wantErr: "unknown log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	assert.Error(t, (&Config{}).ValidateInput())
	assert.NoError(t, (&Config{Input: "sql"}).ValidateInput())
}

func TestGetLogger_Fallback(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
}
