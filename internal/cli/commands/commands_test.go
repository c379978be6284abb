package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	clitestutil "github.com/leapstack-labs/sqlgraph/internal/cli/testutil"
	"github.com/leapstack-labs/sqlgraph/internal/report"
	"github.com/leapstack-labs/sqlgraph/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewBuildCommand(), "build", []string{"input", "glob", "out", "title", "no-state", "watch"}},
		{NewExportCommand(), "export", []string{"input", "glob", "format", "file"}},
		{NewLineageCommand(), "lineage <table>", []string{"input", "glob", "upstream", "downstream", "depth"}},
		{NewDAGCommand(), "dag", []string{"input", "glob"}},
		{NewQueryCommand(), "query [SQL]", []string{"format", "file"}},
		{NewServeCommand(), "serve", []string{"input", "glob", "title", "port", "watch", "open"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
			for _, flag := range tt.flags {
				f := tt.cmd.Flags().Lookup(flag)
				if f == nil {
					f = tt.cmd.PersistentFlags().Lookup(flag)
				}
				assert.NotNil(t, f, "flag %q should exist", flag)
			}
		})
	}

	assert.Equal(t, []string{"graph"}, NewBuildCommand().Aliases)
	assert.Equal(t, "i", NewBuildCommand().Flags().Lookup("input").Shorthand)
}

func TestBuildCommand_Markdown(t *testing.T) {
	dir := clitestutil.SetupProject(t, "")

	out, errOut, err := execute(t, NewBuildCommand())
	require.NoError(t, err)

	clitestutil.AssertNoANSI(t, out)
	clitestutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Build summary")
	assert.Contains(t, out, "| Files | 2 |")
	assert.Contains(t, out, "| Tables | 8 |")
	assert.Contains(t, out, "| Temporaries | 1 |")
	assert.Contains(t, out, "| Lineage edges | 4 |")
	assert.Contains(t, out, "| Join pairs | 3 |")
	assert.Contains(t, out, "| Usage edges | 1 |")
	assert.Contains(t, out, "| Statements | 4 |")
	assert.Contains(t, out, "| Catalog switches | 1 |")
	assert.Contains(t, out, "## Written")
	assert.Contains(t, out, ", run ")
	assert.Empty(t, errOut)

	assert.FileExists(t, filepath.Join(dir, "sqlgraph.html"))
	for _, suffix := range []string{
		report.NodesSuffix, report.LineageSuffix, report.PairsSuffix,
		report.UsageSuffix, report.StatementSuffix, report.CatalogSuffix,
	} {
		assert.FileExists(t, filepath.Join(dir, "sqlgraph"+suffix))
	}
	assert.FileExists(t, filepath.Join(dir, ".sqlgraph", "state.db"))
}

func TestBuildCommand_JSON(t *testing.T) {
	dir := clitestutil.SetupProject(t, "output: json\nno_state: true\noutput_path: docs/lineage.html\n")

	out, _, err := execute(t, NewBuildCommand())
	require.NoError(t, err)

	var got BuildOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Empty(t, got.RunID)
	assert.Equal(t, 2, got.Files)
	assert.Equal(t, 8, got.Nodes)
	assert.Equal(t, 1, got.Temporaries)
	assert.Equal(t, 4, got.Lineage)
	assert.Equal(t, 3, got.Pairs)
	assert.Equal(t, 1, got.Usage)
	assert.Equal(t, 4, got.Statements)
	assert.Equal(t, 1, got.Catalogs)
	assert.False(t, got.Empty)
	require.Len(t, got.Outputs, 7)
	assert.Equal(t, filepath.Join(dir, "docs", "lineage.html"), got.Outputs[0])

	html, err := os.ReadFile(filepath.Join(dir, "docs", "lineage.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "SQL Graph - lineage")

	assert.NoDirExists(t, filepath.Join(dir, ".sqlgraph"))
}

func TestBuildCommand_EmptyGraphWarns(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"a.sql": "SELECT 1;"})
	clitestutil.LoadProjectConfig(t, dir, "input: .\ndefault_catalog: prod\nno_state: true\n")

	out, errOut, err := execute(t, NewBuildCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "| Tables | 0 |")
	assert.Contains(t, errOut, "Warning: no dependencies found")
	assert.FileExists(t, filepath.Join(dir, "sqlgraph.html"))
}

func TestBuildCommand_Errors(t *testing.T) {
	t.Run("missing catalog", func(t *testing.T) {
		dir := testutil.SetupSQLProject(t)
		clitestutil.LoadProjectConfig(t, dir, "input: .\n")

		_, _, err := execute(t, NewBuildCommand())
		assert.ErrorContains(t, err, "default_catalog is required")
	})

	t.Run("missing input", func(t *testing.T) {
		dir := t.TempDir()
		clitestutil.LoadProjectConfig(t, dir, "input: nowhere\ndefault_catalog: prod\nno_state: true\n")

		_, _, err := execute(t, NewBuildCommand())
		assert.Error(t, err)
		assert.NoFileExists(t, filepath.Join(dir, "sqlgraph.html"))
	})
}

func TestExportCommand(t *testing.T) {
	t.Run("json to stdout", func(t *testing.T) {
		clitestutil.SetupProject(t, "")

		out, _, err := execute(t, NewExportCommand())
		require.NoError(t, err)

		var got struct {
			Nodes       []map[string]any `json:"nodes"`
			Temporaries []string         `json:"temporaries"`
			Lineage     []map[string]any `json:"edges_lineage"`
			Catalogs    []map[string]any `json:"catalogs"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Len(t, got.Nodes, 8)
		assert.Equal(t, []string{"DW.DBO.TMP_ORDERS"}, got.Temporaries)
		assert.Len(t, got.Lineage, 4)
		require.Len(t, got.Catalogs, 1)
		assert.Equal(t, "DW", got.Catalogs[0]["catalog"])
	})

	t.Run("yaml to file", func(t *testing.T) {
		dir := clitestutil.SetupProject(t, "")
		path := filepath.Join(dir, "out", "lineage.yaml")

		out, _, err := execute(t, NewExportCommand(), "--format", "yaml", "--file", path)
		require.NoError(t, err)
		assert.Contains(t, out, "OK: wrote "+path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "edges_lineage:")
		assert.Contains(t, string(data), "DW.STAGE.ORDERS")
	})

	t.Run("unknown format", func(t *testing.T) {
		clitestutil.SetupProject(t, "")

		_, _, err := execute(t, NewExportCommand(), "-f", "xml")
		assert.ErrorContains(t, err, "unsupported export format")
	})
}
