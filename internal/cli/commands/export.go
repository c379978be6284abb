package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlgraph/internal/report"
	"github.com/spf13/cobra"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Format string
	File   string
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the aggregated lineage graph as JSON or YAML",
		Long: `Extract lineage and print the whole graph: nodes, edges, statements,
catalog switches, creation histories and consumers.`,
		Example: `  sqlgraph export -i sql/ --default-catalog PROD
  sqlgraph export --format yaml --file lineage.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringP("input", "i", "", "SQL file or directory to scan")
	cmd.Flags().String("glob", "", "File name pattern inside the input directory (default *.sql)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "Export format: json, yaml")
	cmd.Flags().StringVar(&opts.File, "file", "", "Write to a file instead of stdout")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) (err error) {
	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cmdCtx.Engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.File, err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if err := report.Export(w, res.Graph, opts.Format); err != nil {
		return err
	}
	if opts.File != "" {
		cmdCtx.Renderer.Success("wrote " + opts.File)
	}
	return nil
}
