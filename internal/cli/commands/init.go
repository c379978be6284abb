package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a sqlgraph.yaml for a SQL codebase",
		Long: `Initialize a sqlgraph project: a sqlgraph.yaml configuration file, a
.gitignore for generated reports and an sql/ directory for scripts.

Use --example to add two sample scripts covering temporary tables, joins,
catalog switches, views and inserts.`,
		Example: `  # Initialize in current directory
  sqlgraph init

  # Initialize a new directory with sample scripts
  sqlgraph init lineage-demo --example

  # Force overwrite existing config
  sqlgraph init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Add sample SQL scripts")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if err := os.MkdirAll(filepath.Join(dir, "sql"), 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "sqlgraph.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("sqlgraph.yaml already exists. Use --force to overwrite")
	}

	files, err := copyTemplate(template, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	r.Header(2, "Created")
	for _, f := range files {
		r.Println("- " + f)
	}
	r.Println("")
	r.Success("sqlgraph project initialized in " + dir)
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Put your SQL scripts under sql/")
	r.Println("  2. Set default_catalog in sqlgraph.yaml")
	r.Println("  3. Run 'sqlgraph build' and open sqlgraph.html")
	r.Println("  4. Run 'sqlgraph doctor' to check the lineage for problems")

	return nil
}
