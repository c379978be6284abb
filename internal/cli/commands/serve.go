package commands

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/leapstack-labs/sqlgraph/internal/report"
	"github.com/leapstack-labs/sqlgraph/internal/ui"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Watch bool
	Open  bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lineage graph over HTTP",
		Long: `Extract lineage once and serve it from a local web server.

Routes:
  /                 interactive graph page
  /api/graph        full graph as JSON
  /api/payload      graph page payload (elements and node details)
  /api/nodes/{id}   one table with its upstream and downstream tables
  /healthz          liveness probe

With --watch the graph is rebuilt when SQL files change and open pages
reload themselves.`,
		Example: `  # Serve on the default port
  sqlgraph serve -i sql/ --default-catalog PROD

  # Custom port, rebuild on change, open a browser
  sqlgraph serve --port 3000 --watch --open`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringP("input", "i", "", "SQL file or directory to scan")
	cmd.Flags().String("glob", "", "File name pattern inside the input directory (default *.sql)")
	cmd.Flags().String("title", "", "Page title")
	cmd.Flags().Int("port", 0, "Port to serve on (default 8787)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Rebuild the graph when SQL files change")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the page in a browser")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	serveCfg := cfg.GetServeConfig()

	watch := serveCfg.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	title := cfg.Title
	if title == "" {
		title = report.DefaultTitle(cmdCtx.Engine.Input())
	}

	server := ui.NewServer(ui.Config{
		Engine: cmdCtx.Engine,
		Port:   serveCfg.Port,
		Watch:  watch,
		Title:  title,
		Logger: cmdCtx.Logger,
	})

	url := fmt.Sprintf("http://localhost:%d", serveCfg.Port)
	r := cmdCtx.Renderer
	r.Println("Serving " + cmdCtx.Engine.Input() + " on " + url)
	r.Println(r.Muted("Press Ctrl+C to stop"))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if opts.Open {
		go openBrowser(ctx, url)
	}

	return server.Serve(ctx)
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(ctx context.Context, url string) {
	var c *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		c = exec.CommandContext(ctx, "open", url)
	case "linux":
		c = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		c = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return
	}

	_ = c.Start()
}
