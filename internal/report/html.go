package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

//go:embed assets/graph.css
var graphCSS string

//go:embed assets/graph.js
var graphJS string

// Script URLs of the graph libraries loaded by the page.
var vendorScripts = []string{
	"https://unpkg.com/cytoscape@3.26.0/dist/cytoscape.min.js",
	"https://unpkg.com/dagre@0.8.5/dist/dagre.min.js",
	"https://unpkg.com/cytoscape-dagre@2.5.0/cytoscape-dagre.js",
}

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.7/bundles/datastar.js"

// HTMLOption configures RenderHTML.
type HTMLOption func(*htmlOptions)

type htmlOptions struct {
	updatesURL string
}

// WithLiveReload makes the page subscribe to an SSE endpoint that reloads it
// whenever the graph is rebuilt.
func WithLiveReload(updatesURL string) HTMLOption {
	return func(o *htmlOptions) {
		o.updatesURL = updatesURL
	}
}

// DefaultTitle returns the page title used when none is configured.
func DefaultTitle(htmlPath string) string {
	return "SQL Graph - " + filepath.Base(BasePath(htmlPath))
}

// RenderHTML writes the interactive lineage page for lg.
func RenderHTML(w io.Writer, lg *lineage.Graph, title string, opts ...HTMLOption) error {
	var o htmlOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := BuildPayload(lg, title)
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode graph payload: %w", err)
	}
	return page(title, p.Catalogs, len(lg.Nodes), lg.EdgeCount(), payload, o).Render(w)
}

// WriteHTML renders the page into path, creating parent directories.
func WriteHTML(path string, lg *lineage.Graph, title string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return RenderHTML(f, lg, title)
}

func page(title string, catalogs []string, nodeCount, edgeCount int, payload []byte, o htmlOptions) g.Node {
	return h.Doctype(
		h.HTML(
			h.Lang("en"),
			h.Head(
				h.Meta(h.Charset("utf-8")),
				h.Meta(h.Name("viewport"), h.Content("width=device-width, initial-scale=1")),
				h.TitleEl(g.Text(title)),
				h.StyleEl(g.Raw(graphCSS)),
				g.If(o.updatesURL != "", h.Script(h.Type("module"), h.Src(datastarScript))),
			),
			h.Body(
				h.Header(toolbar(title, catalogs, nodeCount, edgeCount)),
				h.Main(
					h.Div(h.ID("cy")),
					h.Aside(
						h.ID("sidebar"),
						h.Div(h.ID("nodeTitle"), h.Class("section")),
						h.Div(h.ID("creationSection"), h.Class("section")),
						h.Div(h.ID("usageSection"), h.Class("section")),
					),
				),
				h.Script(h.ID("graph-data"), h.Type("application/json"), g.Raw(string(payload))),
				g.Map(vendorScripts, func(src string) g.Node {
					return h.Script(h.Src(src))
				}),
				h.Script(g.Raw(graphJS)),
				g.If(o.updatesURL != "", h.Div(h.ID("live-reload"), g.Attr("data-init", "@get('"+o.updatesURL+"')"))),
			),
		),
	)
}

func toolbar(title string, catalogs []string, nodeCount, edgeCount int) g.Node {
	return h.Div(
		h.Class("toolbar"),
		h.H1(g.Text(title)),
		h.Label(g.Text("Search: "), h.Input(h.ID("searchInput"), h.Type("search"), h.Placeholder("Table name"))),
		button("searchGo", "Go"),
		button("fitBtn", "Fit"),
		button("layoutBtn", "Re-layout"),
		checkbox("toggleLabels", "Edge labels"),
		checkbox("toggleTemps", "Show TMP/TEMP"),
		h.Label(
			g.Text("Catalog: "),
			h.Select(
				h.ID("catalogFilter"),
				h.Option(h.Value(""), g.Text("All")),
				g.Map(catalogs, func(c string) g.Node {
					return h.Option(h.Value(c), g.Text(c))
				}),
			),
		),
		button("savePos", "Save positions"),
		button("loadPos", "Load positions"),
		button("clearPos", "Clear positions"),
		h.Span(h.Class("stats"), g.Textf("%d tables · %d edges", nodeCount, edgeCount)),
	)
}

func button(id, label string) g.Node {
	return h.Button(h.ID(id), h.Type("button"), g.Text(label))
}

func checkbox(id, label string) g.Node {
	return h.Label(h.Input(h.ID(id), h.Type("checkbox"), h.Checked()), g.Text(" "+label))
}
