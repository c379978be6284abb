// Package report renders an aggregated lineage graph: an interactive HTML
// page, six CSV tables and JSON/YAML exports. Renderers only format facts
// already present in the graph.
package report
