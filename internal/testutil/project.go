package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleProject is a small SQL codebase touching every statement kind: catalog
// switches, temporaries, joins and CTEs across two directories.
var SampleProject = map[string]string{
	"staging/orders.sql": `-- Staging for orders
SET CATALOG dw;

CREATE TEMP TABLE tmp_orders AS
SELECT o.*, c.segment
FROM raw.orders o
JOIN raw.customers c ON o.customer_id = c.id;

CREATE TABLE stage.orders AS
SELECT * FROM tmp_orders t
LEFT JOIN raw.items i ON t.id = i.order_id;
`,
	"marts/revenue.sql": `/* Revenue mart
   SET CATALOG ignored; */
WITH monthly AS (SELECT * FROM dw.stage.orders)
SELECT 1;

CREATE VIEW mart.v_revenue AS
WITH recent AS (SELECT 1)
SELECT * FROM dw.stage.orders s
INNER JOIN dw.ref.calendar cal ON s.order_date = cal.day;

INSERT INTO mart.revenue
SELECT * FROM mart.v_revenue;
`,
	"README.md": "not sql",
}

// WriteFiles writes files (relative path to content) under dir.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

// SetupSQLProject writes SampleProject into a temporary directory and returns
// its path.
func SetupSQLProject(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	WriteFiles(t, dir, SampleProject)
	return dir
}
