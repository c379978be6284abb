package health

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// unresolvedTable is the table segment Qualify uses for names it could not read.
const unresolvedTable = "?"

func init() {
	Register(RuleDef{
		ID:          "LG01",
		Name:        "lineage-cycle",
		Group:       GroupStructure,
		Description: "Tables that are built from each other",
		Fix:         "Break the cycle so every table has a build order; dag and lineage depth are undefined until then",
		Severity:    SeverityError,
		Check:       checkCycle,
	})
	Register(RuleDef{
		ID:          "LG02",
		Name:        "self-reference",
		Group:       GroupStructure,
		Description: "Statements that read the table they write",
		Fix:         "Stage self-referencing inserts through a temporary table to keep the graph acyclic",
		Severity:    SeverityWarning,
		Check:       checkSelfReference,
	})
	Register(RuleDef{
		ID:          "LG03",
		Name:        "unused-temporary",
		Group:       GroupLineage,
		Description: "Temporary tables no statement reads",
		Fix:         "Drop temporary tables nothing reads, or check the script for a misspelled name",
		Severity:    SeverityWarning,
		Check:       checkUnusedTemporary,
	})
	Register(RuleDef{
		ID:          "LG04",
		Name:        "repeated-create",
		Group:       GroupLineage,
		Description: "Permanent tables or views created by more than one statement",
		Fix:         "Keep one CREATE per table so its definition has a single owner",
		Severity:    SeverityWarning,
		Check:       checkRepeatedCreate,
	})
	Register(RuleDef{
		ID:          "LG05",
		Name:        "unresolved-name",
		Group:       GroupLineage,
		Description: "Table references without a readable table name",
		Fix:         "Rewrite dynamic or bracketed names the scanner cannot read",
		Severity:    SeverityWarning,
		Check:       checkUnresolvedName,
	})
	Register(RuleDef{
		ID:          "LG06",
		Name:        "insert-only-target",
		Group:       GroupLineage,
		Description: "Tables only inserted into; their CREATE lives outside the input",
		Fix:         "Add the DDL of insert-only tables to the scanned files to complete their lineage",
		Severity:    SeverityInfo,
		Check:       checkInsertOnly,
	})
}

func checkCycle(ctx *Context) []Diagnostic {
	cycle := ctx.Tables.FindCycle()
	if cycle == nil {
		return nil
	}
	parts := make([]string, len(cycle))
	for i, id := range cycle {
		parts[i] = id.String()
	}
	return []Diagnostic{{
		Message: "tables build each other: " + strings.Join(parts, " -> "),
		Table:   cycle[0],
	}}
}

func checkSelfReference(ctx *Context) []Diagnostic {
	var diags []Diagnostic
	for _, stmt := range ctx.Lineage.Statements {
		for _, src := range stmt.Sources() {
			if src == stmt.Target {
				diags = append(diags, Diagnostic{
					Message: fmt.Sprintf("%s reads from itself (statement %d)", stmt.Target, stmt.SequenceID),
					Table:   stmt.Target,
					File:    stmt.File,
				})
				break
			}
		}
	}
	return diags
}

func checkUnusedTemporary(ctx *Context) []Diagnostic {
	var diags []Diagnostic
	for _, n := range ctx.Lineage.Nodes {
		if !n.IsTmp || readByOthers(n) {
			continue
		}
		d := Diagnostic{
			Message: fmt.Sprintf("temporary table %s is never read", n.ID),
			Table:   n.ID,
		}
		if len(n.Creations) > 0 {
			d.File = n.Creations[0].File
		}
		diags = append(diags, d)
	}
	return diags
}

func readByOthers(n lineage.Node) bool {
	for _, c := range n.Consumers {
		if c.Target != n.ID {
			return true
		}
	}
	return false
}

func checkRepeatedCreate(ctx *Context) []Diagnostic {
	var diags []Diagnostic
	for _, n := range ctx.Lineage.Nodes {
		var files []string
		for _, c := range n.Creations {
			if c.Kind == lineage.KindCreateTable || c.Kind == lineage.KindCreateView {
				files = append(files, c.File)
			}
		}
		if len(files) < 2 {
			continue
		}
		diags = append(diags, Diagnostic{
			Message: fmt.Sprintf("%s is created %d times (%s)", n.ID, len(files), strings.Join(uniqueSorted(files), ", ")),
			Table:   n.ID,
			File:    files[0],
		})
	}
	return diags
}

func checkUnresolvedName(ctx *Context) []Diagnostic {
	var diags []Diagnostic
	for _, n := range ctx.Lineage.Nodes {
		if n.ID.Table() != unresolvedTable {
			continue
		}
		diags = append(diags, Diagnostic{
			Message: fmt.Sprintf("%s has no readable table name", n.ID),
			Table:   n.ID,
		})
	}
	return diags
}

func checkInsertOnly(ctx *Context) []Diagnostic {
	var diags []Diagnostic
	for _, n := range ctx.Lineage.Nodes {
		if len(n.Creations) == 0 {
			continue
		}
		insertOnly := true
		for _, c := range n.Creations {
			if c.Kind != lineage.KindInsert {
				insertOnly = false
				break
			}
		}
		if insertOnly {
			diags = append(diags, Diagnostic{
				Message: fmt.Sprintf("%s is only inserted into", n.ID),
				Table:   n.ID,
				File:    n.Creations[0].File,
			})
		}
	}
	return diags
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
