// Package health runs checks over an aggregated lineage graph and reports
// structural problems such as cycles, unused temporaries and tables created
// in more than one place.
package health

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/sqlgraph/internal/dag"
	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// Severity indicates the importance of a diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Rule groups.
const (
	GroupStructure = "structure"
	GroupLineage   = "lineage"
)

// Context is the input of every check.
type Context struct {
	Lineage   *lineage.Graph
	Tables    *dag.Graph
	SelfLoops int
}

// NewContext builds the table graph of lg once for all checks.
func NewContext(lg *lineage.Graph) *Context {
	tables, selfLoops := dag.FromLineage(lg)
	return &Context{Lineage: lg, Tables: tables, SelfLoops: selfLoops}
}

// Check is the function signature for rule checks.
type Check func(ctx *Context) []Diagnostic

// Diagnostic is one finding of a rule.
type Diagnostic struct {
	RuleID   string                `json:"rule_id"`
	Severity Severity              `json:"-"`
	Message  string                `json:"message"`
	Table    lineage.QualifiedName `json:"table,omitempty"`
	File     string                `json:"file,omitempty"`
}

// RuleDef is a registered check.
type RuleDef struct {
	ID          string   // e.g. "LG01"
	Name        string   // e.g. "lineage-cycle"
	Group       string   // GroupStructure or GroupLineage
	Description string   // one line shown by the doctor report
	Fix         string   // recommendation shown when the rule fires
	Severity    Severity // default severity
	Check       Check
}

var registry = struct {
	mu    sync.RWMutex
	rules map[string]RuleDef
}{rules: make(map[string]RuleDef)}

// Register adds a rule. Registering an ID twice replaces the earlier rule.
func Register(rule RuleDef) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.rules[rule.ID] = rule
}

// All returns every registered rule sorted by group, then ID.
func All() []RuleDef {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	rules := make([]RuleDef, 0, len(registry.rules))
	for _, r := range registry.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Group != rules[j].Group {
			return rules[i].Group < rules[j].Group
		}
		return rules[i].ID < rules[j].ID
	})
	return rules
}

// Get returns a rule by ID.
func Get(id string) (RuleDef, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	r, ok := registry.rules[id]
	return r, ok
}

// Analyzer runs the registered rules.
type Analyzer struct {
	disabled map[string]bool
}

// NewAnalyzer creates an analyzer that skips the given rule IDs.
func NewAnalyzer(disabled ...string) *Analyzer {
	a := &Analyzer{disabled: make(map[string]bool, len(disabled))}
	for _, id := range disabled {
		a.disabled[id] = true
	}
	return a
}

// Enabled reports whether the rule runs.
func (a *Analyzer) Enabled(id string) bool {
	return !a.disabled[id]
}

// Analyze runs every enabled rule against ctx. Diagnostics take the severity
// of the rule that produced them.
func (a *Analyzer) Analyze(ctx *Context) []Diagnostic {
	if ctx == nil || ctx.Lineage == nil {
		return nil
	}

	var diags []Diagnostic
	for _, rule := range All() {
		if !a.Enabled(rule.ID) {
			continue
		}
		for _, d := range rule.Check(ctx) {
			d.RuleID = rule.ID
			d.Severity = rule.Severity
			diags = append(diags, d)
		}
	}
	return diags
}
