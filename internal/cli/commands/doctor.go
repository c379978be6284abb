package commands

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
	"github.com/leapstack-labs/sqlgraph/internal/health"
	"github.com/spf13/cobra"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Disable []string
	Strict  bool
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the extracted lineage for structural problems",
		Long: `Extract lineage and run health checks over it.

The report includes:
- Summary (tables, temporaries, statements, build depth)
- Health checks grouped by category (Structure, Lineage)
- Health score (0-100)
- Recommendations

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health checks
  sqlgraph doctor -i sql/ --default-catalog PROD

  # Skip a check and fail on any error finding
  sqlgraph doctor --disable LG06 --strict

  # Output as JSON
  sqlgraph doctor --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringP("input", "i", "", "SQL file or directory to scan")
	cmd.Flags().String("glob", "", "File name pattern inside the input directory (default *.sql)")
	cmd.Flags().StringSliceVar(&opts.Disable, "disable", nil, "Rule IDs to skip (e.g. LG04,LG06)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Exit with an error when an error-level check fails")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         LineageSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// LineageSummary contains graph-level statistics.
type LineageSummary struct {
	Files       int `json:"files"`
	Tables      int `json:"tables"`
	Temporaries int `json:"temporaries"`
	Statements  int `json:"statements"`
	Depth       int `json:"depth"` // build levels, 0 when the graph has a cycle
	RootCount   int `json:"root_count"`
	LeafCount   int `json:"leaf_count"`
	EdgeCount   int `json:"edge_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "info", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	for _, id := range opts.Disable {
		if _, ok := health.Get(id); !ok {
			return fmt.Errorf("unknown rule %q", id)
		}
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cmdCtx.Engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	hctx := health.NewContext(res.Graph)
	analyzer := health.NewAnalyzer(opts.Disable...)
	diags := analyzer.Analyze(hctx)

	out := buildDoctorOutput(hctx, analyzer, diags, len(res.Files))

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		err = r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	if err != nil {
		return err
	}

	if opts.Strict {
		for _, c := range out.HealthChecks {
			if c.Status == "error" {
				return fmt.Errorf("health check %s (%s) failed", c.RuleID, c.Name)
			}
		}
	}
	return nil
}

func buildDoctorOutput(hctx *health.Context, analyzer *health.Analyzer, diags []health.Diagnostic, files int) *DoctorOutput {
	summary := buildLineageSummary(hctx, files)

	byRule := make(map[string][]health.Diagnostic)
	for _, d := range diags {
		byRule[d.RuleID] = append(byRule[d.RuleID], d)
	}

	var checks []HealthCheck
	var recommendations []string
	issues := 0
	for _, rule := range health.All() {
		if !analyzer.Enabled(rule.ID) {
			continue
		}
		ruleDiags := byRule[rule.ID]

		status := "pass"
		if len(ruleDiags) > 0 {
			status = statusOf(rule.Severity)
			if rule.Severity != health.SeverityInfo {
				issues += len(ruleDiags)
				recommendations = append(recommendations, rule.Fix)
			}
		}

		details := make([]string, 0, len(ruleDiags))
		for _, d := range ruleDiags {
			details = append(details, d.Message)
		}

		checks = append(checks, HealthCheck{
			RuleID:     rule.ID,
			Name:       rule.Name,
			Group:      rule.Group,
			Status:     status,
			IssueCount: len(ruleDiags),
			Details:    details,
		})
	}

	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, summary.Tables),
		Recommendations: recommendations,
		IssueCount:      issues,
	}
}

func statusOf(s health.Severity) string {
	switch s {
	case health.SeverityError:
		return "error"
	case health.SeverityWarning:
		return "warn"
	default:
		return "info"
	}
}

func buildLineageSummary(hctx *health.Context, files int) LineageSummary {
	lg := hctx.Lineage
	summary := LineageSummary{
		Files:       files,
		Tables:      len(lg.Nodes),
		Temporaries: len(lg.Temporaries),
		Statements:  len(lg.Statements),
		EdgeCount:   hctx.Tables.EdgeCount(),
		RootCount:   len(hctx.Tables.GetRoots()),
		LeafCount:   len(hctx.Tables.GetLeaves()),
	}
	if levels, err := hctx.Tables.GetExecutionLevels(); err == nil {
		summary.Depth = len(levels)
	}
	return summary
}

// calculateHealthScore computes a health score from 0-100.
// Each warning costs a fixed penalty and each error twice that; the penalty
// shrinks as the graph grows. Info findings are free.
func calculateHealthScore(checks []HealthCheck, tableCount int) int {
	basePenalty := 5.0
	switch {
	case tableCount > 100:
		basePenalty = 1.0
	case tableCount > 50:
		basePenalty = 2.0
	case tableCount > 10:
		basePenalty = 3.0
	}

	score := 100.0
	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	return int(score)
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("Lineage Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Summary"))
	r.Printf("   Files: %d | Tables: %d | Temporaries: %d | Statements: %d\n",
		out.Summary.Files, out.Summary.Tables, out.Summary.Temporaries, out.Summary.Statements)
	r.Printf("   Depth: %d levels | Roots: %d | Leaves: %d\n", out.Summary.Depth, out.Summary.RootCount, out.Summary.LeafCount)
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Key.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case "info":
			icon = styles.Muted.Render("i")
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.Error.Render("✗")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println(output.FormatHeader(1, "Lineage Health Report"))
	r.Println("")

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println("")
	r.Println(output.FormatKeyValue("Files", fmt.Sprint(out.Summary.Files)))
	r.Println(output.FormatKeyValue("Tables", fmt.Sprint(out.Summary.Tables)))
	r.Println(output.FormatKeyValue("Temporaries", fmt.Sprint(out.Summary.Temporaries)))
	r.Println(output.FormatKeyValue("Statements", fmt.Sprint(out.Summary.Statements)))
	r.Println(output.FormatKeyValue("Depth", fmt.Sprintf("%d levels", out.Summary.Depth)))
	r.Println(output.FormatKeyValue("Root Tables", fmt.Sprint(out.Summary.RootCount)))
	r.Println(output.FormatKeyValue("Leaf Tables", fmt.Sprint(out.Summary.LeafCount)))
	r.Println("")

	r.Println(output.FormatHeader(2, "Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			if currentGroup != "" {
				r.Println("")
			}
			currentGroup = check.Group
			r.Println(output.FormatHeader(3, titleCaser.String(currentGroup)))
			r.Println("")
		}

		line := fmt.Sprintf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			line += fmt.Sprintf(" (%d)", check.IssueCount)
		}
		r.Println(line)

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println(output.FormatHeader(2, "Health Score"))
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(output.FormatHeader(2, "Recommendations"))
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}
