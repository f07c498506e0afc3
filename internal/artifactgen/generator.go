// Package artifactgen renders the deterministic documentation artifacts
// (summary, README, API reference) from an ImpactReport and optional
// DriftReport. Rendering uses hand-built strings.Builder helper functions
// per section, following the reference implementation's markdown-building
// style for its check-run status output rather than a template engine.
package artifactgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/livingdocs/pipeline/internal/core"
)

// ToolVersion is stamped into ImpactReport.Meta; the rendered artifacts do
// not include it. It never changes within a build.
const ToolVersion = "living-docs/1"

// Generate renders summary.md, README.generated.md, and api-reference.md
// for report, optionally incorporating drift. Every artifact is a pure
// function of (report, drift): no wall-clock calls, no randomness, no
// environment variable reads.
func Generate(report core.ImpactReport, drift *core.DriftReport) core.DocumentBundle {
	var bundle core.DocumentBundle
	bundle.Set(core.SummaryPath, []byte(renderSummary(report, drift)))
	bundle.Set(core.ReadmePath, []byte(renderReadme(report)))
	bundle.Set(core.APIDocsPath, []byte(renderAPIReference(report)))
	return bundle
}

// GenerateDegraded renders a summary.md carrying an explicit "Generation
// Failed" heading and the error text, per §7's generation_failed handling:
// the run still produces a deliverable bundle and is marked
// done-with-warnings rather than failed.
func GenerateDegraded(report core.ImpactReport, genErr error) core.DocumentBundle {
	var sb strings.Builder
	writeSummaryHeader(&sb, report)
	sb.WriteString("## Generation Failed\n\n")
	sb.WriteString("Artifact generation encountered an error and produced a degraded summary:\n\n")
	fmt.Fprintf(&sb, "```\n%s\n```\n", genErr.Error())

	var bundle core.DocumentBundle
	bundle.Set(core.SummaryPath, []byte(sb.String()))
	return bundle
}

func renderSummary(report core.ImpactReport, drift *core.DriftReport) string {
	var sb strings.Builder
	writeSummaryHeader(&sb, report)
	writeTopChanges(&sb, report.Changes)
	if drift != nil {
		writeDriftIssues(&sb, drift.Issues)
	}
	return sb.String()
}

func writeSummaryHeader(sb *strings.Builder, report core.ImpactReport) {
	fmt.Fprintf(sb, "# Documentation Update: %s\n\n", shortSHA(report.Context.CommitSHA))
	sb.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(sb, "| Repository | %s |\n", report.Context.RepoName)
	fmt.Fprintf(sb, "| Branch | %s |\n", report.Context.Branch)
	fmt.Fprintf(sb, "| Commit | `%s` |\n", report.Context.CommitSHA)
	fmt.Fprintf(sb, "| Author | %s |\n", report.Context.Author)
	fmt.Fprintf(sb, "| Severity | %s |\n", severityBadge(report.AnalysisSummary.HighestSeverity))
	fmt.Fprintf(sb, "| Breaking change | %s |\n", yesNo(report.AnalysisSummary.BreakingChange))
	fmt.Fprintf(sb, "| Files changed | %s |\n\n", humanize.Comma(int64(report.AnalysisSummary.FileCount)))
}

func writeTopChanges(sb *strings.Builder, changes []core.ChangeRecord) {
	if len(changes) == 0 {
		return
	}
	sb.WriteString("## Changes\n\n")
	top := changes
	if len(top) > 20 {
		top = top[:20]
	}
	for _, c := range top {
		fmt.Fprintf(sb, "- `%s` (%s, %s)\n", c.Path, strings.ToLower(string(c.Kind)), c.Severity)
	}
	sb.WriteString("\n")
}

func writeDriftIssues(sb *strings.Builder, issues []core.DriftIssue) {
	if len(issues) == 0 {
		return
	}
	// Most-severe first (high, medium, low), then description ascending.
	// This reads "(severity, description) ascending" as severity-rank
	// order rather than a lexical sort on the severity strings — see the
	// Open Question decision in DESIGN.md for why (a lexical sort would
	// read "high, low, medium" and bury the most actionable issue mid-list).
	sorted := make([]core.DriftIssue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity != sorted[j].Severity {
			return driftSeverityRank(sorted[i].Severity) > driftSeverityRank(sorted[j].Severity)
		}
		return sorted[i].Description < sorted[j].Description
	})

	sb.WriteString("## Documentation Drift\n\n")
	for _, issue := range sorted {
		fmt.Fprintf(sb, "- **%s** (%s): %s — `%s`\n", issue.Kind, issue.Severity, issue.Description, issue.Path)
	}
	sb.WriteString("\n")
}

func renderReadme(report core.ImpactReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", report.Context.RepoName)
	sb.WriteString("_Generated documentation. This whole file is regenerated per commit._\n\n")

	sb.WriteString("## Repository\n\n")
	sb.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Branch | %s |\n", report.Context.Branch)
	fmt.Fprintf(&sb, "| Commit | `%s` |\n\n", report.Context.CommitSHA)

	writeLanguageCounts(&sb, report.Changes)
	writeImpactSummary(&sb, report.AnalysisSummary)

	sb.WriteString("## See Also\n\n")
	sb.WriteString("- [API reference](api/api-reference.md)\n")
	sb.WriteString("- [Change summary](../summaries/summary.md)\n")
	return sb.String()
}

func writeLanguageCounts(sb *strings.Builder, changes []core.ChangeRecord) {
	counts := make(map[string]int)
	for _, c := range changes {
		counts[c.Language]++
	}
	if len(counts) == 0 {
		return
	}
	languages := make([]string, 0, len(counts))
	for lang := range counts {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	sb.WriteString("## Files by Language\n\n")
	sb.WriteString("| Language | Files |\n|---|---|\n")
	for _, lang := range languages {
		fmt.Fprintf(sb, "| %s | %d |\n", lang, counts[lang])
	}
	sb.WriteString("\n")
}

func writeImpactSummary(sb *strings.Builder, summary core.AnalysisSummary) {
	sb.WriteString("## Impact Summary\n\n")
	fmt.Fprintf(sb, "This update touches %s, with highest severity **%s**.\n\n",
		humanize.Comma(int64(summary.FileCount))+" file(s)", summary.HighestSeverity)
}

func renderAPIReference(report core.ImpactReport) string {
	var sb strings.Builder
	sb.WriteString("# API Reference\n\n")

	type row struct {
		file string
		ep   core.Endpoint
	}
	var rows []row
	for _, c := range report.Changes {
		for _, ep := range c.Features.Endpoints {
			rows = append(rows, row{file: c.Path, ep: ep})
		}
	}

	if len(rows) == 0 {
		sb.WriteString("_No HTTP endpoints detected in this change set._\n")
		return sb.String()
	}

	byFile := make(map[string][]core.Endpoint)
	var files []string
	for _, r := range rows {
		if _, ok := byFile[r.file]; !ok {
			files = append(files, r.file)
		}
		byFile[r.file] = append(byFile[r.file], r.ep)
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Fprintf(&sb, "## %s\n\n", file)
		endpoints := byFile[file]
		sort.SliceStable(endpoints, func(i, j int) bool {
			if endpoints[i].Verb != endpoints[j].Verb {
				return endpoints[i].Verb < endpoints[j].Verb
			}
			return endpoints[i].Route < endpoints[j].Route
		})
		for _, ep := range endpoints {
			writeEndpointEntry(&sb, ep)
		}
	}

	writeSchemaSection(&sb, report.Changes)
	return sb.String()
}

func writeSchemaSection(sb *strings.Builder, changes []core.ChangeRecord) {
	var schemas []core.Schema
	for _, c := range changes {
		schemas = append(schemas, c.Features.Schemas...)
	}
	if len(schemas) == 0 {
		return
	}
	sort.SliceStable(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })

	sb.WriteString("## Schemas\n\n")
	for _, s := range schemas {
		fmt.Fprintf(sb, "### %s\n\n", s.Name)
		for _, f := range s.Fields {
			fmt.Fprintf(sb, "- `%s`: %s\n", f.Name, f.Type)
		}
		sb.WriteString("\n")
	}
}

func writeEndpointEntry(sb *strings.Builder, ep core.Endpoint) {
	fmt.Fprintf(sb, "### `%s %s`\n\n", ep.Verb, ep.Route)
	fmt.Fprintf(sb, "%s\n\n", inferSummary(ep))
	sb.WriteString(authHint(ep))
	sb.WriteString(parameterHint(ep))
	fmt.Fprintf(sb, "```bash\ncurl -X %s \"https://api.example.com%s\"\n```\n\n", ep.Verb, exampleRoute(ep.Route))
}

func inferSummary(ep core.Endpoint) string {
	verb := strings.ToLower(ep.Verb)
	if verb != "" {
		verb = strings.ToUpper(verb[:1]) + verb[1:]
	}
	return fmt.Sprintf("%s %s", verb, ep.Route)
}

func authHint(ep core.Endpoint) string {
	if ep.Verb == "GET" {
		return "Authentication: optional, bearer token if the resource is private.\n\n"
	}
	return "Authentication: required, bearer token.\n\n"
}

func parameterHint(ep core.Endpoint) string {
	if !strings.Contains(ep.Route, ":") && !strings.Contains(ep.Route, "{") {
		return ""
	}
	return "Path parameters are inferred from the route template.\n\n"
}

func exampleRoute(route string) string {
	replacer := strings.NewReplacer(":id", "1", "{id}", "1")
	return replacer.Replace(route)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func severityBadge(s core.Severity) string {
	switch s {
	case core.SeverityMajor:
		return "MAJOR"
	case core.SeverityMinor:
		return "MINOR"
	default:
		return "PATCH"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func driftSeverityRank(s core.DriftSeverity) int {
	switch s {
	case core.DriftHigh:
		return 2
	case core.DriftMedium:
		return 1
	default:
		return 0
	}
}
