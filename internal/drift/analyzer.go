// Package drift compares a freshly generated artifact bundle against the
// previously stored bundle for the same project and surfaces stale
// endpoints, schema field removals, vanished README sections, and new
// endpoints nobody documented. It operates on rendered markdown rather
// than structured reports because the previously stored version is only
// available as artifact bytes pulled back from the store.
package drift

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/livingdocs/pipeline/internal/core"
)

var (
	reEndpointHeading = regexp.MustCompile("^### `([A-Z]+) (.+)`$")
	reSchemaHeading   = regexp.MustCompile(`^### (\S.*)$`)
	reSchemaField     = regexp.MustCompile("^- `(\\w+)`: ")
	reSectionHeading  = regexp.MustCompile(`^## (.+)$`)
)

// Analyze compares current (the freshly generated artifact bundle for
// report) against previous (the previously stored bundle on the same
// branch). A nil previous bundle (no prior version exists) yields an
// empty, non-error report, since staleness and section-loss only make
// sense relative to a predecessor.
//
// MISSING_DOC is the exception: it cross-checks report's own source-level
// endpoints against what current actually rendered, independent of
// whether a previous version exists, since it catches endpoints the
// generator silently dropped rather than ones removed since last commit.
func Analyze(report core.ImpactReport, current, previous core.DocumentBundle) core.DriftReport {
	currentEndpoints := parseEndpoints(current.Get(core.APIDocsPath))

	var issues []core.DriftIssue
	issues = append(issues, missingDocs(sourceEndpoints(report), currentEndpoints)...)

	if previous.Files != nil {
		previousEndpoints := parseEndpoints(previous.Get(core.APIDocsPath))
		currentSchemas := parseSchemas(current.Get(core.APIDocsPath))
		previousSchemas := parseSchemas(previous.Get(core.APIDocsPath))
		currentSections := parseSections(current.Get(core.ReadmePath))
		previousSections := parseSections(previous.Get(core.ReadmePath))

		issues = append(issues, staleEndpoints(previousEndpoints, currentEndpoints)...)
		issues = append(issues, schemaDrift(previousSchemas, currentSchemas)...)
		issues = append(issues, outdatedSections(previousSections, currentSections)...)
	}

	// Most-severe first (high, medium, low), then description ascending —
	// the same severity-rank reading of "(severity, description)
	// ascending" as artifactgen.writeDriftIssues; see the Open Question
	// decision in DESIGN.md.
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity != issues[j].Severity {
			return severityRank(issues[i].Severity) > severityRank(issues[j].Severity)
		}
		return issues[i].Description < issues[j].Description
	})

	return core.DriftReport{Issues: issues}
}

func sourceEndpoints(report core.ImpactReport) map[endpointKey]bool {
	result := make(map[endpointKey]bool)
	for _, c := range report.Changes {
		for _, ep := range c.Features.Endpoints {
			result[endpointKey{verb: ep.Verb, route: ep.Route}] = true
		}
	}
	return result
}

type endpointKey struct{ verb, route string }

func parseEndpoints(content []byte) map[endpointKey]bool {
	result := make(map[endpointKey]bool)
	for _, line := range splitLines(content) {
		if m := reEndpointHeading.FindStringSubmatch(line); m != nil {
			result[endpointKey{verb: m[1], route: m[2]}] = true
		}
	}
	return result
}

type schemaFieldKey struct{ schema, field string }

func parseSchemas(content []byte) map[schemaFieldKey]bool {
	result := make(map[schemaFieldKey]bool)
	inSchemas := false
	currentSchema := ""
	for _, line := range splitLines(content) {
		if strings.TrimSpace(line) == "## Schemas" {
			inSchemas = true
			continue
		}
		if !inSchemas {
			continue
		}
		if reSectionHeading.MatchString(line) {
			inSchemas = false
			continue
		}
		if m := reSchemaHeading.FindStringSubmatch(line); m != nil {
			currentSchema = m[1]
			continue
		}
		if m := reSchemaField.FindStringSubmatch(line); m != nil && currentSchema != "" {
			result[schemaFieldKey{schema: currentSchema, field: m[1]}] = true
		}
	}
	return result
}

func parseSections(content []byte) map[string]bool {
	result := make(map[string]bool)
	for _, line := range splitLines(content) {
		if m := reSectionHeading.FindStringSubmatch(line); m != nil {
			result[strings.TrimSpace(m[1])] = true
		}
	}
	return result
}

func staleEndpoints(previous, current map[endpointKey]bool) []core.DriftIssue {
	var issues []core.DriftIssue
	for key := range previous {
		if !current[key] {
			issues = append(issues, core.DriftIssue{
				Kind:        core.DriftStaleEndpoint,
				Path:        core.APIDocsPath,
				Severity:    core.DriftHigh,
				Description: fmt.Sprintf("endpoint %s %s no longer documented", key.verb, key.route),
			})
		}
	}
	return issues
}

func schemaDrift(previous, current map[schemaFieldKey]bool) []core.DriftIssue {
	var issues []core.DriftIssue
	for key := range previous {
		if !current[key] {
			issues = append(issues, core.DriftIssue{
				Kind:        core.DriftSchemaDrift,
				Path:        core.APIDocsPath,
				Severity:    core.DriftMedium,
				Description: fmt.Sprintf("field %s.%s removed from documented schema", key.schema, key.field),
			})
		}
	}
	return issues
}

func outdatedSections(previous, current map[string]bool) []core.DriftIssue {
	var issues []core.DriftIssue
	for section := range previous {
		if !current[section] {
			issues = append(issues, core.DriftIssue{
				Kind:        core.DriftOutdatedSection,
				Path:        core.ReadmePath,
				Severity:    core.DriftLow,
				Description: fmt.Sprintf("section %q removed from README", section),
			})
		}
	}
	return issues
}

func missingDocs(source, rendered map[endpointKey]bool) []core.DriftIssue {
	var issues []core.DriftIssue
	for key := range source {
		if !rendered[key] {
			issues = append(issues, core.DriftIssue{
				Kind:        core.DriftMissingDoc,
				Path:        core.APIDocsPath,
				Severity:    core.DriftLow,
				Description: fmt.Sprintf("endpoint %s %s detected in source but not rendered in generated docs", key.verb, key.route),
			})
		}
	}
	return issues
}

func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	return strings.Split(string(content), "\n")
}

func severityRank(s core.DriftSeverity) int {
	switch s {
	case core.DriftHigh:
		return 2
	case core.DriftMedium:
		return 1
	default:
		return 0
	}
}
