package artifactgen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingdocs/pipeline/internal/core"
)

func sampleReport() core.ImpactReport {
	return core.ImpactReport{
		Context: core.ImpactContext{
			RepoName:  "acme/widgets",
			Branch:    "main",
			CommitSHA: "abcdef1234567890",
			Author:    "jdoe",
		},
		AnalysisSummary: core.AnalysisSummary{
			FileCount:       2,
			HighestSeverity: core.SeverityMinor,
			BreakingChange:  false,
		},
		Changes: []core.ChangeRecord{
			{
				Path: "app.py", Kind: core.ChangeAdded, Language: "python", Severity: core.SeverityMinor,
				Features: core.Features{
					Functions: []core.Symbol{{Name: "hello", Line: 5}},
					Endpoints: []core.Endpoint{{Verb: "GET", Route: "/hello", Line: 4}},
				},
			},
			{
				Path: "routes.js", Kind: core.ChangeModified, Language: "javascript", Severity: core.SeverityPatch,
			},
		},
	}
}

func TestGenerate_ProducesAllThreeArtifacts(t *testing.T) {
	bundle := Generate(sampleReport(), nil)

	summary := bundle.Get(core.SummaryPath)
	readme := bundle.Get(core.ReadmePath)
	apiDocs := bundle.Get(core.APIDocsPath)

	require.NotEmpty(t, summary)
	require.NotEmpty(t, readme)
	require.NotEmpty(t, apiDocs)

	assert.Contains(t, string(summary), "abcdef1")
	assert.Contains(t, string(summary), "acme/widgets")
	assert.Contains(t, string(readme), "## Files by Language")
	assert.Contains(t, string(apiDocs), "GET /hello")
}

func TestGenerate_IsDeterministic(t *testing.T) {
	report := sampleReport()
	first := Generate(report, nil)
	second := Generate(report, nil)

	assert.Equal(t, first.Get(core.SummaryPath), second.Get(core.SummaryPath))
	assert.Equal(t, first.Get(core.ReadmePath), second.Get(core.ReadmePath))
	assert.Equal(t, first.Get(core.APIDocsPath), second.Get(core.APIDocsPath))
}

func TestGenerate_NoEndpointsProducesPlaceholder(t *testing.T) {
	report := sampleReport()
	report.Changes = []core.ChangeRecord{{Path: "a.go", Kind: core.ChangeModified, Language: "go"}}

	bundle := Generate(report, nil)
	assert.Contains(t, string(bundle.Get(core.APIDocsPath)), "No HTTP endpoints detected")
}

func TestGenerate_DriftIssuesSortedBySeverityThenDescription(t *testing.T) {
	drift := &core.DriftReport{
		Issues: []core.DriftIssue{
			{Kind: core.DriftMissingDoc, Path: "b.py", Severity: core.DriftLow, Description: "zzz"},
			{Kind: core.DriftStaleEndpoint, Path: "a.py", Severity: core.DriftHigh, Description: "bbb"},
			{Kind: core.DriftSchemaDrift, Path: "c.py", Severity: core.DriftHigh, Description: "aaa"},
		},
	}

	bundle := Generate(sampleReport(), drift)
	summary := string(bundle.Get(core.SummaryPath))

	highAAA := indexOf(t, summary, "aaa")
	highBBB := indexOf(t, summary, "bbb")
	low := indexOf(t, summary, "zzz")

	assert.Less(t, highAAA, highBBB)
	assert.Less(t, highBBB, low)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	t.Fatalf("%q not found in %q", needle, haystack)
	return -1
}

func TestGenerateDegraded_IncludesErrorText(t *testing.T) {
	bundle := GenerateDegraded(sampleReport(), errors.New("parser crashed on src/foo.py"))

	summary := string(bundle.Get(core.SummaryPath))
	assert.Contains(t, summary, "Generation Failed")
	assert.Contains(t, summary, "parser crashed on src/foo.py")
	assert.Empty(t, bundle.Get(core.ReadmePath))
}
