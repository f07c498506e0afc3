package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingdocs/pipeline/internal/core"
)

func bundleWith(apiDocs, readme string) core.DocumentBundle {
	var b core.DocumentBundle
	if apiDocs != "" {
		b.Set(core.APIDocsPath, []byte(apiDocs))
	}
	if readme != "" {
		b.Set(core.ReadmePath, []byte(readme))
	}
	return b
}

func TestAnalyze_NoPreviousVersionIsEmptyNotError(t *testing.T) {
	var previous core.DocumentBundle
	current := bundleWith("### `GET /users`\n\n", "## Repository\n\n")

	report := core.ImpactReport{}
	result := Analyze(report, current, previous)
	assert.Empty(t, result.Issues)
}

func TestAnalyze_StaleEndpointDetected(t *testing.T) {
	previous := bundleWith("### `GET /users`\n\n### `POST /users`\n\n", "")
	current := bundleWith("### `GET /users`\n\n", "")

	result := Analyze(core.ImpactReport{}, current, previous)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, core.DriftStaleEndpoint, result.Issues[0].Kind)
	assert.Equal(t, core.DriftHigh, result.Issues[0].Severity)
	assert.Contains(t, result.Issues[0].Description, "POST /users")
}

func TestAnalyze_SchemaFieldDropDetected(t *testing.T) {
	previous := bundleWith("## Schemas\n\n### User\n\n- `email`: string\n- `name`: string\n\n", "")
	current := bundleWith("## Schemas\n\n### User\n\n- `name`: string\n\n", "")

	result := Analyze(core.ImpactReport{}, current, previous)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, core.DriftSchemaDrift, result.Issues[0].Kind)
	assert.Equal(t, core.DriftMedium, result.Issues[0].Severity)
	assert.Contains(t, result.Issues[0].Description, "User.email")
}

func TestAnalyze_OutdatedSectionDetected(t *testing.T) {
	previous := bundleWith("", "## Repository\n\n## Deployment\n\n")
	current := bundleWith("", "## Repository\n\n")

	result := Analyze(core.ImpactReport{}, current, previous)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, core.DriftOutdatedSection, result.Issues[0].Kind)
	assert.Equal(t, core.DriftLow, result.Issues[0].Severity)
}

func TestAnalyze_MissingDocDetectedEvenWithoutPreviousVersion(t *testing.T) {
	var previous core.DocumentBundle
	current := bundleWith("_No HTTP endpoints detected in this change set._\n", "")

	report := core.ImpactReport{
		Changes: []core.ChangeRecord{
			{Path: "app.py", Features: core.Features{Endpoints: []core.Endpoint{{Verb: "GET", Route: "/hello"}}}},
		},
	}

	result := Analyze(report, current, previous)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, core.DriftMissingDoc, result.Issues[0].Kind)
	assert.Contains(t, result.Issues[0].Description, "GET /hello")
}

func TestAnalyze_SortedBySeverityThenDescription(t *testing.T) {
	previous := bundleWith(
		"### `GET /b`\n\n### `GET /a`\n\n",
		"## Zeta\n\n## Alpha\n\n",
	)
	current := bundleWith("", "")

	result := Analyze(core.ImpactReport{}, current, previous)
	require.True(t, len(result.Issues) >= 2)
	for i := 1; i < len(result.Issues); i++ {
		prevRank := severityRank(result.Issues[i-1].Severity)
		curRank := severityRank(result.Issues[i].Severity)
		assert.True(t, prevRank >= curRank, "issues must be sorted by severity descending")
	}
}
