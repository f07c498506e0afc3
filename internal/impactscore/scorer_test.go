package impactscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingdocs/pipeline/internal/core"
)

func TestScore_S1_InitialCommitEndpointAdded(t *testing.T) {
	input := NewChangeInput("src/app.py", core.ChangeAdded, "python", false, false,
		core.Features{Endpoints: []core.Endpoint{{Verb: "GET", Route: "/hello", Line: 5}}},
		core.Features{})

	records, repoSev, breaking := Score([]ChangeInput{input})
	require.Len(t, records, 1)
	assert.Equal(t, core.SeverityMinor, records[0].Severity)
	assert.Equal(t, core.SeverityMinor, repoSev)
	assert.False(t, breaking)
}

func TestScore_S2_EndpointRemovalIsMajorAndBreaking(t *testing.T) {
	prior := core.Features{Endpoints: []core.Endpoint{{Verb: "GET", Route: "/users", Line: 3}}}
	current := core.Features{}

	input := NewChangeInput("routes.js", core.ChangeModified, "javascript", false, false, current, prior)
	records, repoSev, breaking := Score([]ChangeInput{input})

	require.Len(t, records, 1)
	assert.Equal(t, core.SeverityMajor, records[0].Severity)
	assert.Equal(t, core.SeverityMajor, repoSev)
	assert.True(t, breaking)
}

func TestScore_DeletedFileWithEndpointsIsMajor(t *testing.T) {
	prior := core.Features{Endpoints: []core.Endpoint{{Verb: "GET", Route: "/x", Line: 1}}}
	input := NewChangeInput("routes.js", core.ChangeDeleted, "javascript", false, false, core.Features{}, prior)

	records, _, breaking := Score([]ChangeInput{input})
	assert.Equal(t, core.SeverityMajor, records[0].Severity)
	assert.True(t, breaking)
}

func TestScore_BodyOnlyChangeIsPatch(t *testing.T) {
	fn := core.Symbol{Name: "handler", Line: 1}
	input := NewChangeInput("a.go", core.ChangeModified, "go", false, false,
		core.Features{Functions: []core.Symbol{fn}}, core.Features{Functions: []core.Symbol{fn}})

	records, repoSev, breaking := Score([]ChangeInput{input})
	assert.Equal(t, core.SeverityPatch, records[0].Severity)
	assert.Equal(t, core.SeverityPatch, repoSev)
	assert.False(t, breaking)
}

func TestScore_BinaryOrSyntaxErrorIsPatch(t *testing.T) {
	binInput := NewChangeInput("a.png", core.ChangeAdded, "other", true, false, core.Features{}, core.Features{})
	syntaxInput := NewChangeInput("b.py", core.ChangeModified, "python", false, true, core.Features{}, core.Features{})

	records, _, _ := Score([]ChangeInput{binInput, syntaxInput})
	for _, r := range records {
		assert.Equal(t, core.SeverityPatch, r.Severity)
	}
}

func TestScore_StableTieBreak(t *testing.T) {
	low := NewChangeInput("z.go", core.ChangeAdded, "go", false, false, core.Features{}, core.Features{})
	high1 := NewChangeInput("b.js", core.ChangeDeleted, "javascript", false, false, core.Features{},
		core.Features{Endpoints: []core.Endpoint{{Verb: "GET", Route: "/x"}}})
	high2 := NewChangeInput("a.js", core.ChangeDeleted, "javascript", false, false, core.Features{},
		core.Features{Endpoints: []core.Endpoint{{Verb: "GET", Route: "/y"}}})

	records, _, _ := Score([]ChangeInput{low, high1, high2})
	require.Len(t, records, 3)
	assert.Equal(t, "a.js", records[0].Path)
	assert.Equal(t, "b.js", records[1].Path)
	assert.Equal(t, "z.go", records[2].Path)
}

func TestScore_SchemaColumnDropIsMajor(t *testing.T) {
	prior := core.Features{Schemas: []core.Schema{{Name: "User", Fields: []core.SchemaField{{Name: "email", Type: "string"}}}}}
	current := core.Features{Schemas: []core.Schema{{Name: "User"}}}
	input := NewChangeInput("models.py", core.ChangeModified, "python", false, false, current, prior)

	records, _, breaking := Score([]ChangeInput{input})
	assert.Equal(t, core.SeverityMajor, records[0].Severity)
	assert.True(t, breaking)
}
