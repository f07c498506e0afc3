// Package impactscore rolls per-file features and change kinds into a
// per-file severity, a repository-level severity, and a breaking-change
// flag, per §4.4. It is pure, stateless logic with no direct analogue in
// the reference implementation — it follows the small, single-purpose
// package style the reference implementation uses for helpers like its
// naming utilities.
package impactscore

import (
	"sort"

	"github.com/livingdocs/pipeline/internal/core"
)

// Score assigns a severity to each change record, returning a new slice
// (inputs are not mutated), and returns the overall repository
// severity plus the breaking-change flag.
func Score(changes []ChangeInput) ([]core.ChangeRecord, core.Severity, bool) {
	out := make([]core.ChangeRecord, len(changes))
	repoSeverity := core.SeverityPatch

	for i, c := range changes {
		sev := scoreFile(c)
		out[i] = core.ChangeRecord{
			Path:        c.Path,
			Kind:        c.Kind,
			Language:    c.Language,
			Severity:    sev,
			IsBinary:    c.IsBinary,
			SyntaxError: c.SyntaxError,
			Features:    c.Features,
		}
		repoSeverity = repoSeverity.Max(sev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := severityRank(out[i].Severity), severityRank(out[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return out[i].Path < out[j].Path
	})

	return out, repoSeverity, repoSeverity == core.SeverityMajor
}

// ChangeInput is what the Change Detector + Parser Set hand to the scorer
// for one file.
type ChangeInput struct {
	Path        string
	Kind        core.ChangeKind
	Language    string
	IsBinary    bool
	SyntaxError bool
	Features    core.Features
	// PriorFeatures is the same file's features at the parent commit, used
	// to detect removals/signature changes. Empty for ADDED files.
	PriorFeatures core.Features
}

// NewChangeInput constructs a ChangeInput for the scorer.
func NewChangeInput(path string, kind core.ChangeKind, language string, isBinary, syntaxError bool, features, prior core.Features) ChangeInput {
	return ChangeInput{
		Path: path, Kind: kind, Language: language,
		IsBinary: isBinary, SyntaxError: syntaxError,
		Features: features, PriorFeatures: prior,
	}
}

func scoreFile(c ChangeInput) core.Severity {
	if c.IsBinary || c.SyntaxError {
		return core.SeverityPatch
	}

	if c.Kind == core.ChangeDeleted {
		if len(c.PriorFeatures.Endpoints) > 0 || len(c.PriorFeatures.Functions) > 0 || len(c.PriorFeatures.Classes) > 0 {
			return core.SeverityMajor
		}
		return core.SeverityMinor
	}

	if routeRemovedOrVerbChanged(c.PriorFeatures.Endpoints, c.Features.Endpoints) {
		return core.SeverityMajor
	}
	if publicAPIRemoved(c.PriorFeatures, c.Features) {
		return core.SeverityMajor
	}
	if schemaColumnDropped(c.PriorFeatures.Schemas, c.Features.Schemas) {
		return core.SeverityMajor
	}

	if c.Kind == core.ChangeAdded {
		if !isDocFile(c.Path) {
			return core.SeverityMinor
		}
		return core.SeverityPatch
	}

	if newEndpointAdded(c.PriorFeatures.Endpoints, c.Features.Endpoints) {
		return core.SeverityMinor
	}
	if newFunctionAdded(c.PriorFeatures.Functions, c.Features.Functions) {
		return core.SeverityMinor
	}
	if newSchemaColumnAdded(c.PriorFeatures.Schemas, c.Features.Schemas) {
		return core.SeverityMinor
	}

	return core.SeverityPatch
}

func endpointKey(e core.Endpoint) string { return e.Verb + " " + e.Route }

func routeRemovedOrVerbChanged(prior, current []core.Endpoint) bool {
	currentSet := make(map[string]bool, len(current))
	for _, e := range current {
		currentSet[endpointKey(e)] = true
	}
	for _, p := range prior {
		if !currentSet[endpointKey(p)] {
			return true
		}
	}
	return false
}

func newEndpointAdded(prior, current []core.Endpoint) bool {
	priorSet := make(map[string]bool, len(prior))
	for _, e := range prior {
		priorSet[endpointKey(e)] = true
	}
	for _, c := range current {
		if !priorSet[endpointKey(c)] {
			return true
		}
	}
	return false
}

func symbolSet(symbols []core.Symbol) map[string]bool {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s.Name] = true
	}
	return set
}

func publicAPIRemoved(prior, current core.Features) bool {
	currentFns := symbolSet(append(append([]core.Symbol{}, current.Functions...), current.Methods...))
	for _, f := range append(append([]core.Symbol{}, prior.Functions...), prior.Methods...) {
		if !currentFns[f.Name] {
			return true
		}
	}
	return false
}

func newFunctionAdded(prior, current []core.Symbol) bool {
	priorSet := symbolSet(prior)
	for _, c := range current {
		if !priorSet[c.Name] {
			return true
		}
	}
	return false
}

func schemaFieldSet(schemas []core.Schema) map[string]bool {
	set := make(map[string]bool)
	for _, s := range schemas {
		for _, f := range s.Fields {
			set[s.Name+"."+f.Name] = true
		}
	}
	return set
}

func schemaColumnDropped(prior, current []core.Schema) bool {
	currentFields := schemaFieldSet(current)
	for key := range schemaFieldSet(prior) {
		if !currentFields[key] {
			return true
		}
	}
	return false
}

func newSchemaColumnAdded(prior, current []core.Schema) bool {
	priorFields := schemaFieldSet(prior)
	for key := range schemaFieldSet(current) {
		if !priorFields[key] {
			return true
		}
	}
	return false
}

func isDocFile(path string) bool {
	for _, suffix := range []string{".md", ".txt", ".rst"} {
		if len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

func severityRank(s core.Severity) int {
	switch s {
	case core.SeverityMajor:
		return 2
	case core.SeverityMinor:
		return 1
	default:
		return 0
	}
}
