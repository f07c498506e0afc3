// Package parse provides per-language source extractors that recover
// structured features (classes, functions, endpoints, schemas) from a
// single file's text. Extractors are hand-written line scanners in the
// style of the reference implementation's markdown-review parser — there
// is no general parser-combinator or AST library for arbitrary source
// languages in this stack, so each extractor owns its own small regex
// state machine.
package parse

import "github.com/livingdocs/pipeline/internal/core"

// Extractor recovers Features from the text of one source file. It must be
// error-tolerant: a malformed file never returns a hard Go error, it
// reports syntaxError=true and whatever Features could still be recovered.
type Extractor interface {
	Extract(text, path string) (features core.Features, syntaxError bool)
}

// Registry resolves a language tag to its Extractor.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a Registry pre-populated with the required language
// coverage: a curly-brace-typed class language (Java), a script-typed
// language (Python, JavaScript/TypeScript), and a managed-runtime class
// language (C#).
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register("java", javaExtractor{})
	r.Register("python", pythonExtractor{})
	r.Register("javascript", javascriptExtractor{})
	r.Register("typescript", javascriptExtractor{})
	r.Register("csharp", csharpExtractor{})
	r.Register("sql", sqlExtractor{})
	return r
}

// Register adds or replaces the extractor for language.
func (r *Registry) Register(language string, e Extractor) {
	r.extractors[language] = e
}

// Extract runs the extractor registered for language. Languages with no
// registered extractor ("other", or any unrecognized tag) return empty
// features and syntaxError=false: absence of a parser is not a parse
// failure.
func (r *Registry) Extract(language, text, path string) (core.Features, bool) {
	e, ok := r.extractors[language]
	if !ok {
		return core.Features{}, false
	}
	return e.Extract(text, path)
}
