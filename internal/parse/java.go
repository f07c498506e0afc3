package parse

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/livingdocs/pipeline/internal/core"
)

// javaExtractor recovers features from curly-brace-typed class languages
// using the annotated-controller endpoint idiom (@GetMapping("/x") etc.),
// representative of Java/Spring-style source.
type javaExtractor struct{}

var (
	reJavaClass      = regexp.MustCompile(`^\s*(?:public|private|protected)?\s*(?:abstract\s+|final\s+)?class\s+(\w+)`)
	reJavaInterface  = regexp.MustCompile(`^\s*(?:public\s+)?interface\s+(\w+)`)
	reJavaMethod     = regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+)?[\w<>\[\],\s]+?\s+(\w+)\s*\([^;{]*\)\s*\{?\s*$`)
	reJavaAnnotation = regexp.MustCompile(`^\s*@(\w+)(?:\(([^)]*)\))?`)
	reJavaEntity     = regexp.MustCompile(`@Entity|@Table`)
	reJavaField      = regexp.MustCompile(`^\s*(?:private|public|protected)\s+([\w<>\[\],.]+)\s+(\w+)\s*;`)
)

func (javaExtractor) Extract(text, _ string) (core.Features, bool) {
	var features core.Features
	syntaxError := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	pendingMappingVerb := ""
	pendingMappingRoute := ""
	inEntity := false
	braceDepth := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		braceDepth += strings.Count(line, "{") - strings.Count(line, "}")

		if m := reJavaClass.FindStringSubmatch(line); m != nil {
			features.Classes = append(features.Classes, core.Symbol{Name: m[1], Line: lineNo})
			if inEntity {
				features.Schemas = append(features.Schemas, core.Schema{Name: m[1], Line: lineNo})
			}
			continue
		}
		if m := reJavaInterface.FindStringSubmatch(line); m != nil {
			features.Classes = append(features.Classes, core.Symbol{Name: m[1], Line: lineNo})
			continue
		}

		if m := reJavaAnnotation.FindStringSubmatch(trimmed); m != nil {
			name := m[1]
			features.Annotations = append(features.Annotations, core.Symbol{Name: name, Line: lineNo})

			if verb, ok := springVerbs[name]; ok {
				pendingMappingVerb = verb
				pendingMappingRoute = extractQuotedPath(m[2])
				continue
			}
			if reJavaEntity.MatchString(trimmed) {
				inEntity = true
			}
			continue
		}

		if pendingMappingVerb != "" {
			if m := reJavaMethod.FindStringSubmatch(line); m != nil {
				features.Endpoints = append(features.Endpoints, core.Endpoint{
					Verb:  pendingMappingVerb,
					Route: pendingMappingRoute,
					Line:  lineNo,
				})
			}
			pendingMappingVerb = ""
			pendingMappingRoute = ""
		}

		if m := reJavaMethod.FindStringSubmatch(line); m != nil {
			features.Methods = append(features.Methods, core.Symbol{Name: m[1], Line: lineNo})
			continue
		}

		if inEntity {
			if m := reJavaField.FindStringSubmatch(line); m != nil {
				if len(features.Schemas) == 0 || features.Schemas[len(features.Schemas)-1].Line == 0 {
					features.Schemas = append(features.Schemas, core.Schema{Line: lineNo})
				}
				last := &features.Schemas[len(features.Schemas)-1]
				last.Fields = append(last.Fields, core.SchemaField{Name: m[2], Type: m[1]})
			}
			if braceDepth == 0 {
				inEntity = false
			}
		}
	}

	if len(features.Schemas) > 0 {
		for i := range features.Schemas {
			if features.Schemas[i].Name == "" && len(features.Classes) > 0 {
				features.Schemas[i].Name = features.Classes[0].Name
			}
		}
	}

	return features, syntaxError
}

// extractQuotedPath pulls the first quoted string out of an annotation
// argument list, e.g. `"/users", method = RequestMethod.GET` -> "/users".
func extractQuotedPath(args string) string {
	start := strings.IndexByte(args, '"')
	if start == -1 {
		return ""
	}
	end := strings.IndexByte(args[start+1:], '"')
	if end == -1 {
		return ""
	}
	return args[start+1 : start+1+end]
}
