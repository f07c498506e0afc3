package parse

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/livingdocs/pipeline/internal/core"
)

// csharpExtractor recovers features from a managed-runtime class language,
// representative of C#/.NET source: attributes for annotations, ASP.NET
// Core attribute-routing for endpoints ([HttpGet("/x")]), and Entity
// Framework model classes for schemas.
type csharpExtractor struct{}

var (
	reCSClass      = regexp.MustCompile(`^\s*(?:public|internal|private)?\s*(?:abstract\s+|sealed\s+)?class\s+(\w+)`)
	reCSMethod     = regexp.MustCompile(`^\s*(?:public|private|protected|internal)\s+(?:static\s+|async\s+|virtual\s+|override\s+)*[\w<>\[\],.]+\s+(\w+)\s*\([^;{]*\)\s*\{?\s*$`)
	reCSAttribute  = regexp.MustCompile(`^\s*\[(\w+)(?:\(([^)]*)\))?\]`)
	reCSProperty   = regexp.MustCompile(`^\s*public\s+([\w<>\[\],.?]+)\s+(\w+)\s*\{\s*get;`)
)

var httpAttributeVerbs = map[string]string{
	"HttpGet":    "GET",
	"HttpPost":   "POST",
	"HttpPut":    "PUT",
	"HttpDelete": "DELETE",
	"HttpPatch":  "PATCH",
}

func (csharpExtractor) Extract(text, _ string) (core.Features, bool) {
	var features core.Features

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	pendingVerb := ""
	pendingRoute := ""
	inModelClass := false

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := reCSAttribute.FindStringSubmatch(trimmed); m != nil {
			features.Annotations = append(features.Annotations, core.Symbol{Name: m[1], Line: lineNo})
			if verb, ok := httpAttributeVerbs[m[1]]; ok {
				pendingVerb = verb
				pendingRoute = extractQuotedPath(m[2])
			}
			continue
		}

		if m := reCSClass.FindStringSubmatch(line); m != nil {
			features.Classes = append(features.Classes, core.Symbol{Name: m[1], Line: lineNo})
			inModelClass = strings.HasSuffix(m[1], "Model") || strings.HasSuffix(m[1], "Entity") || strings.HasSuffix(m[1], "Dto")
			if inModelClass {
				features.Schemas = append(features.Schemas, core.Schema{Name: m[1], Line: lineNo})
			}
			continue
		}

		if pendingVerb != "" {
			if m := reCSMethod.FindStringSubmatch(line); m != nil {
				features.Endpoints = append(features.Endpoints, core.Endpoint{
					Verb: pendingVerb, Route: pendingRoute, Line: lineNo,
				})
			}
			pendingVerb, pendingRoute = "", ""
		}

		if m := reCSMethod.FindStringSubmatch(line); m != nil {
			features.Methods = append(features.Methods, core.Symbol{Name: m[1], Line: lineNo})
			continue
		}

		if inModelClass {
			if m := reCSProperty.FindStringSubmatch(line); m != nil {
				last := &features.Schemas[len(features.Schemas)-1]
				last.Fields = append(last.Fields, core.SchemaField{Name: m[2], Type: m[1]})
			}
		}
	}

	return features, false
}
