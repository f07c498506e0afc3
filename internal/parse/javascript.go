package parse

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/livingdocs/pipeline/internal/core"
)

// javascriptExtractor recovers features from script-typed languages using
// the middleware-chain endpoint idiom (router.get("/x", ...), app.post(...)),
// representative of JavaScript/TypeScript Express-style source. Also used
// for TypeScript; type annotations don't change the shape of the idioms
// this extractor looks for.
type javascriptExtractor struct{}

var (
	reJSClass      = regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)
	reJSFunction   = regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`)
	reJSArrowConst = regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(?[^=]*\)?\s*=>`)
	reJSMethod     = regexp.MustCompile(`^\s*(?:async\s+)?(\w+)\s*\([^)]*\)\s*\{`)
	reJSRoute      = regexp.MustCompile(`\b(\w+)\.(get|post|put|delete|patch)\s*\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)
	reJSDecorator  = regexp.MustCompile(`^\s*@(\w+)`)
	reJSSchema     = regexp.MustCompile(`new\s+Schema\s*\(\s*\{|Model\s*\.\s*init\s*\(`)
	reJSSchemaName = regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=`)
	reJSField      = regexp.MustCompile(`^\s*(\w+)\s*:\s*\{?\s*type\s*:\s*(\w+)`)
)

var jsRouterReceivers = map[string]bool{"router": true, "app": true}

func (javascriptExtractor) Extract(text, _ string) (core.Features, bool) {
	var features core.Features

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	inSchema := false
	schemaDepth := 0
	pendingSchemaName := ""

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := reJSSchemaName.FindStringSubmatch(line); m != nil {
			pendingSchemaName = m[1]
		}
		if reJSSchema.MatchString(line) {
			inSchema = true
			schemaDepth = 0
			features.Schemas = append(features.Schemas, core.Schema{Name: pendingSchemaName, Line: lineNo})
		}
		if inSchema {
			schemaDepth += strings.Count(line, "{") - strings.Count(line, "}")
			if m := reJSField.FindStringSubmatch(line); m != nil {
				last := &features.Schemas[len(features.Schemas)-1]
				last.Fields = append(last.Fields, core.SchemaField{Name: m[1], Type: m[2]})
			}
			if schemaDepth <= 0 {
				inSchema = false
			}
		}

		if m := reJSDecorator.FindStringSubmatch(trimmed); m != nil {
			features.Annotations = append(features.Annotations, core.Symbol{Name: m[1], Line: lineNo})
		}

		if m := reJSRoute.FindStringSubmatch(line); m != nil {
			receiver, verb, route := m[1], m[2], m[3]
			if jsRouterReceivers[receiver] || strings.HasSuffix(receiver, "Router") {
				features.Endpoints = append(features.Endpoints, core.Endpoint{
					Verb: normalizeVerb(verb), Route: route, Line: lineNo,
				})
			}
		}

		if m := reJSClass.FindStringSubmatch(line); m != nil {
			features.Classes = append(features.Classes, core.Symbol{Name: m[1], Line: lineNo})
			continue
		}
		if m := reJSFunction.FindStringSubmatch(line); m != nil {
			features.Functions = append(features.Functions, core.Symbol{Name: m[1], Line: lineNo})
			continue
		}
		if m := reJSArrowConst.FindStringSubmatch(line); m != nil {
			features.Functions = append(features.Functions, core.Symbol{Name: m[1], Line: lineNo})
			continue
		}
	}

	return features, false
}
