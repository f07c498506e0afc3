package parse

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/livingdocs/pipeline/internal/core"
)

// pythonExtractor recovers features from script-typed languages using the
// decorator endpoint idiom (@app.route("/x", methods=["GET"])),
// representative of Python/Flask-style source.
type pythonExtractor struct{}

var (
	rePyDef       = regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`)
	rePyClass     = regexp.MustCompile(`^\s*class\s+(\w+)`)
	rePyDecorator = regexp.MustCompile(`^\s*@([\w.]+)\s*\(?(.*)$`)
	rePyRoute     = regexp.MustCompile(`\.route\s*\(`)
	rePyVerbAlias = regexp.MustCompile(`\.(get|post|put|delete|patch)\s*\(`)
	rePyMethods   = regexp.MustCompile(`methods\s*=\s*\[([^\]]*)\]`)
	rePyModel     = regexp.MustCompile(`class\s+\w+\s*\(\s*(?:models\.Model|db\.Model|Base)\s*\)`)
	rePyField     = regexp.MustCompile(`^\s*(\w+)\s*=\s*(?:models\.|db\.Column\(|fields\.)([\w.]+)`)
)

func (pythonExtractor) Extract(text, _ string) (core.Features, bool) {
	var features core.Features

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	inModel := false
	modelIndent := -1

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		if inModel && indent <= modelIndent {
			inModel = false
		}

		if m := rePyClass.FindStringSubmatch(line); m != nil {
			features.Classes = append(features.Classes, core.Symbol{Name: m[1], Line: lineNo})
			if rePyModel.MatchString(line) {
				inModel = true
				modelIndent = indent
				features.Schemas = append(features.Schemas, core.Schema{Name: m[1], Line: lineNo})
			}
			continue
		}

		if inModel {
			if m := rePyField.FindStringSubmatch(line); m != nil {
				last := &features.Schemas[len(features.Schemas)-1]
				last.Fields = append(last.Fields, core.SchemaField{Name: m[1], Type: m[2]})
			}
		}

		if m := rePyDecorator.FindStringSubmatch(trimmed); m != nil {
			features.Annotations = append(features.Annotations, core.Symbol{Name: m[1], Line: lineNo})

			if rePyRoute.MatchString(trimmed) {
				route := extractQuotedPath(m[2])
				verbs := []string{"GET"}
				if vm := rePyMethods.FindStringSubmatch(trimmed); vm != nil {
					verbs = splitQuotedList(vm[1])
				}
				for _, v := range verbs {
					features.Endpoints = append(features.Endpoints, core.Endpoint{
						Verb: normalizeVerb(v), Route: route, Line: lineNo,
					})
				}
				continue
			}
			continue
		}

		if m := rePyDef.FindStringSubmatch(line); m != nil {
			if indent == 0 {
				features.Functions = append(features.Functions, core.Symbol{Name: m[1], Line: lineNo})
			} else {
				features.Methods = append(features.Methods, core.Symbol{Name: m[1], Line: lineNo})
			}
		}
	}

	return features, false
}

// splitQuotedList extracts every quoted token from a comma-separated list
// such as `"GET", "POST"`.
func splitQuotedList(s string) []string {
	var out []string
	parts := strings.Split(s, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"GET"}
	}
	return out
}
