package parse

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/livingdocs/pipeline/internal/core"
)

// sqlExtractor recovers schema declarations from raw SQL DDL statements
// (CREATE TABLE ... (col type, ...)).
type sqlExtractor struct{}

var (
	reSQLCreateTable = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?"?([\w.]+)"?\s*\(`)
	reSQLColumn      = regexp.MustCompile(`^\s*"?(\w+)"?\s+([\w()]+)[,\s]?`)
	reSQLConstraint  = regexp.MustCompile(`(?i)^\s*(PRIMARY|FOREIGN|UNIQUE|CONSTRAINT|CHECK)\b`)
)

func (sqlExtractor) Extract(text, _ string) (core.Features, bool) {
	var features core.Features

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	inTable := false
	depth := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := reSQLCreateTable.FindStringSubmatch(line); m != nil {
			features.Schemas = append(features.Schemas, core.Schema{Name: m[1], Line: lineNo})
			inTable = true
			depth = strings.Count(line, "(") - strings.Count(line, ")")
			continue
		}

		if inTable {
			depth += strings.Count(line, "(") - strings.Count(line, ")")
			if !reSQLConstraint.MatchString(trimmed) {
				if m := reSQLColumn.FindStringSubmatch(trimmed); m != nil {
					last := &features.Schemas[len(features.Schemas)-1]
					last.Fields = append(last.Fields, core.SchemaField{
						Name: m[1],
						Type: strings.TrimSuffix(m[2], ","),
					})
				}
			}
			if depth <= 0 {
				inTable = false
			}
		}
	}

	return features, false
}
