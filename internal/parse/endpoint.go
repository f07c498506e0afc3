package parse

import "strings"

// normalizeVerb upper-cases an HTTP verb token recovered from any of the
// three recognized routing idioms, so the rest of the pipeline sees a
// uniform {verb, route, line} record regardless of source language.
func normalizeVerb(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// springVerbs maps a Spring-style mapping annotation suffix
// (@GetMapping, @PostMapping, ...) to its HTTP verb.
var springVerbs = map[string]string{
	"GetMapping":     "GET",
	"PostMapping":    "POST",
	"PutMapping":     "PUT",
	"DeleteMapping":  "DELETE",
	"PatchMapping":   "PATCH",
	"RequestMapping": "GET",
}
