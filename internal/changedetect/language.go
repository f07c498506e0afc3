package changedetect

import (
	"path/filepath"
	"strings"
)

// languageByExt maps a file extension (without leading dot, lowercased) to
// a language tag. Unknown extensions fall back to "other".
var languageByExt = map[string]string{
	"go":    "go",
	"py":    "python",
	"js":    "javascript",
	"jsx":   "javascript",
	"mjs":   "javascript",
	"ts":    "typescript",
	"tsx":   "typescript",
	"java":  "java",
	"cs":    "csharp",
	"rb":    "ruby",
	"php":   "php",
	"sql":   "sql",
	"md":    "markdown",
	"yml":   "yaml",
	"yaml":  "yaml",
	"json":  "json",
	"proto": "protobuf",
}

// DetectLanguage returns the language tag for path based on its extension.
func DetectLanguage(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "other"
}
