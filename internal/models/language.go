package models

import (
	"path"
	"strings"
)

const PlaintextLanguage = "plaintext"

// MaxLanguageLength matches the width of the files.language column.
const MaxLanguageLength = 32

var languageByExt = map[string]string{
	"js":   "javascript",
	"jsx":  "javascript",
	"mjs":  "javascript",
	"cjs":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"py":   "python",
	"go":   "go",
	"rs":   "rust",
	"java": "java",
	"rb":   "ruby",
	"php":  "php",
	"cs":   "csharp",
	"c":    "c",
	"h":    "c",
	"cpp":  "cpp",
	"cc":   "cpp",
	"hpp":  "cpp",
	"sh":   "shell",
	"bash": "shell",
	"sql":  "sql",
	"yml":  "yaml",
	"yaml": "yaml",
	"json": "json",
	"md":   "markdown",
	"html": "html",
	"htm":  "html",
	"css":  "css",
	"scss": "scss",
	"less": "less",
	"xml":  "xml",
	"svg":  "xml",
}

// LanguageFromPath derives an editor language tag from the file extension.
// Unknown extensions are returned as-is; paths without one, or with one too
// long to store, are plaintext.
func LanguageFromPath(p string) string {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return PlaintextLanguage
	}
	ext = strings.ToLower(ext)
	if len(ext) > MaxLanguageLength {
		return PlaintextLanguage
	}
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return ext
}
