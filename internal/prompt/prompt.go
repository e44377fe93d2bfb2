// Package prompt assembles the context sent to the generation model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/codegen-ide/internal/models"
)

// Placeholder is the content of a file the editor created but nobody wrote.
const Placeholder = "// New file"

type FileSummary struct {
	Path     string `json:"path"`
	Lines    int    `json:"lines"`
	Language string `json:"language"`
}

type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Context is everything the model sees for one request.
type Context struct {
	Prompt   string
	Files    []FileSummary
	Contents []FileContent
	// Empty reports that there is nothing to modify yet: no files, or only
	// blank and placeholder files.
	Empty bool
}

func Build(userPrompt string, files []models.File) Context {
	c := Context{
		Prompt:   userPrompt,
		Files:    make([]FileSummary, 0, len(files)),
		Contents: make([]FileContent, 0, len(files)),
		Empty:    true,
	}
	for _, f := range files {
		c.Files = append(c.Files, FileSummary{
			Path:     f.Path,
			Lines:    CountLines(f.Content),
			Language: f.Language,
		})
		c.Contents = append(c.Contents, FileContent{Path: f.Path, Content: f.Content})
		if !isBlank(f.Content) {
			c.Empty = false
		}
	}
	return c
}

func isBlank(content string) bool {
	t := strings.TrimSpace(content)
	return t == "" || t == Placeholder
}

// CountLines counts lines the way an editor gutter does; a trailing newline
// does not open a new line.
func CountLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

const instructions = `You are an expert full-stack developer working inside a browser IDE.
You build new web applications and modify existing ones.

Respond with a single JSON object and nothing else:
{
  "message": "A brief explanation of what you did",
  "files": [
    { "path": "relative/path.ext", "content": "the complete file content" }
  ]
}

Rules:
- To modify a file, include its full new content under its existing path.
- To create a file, include it with a new path.
- Files you do not list are left unchanged.
- If no code changes are needed, "files" is an empty array.
`

// SystemPrompt renders the system instructions, the file manifest and every
// file's full content.
func (c Context) SystemPrompt() string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n")

	if c.Empty {
		b.WriteString("The project is empty. Bootstrap a complete, working project for the request; an index.html entry point is expected.\n")
	} else {
		b.WriteString("The project already has code. Modify the existing files where possible and keep everything you do not change working.\n")
	}

	b.WriteString("\nProject files:\n")
	if len(c.Files) == 0 {
		b.WriteString("(none)\n")
	}
	for _, f := range c.Files {
		fmt.Fprintf(&b, "- %s (%d lines, %s)\n", f.Path, f.Lines, f.Language)
	}

	for _, f := range c.Contents {
		fmt.Fprintf(&b, "\n=== %s ===\n%s\n=== end %s ===\n", f.Path, f.Content, f.Path)
	}
	return b.String()
}
