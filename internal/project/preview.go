package project

import (
	"context"
	"fmt"
	"html"
	"path"
	"strings"

	"github.com/suPer8Hu/codegen-ide/internal/models"
)

const placeholderPage = `<!DOCTYPE html>
<html>
<head><title>Preview</title></head>
<body><p>Nothing to preview yet. Add an index.html to this project.</p></body>
</html>`

// Preview assembles a single page from the project's files.
func (s *Service) Preview(ctx context.Context, projectID uint64) (string, error) {
	files, err := s.ListFiles(ctx, projectID)
	if err != nil {
		return "", err
	}
	return AssemblePreview(files), nil
}

// AssemblePreview takes the first index.html (or main.html) and inlines
// every stylesheet before </head> and every script before </body>. No
// bundling: imports and module paths are not resolved.
func AssemblePreview(files []models.File) string {
	entry := findEntry(files)
	if entry == nil {
		return placeholderPage
	}

	var styles, scripts strings.Builder
	for _, f := range files {
		switch strings.ToLower(path.Ext(f.Path)) {
		case ".css":
			fmt.Fprintf(&styles, "<style data-path=\"%s\">\n%s\n</style>\n",
				html.EscapeString(f.Path), neutralize(f.Content, "</style"))
		case ".js", ".mjs":
			fmt.Fprintf(&scripts, "<script data-path=\"%s\">\n%s\n</script>\n",
				html.EscapeString(f.Path), neutralize(f.Content, "</script"))
		}
	}

	page := insertBefore(entry.Content, "</head>", styles.String(), true)
	return insertBefore(page, "</body>", scripts.String(), false)
}

// findEntry prefers a root-level entry over one in a subdirectory.
func findEntry(files []models.File) *models.File {
	for _, match := range []func(p, name string) bool{
		strings.EqualFold,
		func(p, name string) bool { return strings.EqualFold(path.Base(p), name) },
	} {
		for _, name := range []string{"index.html", "main.html"} {
			for i := range files {
				if match(files[i].Path, name) {
					return &files[i]
				}
			}
		}
	}
	return nil
}

// insertBefore puts snippet in front of the last tag match, ignoring ASCII
// case. Without the tag the snippet goes to the start or the end of doc.
func insertBefore(doc, tag, snippet string, atStart bool) string {
	if snippet == "" {
		return doc
	}
	i := lastIndexFold(doc, tag)
	if i < 0 {
		if atStart {
			return snippet + doc
		}
		return doc + snippet
	}
	return doc[:i] + snippet + doc[i:]
}

// neutralize stops inlined content from closing its own element early.
func neutralize(content, closer string) string {
	i := indexFold(content, closer)
	if i < 0 {
		return content
	}
	var b strings.Builder
	for i >= 0 {
		b.WriteString(content[:i])
		b.WriteString("<\\/")
		b.WriteString(content[i+2 : i+len(closer)])
		content = content[i+len(closer):]
		i = indexFold(content, closer)
	}
	b.WriteString(content)
	return b.String()
}

// indexFold and lastIndexFold compare the ASCII tag against s in place, so
// the offsets they return always slice s on the match.
func indexFold(s, tag string) int {
	for i := 0; i+len(tag) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(tag)], tag) {
			return i
		}
	}
	return -1
}

func lastIndexFold(s, tag string) int {
	for i := len(s) - len(tag); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(tag)], tag) {
			return i
		}
	}
	return -1
}
