package prompt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/suPer8Hu/codegen-ide/internal/models"
)

func TestBuild_Summaries(t *testing.T) {
	files := []models.File{
		{Path: "index.html", Content: "<html>\n<body></body>\n</html>\n", Language: "html"},
		{Path: "app.js", Content: "let a = 1", Language: "javascript"},
	}

	c := Build("add a button", files)

	want := []FileSummary{
		{Path: "index.html", Lines: 3, Language: "html"},
		{Path: "app.js", Lines: 1, Language: "javascript"},
	}
	if diff := cmp.Diff(want, c.Files); diff != "" {
		t.Fatalf("summaries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "add a button", c.Prompt)
	assert.False(t, c.Empty)
	assert.Len(t, c.Contents, 2)
}

func TestBuild_Empty(t *testing.T) {
	cases := []struct {
		name  string
		files []models.File
		empty bool
	}{
		{"no files", nil, true},
		{"whitespace only", []models.File{{Path: "a.js", Content: "  \n\t"}}, true},
		{"placeholder", []models.File{{Path: "a.js", Content: "// New file\n"}, {Path: "b.js"}}, true},
		{"one real file", []models.File{{Path: "a.js", Content: "// New file"}, {Path: "b.js", Content: "x"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.empty, Build("p", tc.files).Empty)
		})
	}
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, 1, CountLines("a"))
	assert.Equal(t, 1, CountLines("a\n"))
	assert.Equal(t, 2, CountLines("a\nb"))
	assert.Equal(t, 3, CountLines("a\n\nb\n"))
}

func TestSystemPrompt(t *testing.T) {
	c := Build("make it blue", []models.File{
		{Path: "style.css", Content: "body { color: red; }", Language: "css"},
	})
	sp := c.SystemPrompt()

	assert.Contains(t, sp, `"message"`)
	assert.Contains(t, sp, "- style.css (1 lines, css)")
	assert.Contains(t, sp, "body { color: red; }")
	assert.Contains(t, sp, "already has code")
	assert.NotContains(t, sp, "make it blue")

	empty := Build("start", nil).SystemPrompt()
	assert.Contains(t, empty, "The project is empty")
	assert.True(t, strings.Contains(empty, "(none)"))
}
