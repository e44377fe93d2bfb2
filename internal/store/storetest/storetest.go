// Package storetest is the behavioural contract every store.Storage backend
// must satisfy. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/codegen-ide/internal/common"
	"github.com/suPer8Hu/codegen-ide/internal/models"
	"github.com/suPer8Hu/codegen-ide/internal/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Storage

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Storage)
	}{
		{"ProjectLifecycle", testProjectLifecycle},
		{"ListProjectsNewestFirst", testListProjectsNewestFirst},
		{"DeleteProjectCascades", testDeleteProjectCascades},
		{"DeleteProjectTwice", testDeleteProjectTwice},
		{"CreateFileNeedsProject", testCreateFileNeedsProject},
		{"CreateFileDerivesLanguage", testCreateFileDerivesLanguage},
		{"ListFilesByPath", testListFilesByPath},
		{"UpdateFileVersionsPreviousContent", testUpdateFileVersions},
		{"UpdateFileSameContentNoVersion", testUpdateFileSameContent},
		{"UpdateFileNotFound", testUpdateFileNotFound},
		{"UpdateFileRoundTrip", testUpdateFileRoundTrip},
		{"DeleteFileDropsVersions", testDeleteFile},
		{"Messages", testMessages},
		{"Uploads", testUploads},
		{"Templates", testTemplates},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func mustProject(t *testing.T, s store.Storage, name string) *models.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), name)
	require.NoError(t, err)
	require.NotZero(t, p.ID)
	return p
}

func mustFile(t *testing.T, s store.Storage, projectID uint64, path, content string) *models.File {
	t.Helper()
	f, err := s.CreateFile(context.Background(), projectID, path, content, "")
	require.NoError(t, err)
	require.NotZero(t, f.ID)
	return f
}

func paths(files []models.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func testProjectLifecycle(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "demo")
	assert.Equal(t, "demo", p.Name)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "demo", got.Name)

	_, err = s.GetProject(ctx, p.ID+100)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testListProjectsNewestFirst(t *testing.T, s store.Storage) {
	ctx := context.Background()
	empty, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	a := mustProject(t, s, "a")
	b := mustProject(t, s, "b")
	c := mustProject(t, s, "c")
	assert.Less(t, a.ID, b.ID)
	assert.Less(t, b.ID, c.ID)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint64{c.ID, b.ID, a.ID}, []uint64{list[0].ID, list[1].ID, list[2].ID})
}

func testDeleteProjectCascades(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "doomed")
	keep := mustProject(t, s, "keep")

	f1 := mustFile(t, s, p.ID, "a.js", "1")
	mustFile(t, s, p.ID, "b.js", "2")
	_, err := s.UpdateFile(ctx, f1.ID, "1b", p.ID)
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, p.ID, models.RoleUser, "hi")
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, p.ID, models.RoleAssistant, "hello")
	require.NoError(t, err)
	_, err = s.CreateUpload(ctx, p.ID, models.NewUpload{FileName: "x.png", FileType: "image/png", FileSize: 3, FilePath: "uploads/x.png"})
	require.NoError(t, err)

	kf := mustFile(t, s, keep.ID, "k.js", "k")
	_, err = s.UpdateFile(ctx, kf.ID, "k2", keep.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
	versions, err := s.ListFileVersions(ctx, f1.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
	msgs, err := s.ListMessages(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	uploads, err := s.ListUploads(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, uploads)

	// other projects are untouched
	kfiles, err := s.ListFiles(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, kfiles, 1)
	kversions, err := s.ListFileVersions(ctx, kf.ID)
	require.NoError(t, err)
	assert.Len(t, kversions, 1)
}

func testDeleteProjectTwice(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "twice")
	require.NoError(t, s.DeleteProject(ctx, p.ID))
	require.NoError(t, s.DeleteProject(ctx, p.ID))
	require.NoError(t, s.DeleteProject(ctx, 424242))
}

func testCreateFileNeedsProject(t *testing.T, s store.Storage) {
	_, err := s.CreateFile(context.Background(), 999, "a.js", "", "javascript")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testCreateFileDerivesLanguage(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "lang")

	f := mustFile(t, s, p.ID, "src/App.tsx", "")
	assert.Equal(t, "typescript", f.Language)
	assert.Equal(t, p.ID, f.ProjectID)

	explicit, err := s.CreateFile(ctx, p.ID, "notes", "x", "markdown")
	require.NoError(t, err)
	assert.Equal(t, "markdown", explicit.Language)

	got, err := s.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "src/App.tsx", got.Path)
	assert.Equal(t, "typescript", got.Language)

	_, err = s.GetFile(ctx, f.ID+100)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testListFilesByPath(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "sorted")
	other := mustProject(t, s, "other")
	mustFile(t, s, p.ID, "src/index.css", "")
	mustFile(t, s, p.ID, "readme.md", "")
	mustFile(t, s, p.ID, "src/App.tsx", "")
	mustFile(t, s, other.ID, "a.js", "")

	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"readme.md", "src/App.tsx", "src/index.css"}, paths(files))
}

func testUpdateFileVersions(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "versions")
	f := mustFile(t, s, p.ID, "a.js", "c1")

	updated, err := s.UpdateFile(ctx, f.ID, "c2", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "c2", updated.Content)
	assert.Equal(t, f.ID, updated.ID)

	versions, err := s.ListFileVersions(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "c1", versions[0].Content)
	assert.Equal(t, f.ID, versions[0].FileID)
	assert.Equal(t, p.ID, versions[0].ProjectID)

	_, err = s.UpdateFile(ctx, f.ID, "c3", p.ID)
	require.NoError(t, err)
	versions, err = s.ListFileVersions(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "c2", versions[0].Content)
	assert.Equal(t, "c1", versions[1].Content)

	cur, err := s.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "c3", cur.Content)
}

func testUpdateFileSameContent(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "same")
	f := mustFile(t, s, p.ID, "a.js", "same")

	got, err := s.UpdateFile(ctx, f.ID, "same", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "same", got.Content)

	versions, err := s.ListFileVersions(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func testUpdateFileNotFound(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "owner")
	other := mustProject(t, s, "other")
	f := mustFile(t, s, p.ID, "a.js", "x")

	_, err := s.UpdateFile(ctx, f.ID+100, "y", p.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.UpdateFile(ctx, f.ID, "y", other.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	cur, err := s.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", cur.Content)
	versions, err := s.ListFileVersions(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func testUpdateFileRoundTrip(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "roundtrip")
	f := mustFile(t, s, p.ID, "p.txt", "before")

	_, err := s.UpdateFile(ctx, f.ID, "after", p.ID)
	require.NoError(t, err)

	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "p.txt", files[0].Path)
	assert.Equal(t, "after", files[0].Content)
}

func testDeleteFile(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "del")
	f := mustFile(t, s, p.ID, "a.js", "1")
	g := mustFile(t, s, p.ID, "b.js", "1")
	_, err := s.UpdateFile(ctx, f.ID, "2", p.ID)
	require.NoError(t, err)
	_, err = s.UpdateFile(ctx, g.ID, "2", p.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteFile(ctx, f.ID))

	_, err = s.GetFile(ctx, f.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	versions, err := s.ListFileVersions(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
	gversions, err := s.ListFileVersions(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, gversions, 1)

	assert.ErrorIs(t, s.DeleteFile(ctx, f.ID), common.ErrNotFound)
}

func testMessages(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "chat")

	for i, c := range []string{"one", "two", "three"} {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		m, err := s.CreateMessage(ctx, p.ID, role, c)
		require.NoError(t, err)
		assert.Equal(t, role, m.Role)
		assert.False(t, m.CreatedAt.IsZero())
	}

	msgs, err := s.ListMessages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "three", msgs[2].Content)

	_, err = s.CreateMessage(ctx, p.ID, models.Role("system"), "nope")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.CreateMessage(ctx, p.ID+100, models.RoleUser, "orphan")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testUploads(t *testing.T, s store.Storage) {
	ctx := context.Background()
	p := mustProject(t, s, "uploads")

	first, err := s.CreateUpload(ctx, p.ID, models.NewUpload{FileName: "a.png", FileType: "image/png", FileSize: 10, FilePath: "uploads/a.png"})
	require.NoError(t, err)
	second, err := s.CreateUpload(ctx, p.ID, models.NewUpload{FileName: "b.pdf", FileType: "application/pdf", FileSize: 20, FilePath: "uploads/b.pdf"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), second.FileSize)
	assert.False(t, second.UploadedAt.IsZero())

	list, err := s.ListUploads(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	got, err := s.GetUpload(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.FileName)
	assert.Equal(t, "uploads/a.png", got.FilePath)
	assert.Equal(t, p.ID, got.ProjectID)

	require.NoError(t, s.DeleteUpload(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteUpload(ctx, first.ID), common.ErrNotFound)
	_, err = s.GetUpload(ctx, first.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	list, err = s.ListUploads(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b.pdf", list[0].FileName)

	_, err = s.CreateUpload(ctx, p.ID+100, models.NewUpload{FileName: "x"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testTemplates(t *testing.T, s store.Storage) {
	ctx := context.Background()

	files := []models.TemplateFile{
		{Path: "package.json", Content: "{}", Language: "json"},
		{Path: "server.js", Content: "console.log(1)", Language: "javascript"},
	}
	a, err := s.CreateTemplate(ctx, models.NewTemplate{Name: "Node", Type: "nodejs", Description: "api", Files: files})
	require.NoError(t, err)
	b, err := s.CreateTemplate(ctx, models.NewTemplate{Name: "Empty", Type: "html"})
	require.NoError(t, err)

	got, err := s.GetTemplate(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Node", got.Name)
	assert.Equal(t, "nodejs", got.Type)
	assert.Equal(t, files, []models.TemplateFile(got.Files))

	list, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Empty(t, list[0].Files)

	require.NoError(t, s.DeleteTemplate(ctx, a.ID))
	_, err = s.GetTemplate(ctx, a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTemplate(ctx, a.ID), common.ErrNotFound)
}
