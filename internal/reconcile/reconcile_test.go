package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/codegen-ide/internal/generation"
	"github.com/suPer8Hu/codegen-ide/internal/models"
	"github.com/suPer8Hu/codegen-ide/internal/store"
	"github.com/suPer8Hu/codegen-ide/internal/store/filestore"
)

func newStore(t *testing.T) store.Storage {
	t.Helper()
	s, err := filestore.Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return s
}

func TestApply_UpdatesAndCreates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p, err := s.CreateProject(ctx, "p")
	require.NoError(t, err)
	a, err := s.CreateFile(ctx, p.ID, "a.js", "old", "javascript")
	require.NoError(t, err)

	current, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)

	applied, err := Apply(ctx, s, p.ID, current, []generation.FileEdit{
		{Path: "a.js", Content: "new"},
		{Path: "b.js", Content: "x"},
	})
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.False(t, applied[0].Created)
	assert.Equal(t, a.ID, applied[0].File.ID)
	assert.Equal(t, "new", applied[0].File.Content)
	assert.True(t, applied[1].Created)
	assert.Equal(t, "javascript", applied[1].File.Language)

	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.js", files[0].Path)
	assert.Equal(t, "new", files[0].Content)
	assert.Equal(t, "b.js", files[1].Path)
	assert.Equal(t, "x", files[1].Content)

	versions, err := s.ListFileVersions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "old", versions[0].Content)
}

func TestApply_SamePathTwiceInOneBatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p, err := s.CreateProject(ctx, "p")
	require.NoError(t, err)

	applied, err := Apply(ctx, s, p.ID, nil, []generation.FileEdit{
		{Path: "Makefile", Content: "v1"},
		{Path: "Makefile", Content: "v2"},
	})
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.True(t, applied[0].Created)
	assert.False(t, applied[1].Created)
	assert.Equal(t, "plaintext", applied[0].File.Language)

	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "v2", files[0].Content)
}

type failingWriter struct {
	store.Storage
	failPath string
}

var errDisk = errors.New("disk full")

func (w failingWriter) CreateFile(ctx context.Context, projectID uint64, path, content, language string) (*models.File, error) {
	if path == w.failPath {
		return nil, errDisk
	}
	return w.Storage.CreateFile(ctx, projectID, path, content, language)
}

func TestApply_PartialFailureKeepsEarlierEdits(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p, err := s.CreateProject(ctx, "p")
	require.NoError(t, err)

	applied, err := Apply(ctx, failingWriter{Storage: s, failPath: "b.js"}, p.ID, nil, []generation.FileEdit{
		{Path: "a.js", Content: "1"},
		{Path: "b.js", Content: "2"},
		{Path: "c.js", Content: "3"},
	})
	require.Error(t, err)
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 1, rerr.Index)
	assert.Equal(t, "b.js", rerr.Path)
	assert.ErrorIs(t, err, errDisk)

	require.Len(t, applied, 1)
	assert.Equal(t, "a.js", Files(applied)[0].Path)

	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
}
