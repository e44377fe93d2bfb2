// Package reconcile applies a generated edit set to a project's files.
//
// Edits are applied one at a time with no transaction around the batch. If
// edit N fails, edits before it stay applied; every overwritten file still has
// its previous content in a FileVersion.
package reconcile

import (
	"context"
	"fmt"

	"github.com/suPer8Hu/codegen-ide/internal/generation"
	"github.com/suPer8Hu/codegen-ide/internal/models"
)

// Writer is the part of the store reconciliation needs.
type Writer interface {
	CreateFile(ctx context.Context, projectID uint64, path, content, language string) (*models.File, error)
	UpdateFile(ctx context.Context, id uint64, content string, projectID uint64) (*models.File, error)
}

type Applied struct {
	File    models.File
	Created bool
}

// Error reports the edit that stopped the batch.
type Error struct {
	Index int
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("apply edit %d (%s): %v", e.Index, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Apply updates files whose path matches an edit exactly and creates the
// rest. current should be in path order; with duplicate paths the first one
// wins. A path created earlier in the batch is updated by later edits.
//
// On failure the edits applied so far are returned along with an *Error.
func Apply(ctx context.Context, w Writer, projectID uint64, current []models.File, edits []generation.FileEdit) ([]Applied, error) {
	byPath := make(map[string]uint64, len(current)+len(edits))
	for _, f := range current {
		if _, ok := byPath[f.Path]; !ok {
			byPath[f.Path] = f.ID
		}
	}

	out := make([]Applied, 0, len(edits))
	for i, e := range edits {
		if id, ok := byPath[e.Path]; ok {
			f, err := w.UpdateFile(ctx, id, e.Content, projectID)
			if err != nil {
				return out, &Error{Index: i, Path: e.Path, Err: err}
			}
			out = append(out, Applied{File: *f})
			continue
		}
		f, err := w.CreateFile(ctx, projectID, e.Path, e.Content, models.LanguageFromPath(e.Path))
		if err != nil {
			return out, &Error{Index: i, Path: e.Path, Err: err}
		}
		byPath[e.Path] = f.ID
		out = append(out, Applied{File: *f, Created: true})
	}
	return out, nil
}

func Files(applied []Applied) []models.File {
	files := make([]models.File, 0, len(applied))
	for _, a := range applied {
		files = append(files, a.File)
	}
	return files
}
