// Package store defines the persistence contract shared by every backend.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/suPer8Hu/codegen-ide/internal/models"
)

type ProjectStore interface {
	CreateProject(ctx context.Context, name string) (*models.Project, error)
	// ListProjects returns projects newest first.
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id uint64) (*models.Project, error)
	// DeleteProject removes the project with its files, versions, messages
	// and uploads in one step. Deleting a missing project is not an error.
	DeleteProject(ctx context.Context, id uint64) error
}

type FileStore interface {
	CreateFile(ctx context.Context, projectID uint64, path, content, language string) (*models.File, error)
	GetFile(ctx context.Context, id uint64) (*models.File, error)
	// ListFiles returns the project's files ordered by path.
	ListFiles(ctx context.Context, projectID uint64) ([]models.File, error)
	// UpdateFile records the previous content as a FileVersion and then
	// overwrites it. Identical content leaves the file and its history alone.
	UpdateFile(ctx context.Context, id uint64, content string, projectID uint64) (*models.File, error)
	DeleteFile(ctx context.Context, id uint64) error
	// ListFileVersions returns versions most recent first.
	ListFileVersions(ctx context.Context, fileID uint64) ([]models.FileVersion, error)
}

type UploadStore interface {
	CreateUpload(ctx context.Context, projectID uint64, in models.NewUpload) (*models.Upload, error)
	GetUpload(ctx context.Context, id uint64) (*models.Upload, error)
	ListUploads(ctx context.Context, projectID uint64) ([]models.Upload, error)
	DeleteUpload(ctx context.Context, id uint64) error
}

type TemplateStore interface {
	CreateTemplate(ctx context.Context, in models.NewTemplate) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	GetTemplate(ctx context.Context, id uint64) (*models.Template, error)
	DeleteTemplate(ctx context.Context, id uint64) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, projectID uint64, role models.Role, content string) (*models.Message, error)
	// ListMessages returns the transcript oldest first.
	ListMessages(ctx context.Context, projectID uint64) ([]models.Message, error)
}

// Storage is the full persistence surface. Backends are interchangeable.
type Storage interface {
	ProjectStore
	FileStore
	UploadStore
	TemplateStore
	MessageStore
	Close() error
}

// SnapshotVersion builds the version record that preserves f's content
// before it is overwritten.
func SnapshotVersion(f *models.File, projectID uint64, now time.Time) models.FileVersion {
	return models.FileVersion{
		FileID:    f.ID,
		ProjectID: projectID,
		Content:   f.Content,
		Timestamp: now,
	}
}

// FileLanguage returns lang, or the tag derived from path when lang is blank.
func FileLanguage(path, lang string) string {
	if lang = strings.TrimSpace(lang); lang != "" {
		return lang
	}
	return models.LanguageFromPath(path)
}
