// Package gormstore is the relational storage backend.
package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/codegen-ide/internal/common"
	"github.com/suPer8Hu/codegen-ide/internal/db"
	"github.com/suPer8Hu/codegen-ide/internal/models"
	"github.com/suPer8Hu/codegen-ide/internal/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

var _ store.Storage = (*Store)(nil)

func New(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	gdb, err := db.Connect(dsn)
	if err != nil {
		return nil, err
	}
	return New(gdb), nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(resource string, id uint64, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NotFound(resource, id)
	}
	return err
}

func requireProject(tx *gorm.DB, id uint64) error {
	var p models.Project
	if err := tx.Select("id").First(&p, id).Error; err != nil {
		return notFound("project", id, err)
	}
	return nil
}

// Projects

func (s *Store) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	p := &models.Project{Name: name}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	projects := []models.Project{}
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *Store) GetProject(ctx context.Context, id uint64) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound("project", id, err)
	}
	return &p, nil
}

func (s *Store) DeleteProject(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// children first so foreign keys hold at every step
		for _, m := range []any{&models.FileVersion{}, &models.File{}, &models.Message{}, &models.Upload{}} {
			if err := tx.Where("project_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Project{}, id).Error
	})
}

// Files

func (s *Store) CreateFile(ctx context.Context, projectID uint64, path, content, language string) (*models.File, error) {
	f := &models.File{
		ProjectID: projectID,
		Path:      path,
		Content:   content,
		Language:  store.FileLanguage(path, language),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProject(tx, projectID); err != nil {
			return err
		}
		return tx.Create(f).Error
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) GetFile(ctx context.Context, id uint64) (*models.File, error) {
	var f models.File
	if err := s.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, notFound("file", id, err)
	}
	return &f, nil
}

func (s *Store) ListFiles(ctx context.Context, projectID uint64) ([]models.File, error) {
	files := []models.File{}
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("path ASC").Order("id ASC").
		Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Store) UpdateFile(ctx context.Context, id uint64, content string, projectID uint64) (*models.File, error) {
	var f models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&f, id).Error; err != nil {
			return notFound("file", id, err)
		}
		if f.ProjectID != projectID {
			return common.NotFound("file", id)
		}
		if f.Content == content {
			return nil
		}
		v := store.SnapshotVersion(&f, projectID, time.Now())
		if err := tx.Create(&v).Error; err != nil {
			return err
		}
		if err := tx.Model(&f).Update("content", content).Error; err != nil {
			return err
		}
		f.Content = content
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) DeleteFile(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", id).Delete(&models.FileVersion{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.File{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.NotFound("file", id)
		}
		return nil
	})
}

func (s *Store) ListFileVersions(ctx context.Context, fileID uint64) ([]models.FileVersion, error) {
	versions := []models.FileVersion{}
	if err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at DESC").Order("id DESC").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// Uploads

func (s *Store) CreateUpload(ctx context.Context, projectID uint64, in models.NewUpload) (*models.Upload, error) {
	u := &models.Upload{
		ProjectID:  projectID,
		FileName:   in.FileName,
		FileType:   in.FileType,
		FileSize:   in.FileSize,
		FilePath:   in.FilePath,
		UploadedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProject(tx, projectID); err != nil {
			return err
		}
		return tx.Create(u).Error
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) GetUpload(ctx context.Context, id uint64) (*models.Upload, error) {
	var u models.Upload
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound("upload", id, err)
	}
	return &u, nil
}

func (s *Store) ListUploads(ctx context.Context, projectID uint64) ([]models.Upload, error) {
	uploads := []models.Upload{}
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("uploaded_at DESC").Order("id DESC").
		Find(&uploads).Error; err != nil {
		return nil, err
	}
	return uploads, nil
}

func (s *Store) DeleteUpload(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&models.Upload{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NotFound("upload", id)
	}
	return nil
}

// Templates

func (s *Store) CreateTemplate(ctx context.Context, in models.NewTemplate) (*models.Template, error) {
	files := in.Files
	if files == nil {
		files = []models.TemplateFile{}
	}
	t := &models.Template{
		Name:        in.Name,
		Type:        in.Type,
		Description: in.Description,
		Files:       datatypes.JSONSlice[models.TemplateFile](files),
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	templates := []models.Template{}
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

func (s *Store) GetTemplate(ctx context.Context, id uint64) (*models.Template, error) {
	var t models.Template
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound("template", id, err)
	}
	return &t, nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&models.Template{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NotFound("template", id)
	}
	return nil
}

// Messages

func (s *Store) CreateMessage(ctx context.Context, projectID uint64, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, common.Invalid("role", "must be user or assistant")
	}
	m := &models.Message{ProjectID: projectID, Role: role, Content: content}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProject(tx, projectID); err != nil {
			return err
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, projectID uint64) ([]models.Message, error) {
	msgs := []models.Message{}
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
