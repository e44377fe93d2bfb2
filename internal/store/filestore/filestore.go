// Package filestore keeps all state in one JSON document on local disk.
//
// The whole document is rewritten on every mutation and the call only
// returns after the new document has been synced and renamed into place.
package filestore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/suPer8Hu/codegen-ide/internal/common"
	"github.com/suPer8Hu/codegen-ide/internal/models"
	"github.com/suPer8Hu/codegen-ide/internal/store"
	"gorm.io/datatypes"
)

const fileName = "data.json"

type nextIDs struct {
	Project     uint64 `json:"project"`
	File        uint64 `json:"file"`
	FileVersion uint64 `json:"fileVersion"`
	Upload      uint64 `json:"upload"`
	Template    uint64 `json:"template"`
	Message     uint64 `json:"message"`
}

type document struct {
	Projects     []models.Project     `json:"projects"`
	Files        []models.File        `json:"files"`
	FileVersions []models.FileVersion `json:"fileVersions"`
	Uploads      []models.Upload      `json:"uploads"`
	Templates    []models.Template    `json:"templates"`
	Messages     []models.Message     `json:"messages"`
	NextIDs      nextIDs              `json:"nextIds"`
}

func emptyDocument() document {
	return document{
		Projects:     []models.Project{},
		Files:        []models.File{},
		FileVersions: []models.FileVersion{},
		Uploads:      []models.Upload{},
		Templates:    []models.Template{},
		Messages:     []models.Message{},
		NextIDs:      nextIDs{Project: 1, File: 1, FileVersion: 1, Upload: 1, Template: 1, Message: 1},
	}
}

// clone copies every top-level slice. Entities are values, so this is
// enough to roll back any mutation made through the document.
func (d document) clone() document {
	return document{
		Projects:     slices.Clone(d.Projects),
		Files:        slices.Clone(d.Files),
		FileVersions: slices.Clone(d.FileVersions),
		Uploads:      slices.Clone(d.Uploads),
		Templates:    slices.Clone(d.Templates),
		Messages:     slices.Clone(d.Messages),
		NextIDs:      d.NextIDs,
	}
}

func (d *document) normalize() {
	empty := emptyDocument()
	if d.Projects == nil {
		d.Projects = empty.Projects
	}
	if d.Files == nil {
		d.Files = empty.Files
	}
	if d.FileVersions == nil {
		d.FileVersions = empty.FileVersions
	}
	if d.Uploads == nil {
		d.Uploads = empty.Uploads
	}
	if d.Templates == nil {
		d.Templates = empty.Templates
	}
	if d.Messages == nil {
		d.Messages = empty.Messages
	}
	d.NextIDs.Project = max(d.NextIDs.Project, 1)
	d.NextIDs.File = max(d.NextIDs.File, 1)
	d.NextIDs.FileVersion = max(d.NextIDs.FileVersion, 1)
	d.NextIDs.Upload = max(d.NextIDs.Upload, 1)
	d.NextIDs.Template = max(d.NextIDs.Template, 1)
	d.NextIDs.Message = max(d.NextIDs.Message, 1)
}

type Store struct {
	dir  string
	path string
	now  func() time.Time

	once    sync.Once
	initErr error

	mu  sync.Mutex
	doc document
}

var _ store.Storage = (*Store)(nil)

func New(dir string) *Store {
	return &Store{
		dir:  dir,
		path: filepath.Join(dir, fileName),
		now:  time.Now,
	}
}

// Open creates the store and initialises it.
func Open(dir string) (*Store, error) {
	s := New(dir)
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// Init loads the document, creating the directory and an empty document when
// they do not exist. Only the first call does any work; later calls return
// the first result.
func (s *Store) Init() error {
	s.once.Do(func() {
		s.initErr = s.load()
	})
	return s.initErr
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("filestore: create %s: %w", s.dir, err)
		}
		s.doc = emptyDocument()
		return s.persist()
	}
	if err != nil {
		return fmt.Errorf("filestore: read %s: %w", s.path, err)
	}
	var d document
	if err := json.Unmarshal(b, &d); err != nil {
		return fmt.Errorf("filestore: decode %s: %w", s.path, err)
	}
	d.normalize()
	s.doc = d
	return nil
}

// persist writes the document to a temp file, syncs it and renames it over
// the live file. Callers hold mu.
func (s *Store) persist() error {
	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, fileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filestore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

func (s *Store) read(fn func(d *document) error) error {
	if err := s.Init(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.doc)
}

// mutate applies fn and persists the result. If fn or the write fails the
// in-memory document is put back as it was.
func (s *Store) mutate(fn func(d *document) error) error {
	if err := s.Init(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.doc.clone()
	if err := fn(&s.doc); err != nil {
		s.doc = prev
		return err
	}
	if err := s.persist(); err != nil {
		s.doc = prev
		return err
	}
	return nil
}

func (s *Store) Close() error { return nil }

func hasProject(d *document, id uint64) bool {
	return slices.ContainsFunc(d.Projects, func(p models.Project) bool { return p.ID == id })
}

func requireProject(d *document, id uint64) error {
	if !hasProject(d, id) {
		return common.NotFound("project", id)
	}
	return nil
}

// Projects

func (s *Store) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	var out models.Project
	err := s.mutate(func(d *document) error {
		out = models.Project{ID: d.NextIDs.Project, Name: name, CreatedAt: s.now()}
		d.NextIDs.Project++
		d.Projects = append(d.Projects, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := s.read(func(d *document) error {
		out = slices.Clone(d.Projects)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b models.Project) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) GetProject(ctx context.Context, id uint64) (*models.Project, error) {
	var out *models.Project
	err := s.read(func(d *document) error {
		i := slices.IndexFunc(d.Projects, func(p models.Project) bool { return p.ID == id })
		if i < 0 {
			return common.NotFound("project", id)
		}
		p := d.Projects[i]
		out = &p
		return nil
	})
	return out, err
}

func (s *Store) DeleteProject(ctx context.Context, id uint64) error {
	return s.mutate(func(d *document) error {
		if !hasProject(d, id) {
			return nil
		}
		d.FileVersions = slices.DeleteFunc(d.FileVersions, func(v models.FileVersion) bool { return v.ProjectID == id })
		d.Files = slices.DeleteFunc(d.Files, func(f models.File) bool { return f.ProjectID == id })
		d.Messages = slices.DeleteFunc(d.Messages, func(m models.Message) bool { return m.ProjectID == id })
		d.Uploads = slices.DeleteFunc(d.Uploads, func(u models.Upload) bool { return u.ProjectID == id })
		d.Projects = slices.DeleteFunc(d.Projects, func(p models.Project) bool { return p.ID == id })
		return nil
	})
}

// Files

func (s *Store) CreateFile(ctx context.Context, projectID uint64, path, content, language string) (*models.File, error) {
	var out models.File
	err := s.mutate(func(d *document) error {
		if err := requireProject(d, projectID); err != nil {
			return err
		}
		out = models.File{
			ID:        d.NextIDs.File,
			ProjectID: projectID,
			Path:      path,
			Content:   content,
			Language:  store.FileLanguage(path, language),
			CreatedAt: s.now(),
		}
		d.NextIDs.File++
		d.Files = append(d.Files, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetFile(ctx context.Context, id uint64) (*models.File, error) {
	var out *models.File
	err := s.read(func(d *document) error {
		i := slices.IndexFunc(d.Files, func(f models.File) bool { return f.ID == id })
		if i < 0 {
			return common.NotFound("file", id)
		}
		f := d.Files[i]
		out = &f
		return nil
	})
	return out, err
}

func (s *Store) ListFiles(ctx context.Context, projectID uint64) ([]models.File, error) {
	out := []models.File{}
	err := s.read(func(d *document) error {
		for _, f := range d.Files {
			if f.ProjectID == projectID {
				out = append(out, f)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b models.File) int {
		if c := cmp.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) UpdateFile(ctx context.Context, id uint64, content string, projectID uint64) (*models.File, error) {
	var out models.File
	err := s.mutate(func(d *document) error {
		i := slices.IndexFunc(d.Files, func(f models.File) bool { return f.ID == id })
		if i < 0 || d.Files[i].ProjectID != projectID {
			return common.NotFound("file", id)
		}
		f := &d.Files[i]
		if f.Content != content {
			v := store.SnapshotVersion(f, projectID, s.now())
			v.ID = d.NextIDs.FileVersion
			d.NextIDs.FileVersion++
			d.FileVersions = append(d.FileVersions, v)
			f.Content = content
		}
		out = *f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeleteFile(ctx context.Context, id uint64) error {
	return s.mutate(func(d *document) error {
		n := len(d.Files)
		d.Files = slices.DeleteFunc(d.Files, func(f models.File) bool { return f.ID == id })
		if len(d.Files) == n {
			return common.NotFound("file", id)
		}
		d.FileVersions = slices.DeleteFunc(d.FileVersions, func(v models.FileVersion) bool { return v.FileID == id })
		return nil
	})
}

func (s *Store) ListFileVersions(ctx context.Context, fileID uint64) ([]models.FileVersion, error) {
	out := []models.FileVersion{}
	err := s.read(func(d *document) error {
		for _, v := range d.FileVersions {
			if v.FileID == fileID {
				out = append(out, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b models.FileVersion) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// Uploads

func (s *Store) CreateUpload(ctx context.Context, projectID uint64, in models.NewUpload) (*models.Upload, error) {
	var out models.Upload
	err := s.mutate(func(d *document) error {
		if err := requireProject(d, projectID); err != nil {
			return err
		}
		out = models.Upload{
			ID:         d.NextIDs.Upload,
			ProjectID:  projectID,
			FileName:   in.FileName,
			FileType:   in.FileType,
			FileSize:   in.FileSize,
			FilePath:   in.FilePath,
			UploadedAt: s.now(),
		}
		d.NextIDs.Upload++
		d.Uploads = append(d.Uploads, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetUpload(ctx context.Context, id uint64) (*models.Upload, error) {
	var out *models.Upload
	err := s.read(func(d *document) error {
		i := slices.IndexFunc(d.Uploads, func(u models.Upload) bool { return u.ID == id })
		if i < 0 {
			return common.NotFound("upload", id)
		}
		u := d.Uploads[i]
		out = &u
		return nil
	})
	return out, err
}

func (s *Store) ListUploads(ctx context.Context, projectID uint64) ([]models.Upload, error) {
	out := []models.Upload{}
	err := s.read(func(d *document) error {
		for _, u := range d.Uploads {
			if u.ProjectID == projectID {
				out = append(out, u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b models.Upload) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) DeleteUpload(ctx context.Context, id uint64) error {
	return s.mutate(func(d *document) error {
		n := len(d.Uploads)
		d.Uploads = slices.DeleteFunc(d.Uploads, func(u models.Upload) bool { return u.ID == id })
		if len(d.Uploads) == n {
			return common.NotFound("upload", id)
		}
		return nil
	})
}

// Templates

func (s *Store) CreateTemplate(ctx context.Context, in models.NewTemplate) (*models.Template, error) {
	var out models.Template
	err := s.mutate(func(d *document) error {
		files := slices.Clone(in.Files)
		if files == nil {
			files = []models.TemplateFile{}
		}
		out = models.Template{
			ID:          d.NextIDs.Template,
			Name:        in.Name,
			Type:        in.Type,
			Description: in.Description,
			Files:       datatypes.JSONSlice[models.TemplateFile](files),
			CreatedAt:   s.now(),
		}
		d.NextIDs.Template++
		d.Templates = append(d.Templates, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	var out []models.Template
	err := s.read(func(d *document) error {
		out = slices.Clone(d.Templates)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b models.Template) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) GetTemplate(ctx context.Context, id uint64) (*models.Template, error) {
	var out *models.Template
	err := s.read(func(d *document) error {
		i := slices.IndexFunc(d.Templates, func(t models.Template) bool { return t.ID == id })
		if i < 0 {
			return common.NotFound("template", id)
		}
		t := d.Templates[i]
		out = &t
		return nil
	})
	return out, err
}

func (s *Store) DeleteTemplate(ctx context.Context, id uint64) error {
	return s.mutate(func(d *document) error {
		n := len(d.Templates)
		d.Templates = slices.DeleteFunc(d.Templates, func(t models.Template) bool { return t.ID == id })
		if len(d.Templates) == n {
			return common.NotFound("template", id)
		}
		return nil
	})
}

// Messages

func (s *Store) CreateMessage(ctx context.Context, projectID uint64, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, common.Invalid("role", "must be user or assistant")
	}
	var out models.Message
	err := s.mutate(func(d *document) error {
		if err := requireProject(d, projectID); err != nil {
			return err
		}
		out = models.Message{
			ID:        d.NextIDs.Message,
			ProjectID: projectID,
			Role:      role,
			Content:   content,
			CreatedAt: s.now(),
		}
		d.NextIDs.Message++
		d.Messages = append(d.Messages, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListMessages(ctx context.Context, projectID uint64) ([]models.Message, error) {
	out := []models.Message{}
	err := s.read(func(d *document) error {
		for _, m := range d.Messages {
			if m.ProjectID == projectID {
				out = append(out, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b models.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
