// Package project implements project, file and upload operations and the
// project snapshot read model.
package project

import (
	"context"
	"path"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/suPer8Hu/codegen-ide/internal/common"
	"github.com/suPer8Hu/codegen-ide/internal/events"
	"github.com/suPer8Hu/codegen-ide/internal/models"
	"github.com/suPer8Hu/codegen-ide/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	MaxNameLength = 255
	MaxPathLength = 512
	SuggestLimit  = 5

	defaultIndexPath = "index.html"
	defaultIndexHTML = "<!DOCTYPE html>\n<html>\n<head>\n<title>My App</title>\n</head>\n<body>\n<h1>Hello World</h1>\n</body>\n</html>"
)

type Service struct {
	store  store.Storage
	notify *events.Notifier
	log    *zap.Logger
}

func NewService(s store.Storage, notify *events.Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, notify: notify, log: log}
}

// Snapshot is the whole state a project view hydrates from.
type Snapshot struct {
	models.Project
	Files    []models.File    `json:"files"`
	Messages []models.Message `json:"messages"`
	Uploads  []models.Upload  `json:"uploads"`
}

type createProjectReq struct {
	Name string `json:"name"`
}

// CreateProject creates the project together with a starter index.html.
func (s *Service) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	req := createProjectReq{Name: strings.TrimSpace(name)}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, MaxNameLength)),
	); err != nil {
		return nil, common.FromValidation(err)
	}

	p, err := s.store.CreateProject(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, events.Event{Type: events.ProjectCreated, ProjectID: p.ID})

	if _, err := s.CreateFile(ctx, p.ID, models.NewFile{
		Path:     defaultIndexPath,
		Content:  defaultIndexHTML,
		Language: "html",
	}); err != nil {
		// no half-made project is left behind
		if derr := s.DeleteProject(context.WithoutCancel(ctx), p.ID); derr != nil {
			s.log.Error("drop project after failed create",
				zap.Uint64("project_id", p.ID), zap.Error(derr))
		}
		return nil, err
	}
	s.log.Info("project created", zap.Uint64("project_id", p.ID))
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id uint64) (*models.Project, error) {
	return s.store.GetProject(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.store.ListProjects(ctx)
}

// DeleteProject is idempotent.
func (s *Service) DeleteProject(ctx context.Context, id uint64) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.notify.Notify(ctx, events.Event{Type: events.ProjectDeleted, ProjectID: id})
	return nil
}

// Snapshot reads the project and then its files, messages and uploads in
// parallel, always from storage.
func (s *Service) Snapshot(ctx context.Context, id uint64) (*Snapshot, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Project: *p}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		files, err := s.store.ListFiles(gctx, id)
		snap.Files = files
		return err
	})
	g.Go(func() error {
		msgs, err := s.store.ListMessages(gctx, id)
		snap.Messages = msgs
		return err
	})
	g.Go(func() error {
		uploads, err := s.store.ListUploads(gctx, id)
		snap.Uploads = uploads
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Files

func validPath(v any) error {
	p, _ := v.(string)
	if strings.ContainsRune(p, 0) {
		return validation.NewError("validation_path_nul", "must not contain NUL bytes")
	}
	if strings.HasSuffix(p, "/") {
		return validation.NewError("validation_path_dir", "must name a file, not a directory")
	}
	return nil
}

func (s *Service) CreateFile(ctx context.Context, projectID uint64, in models.NewFile) (*models.File, error) {
	in.Path = strings.TrimSpace(in.Path)
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Path, validation.Required, validation.RuneLength(1, MaxPathLength), validation.By(validPath)),
		validation.Field(&in.Language, validation.Length(0, models.MaxLanguageLength)),
	); err != nil {
		return nil, common.FromValidation(err)
	}
	f, err := s.store.CreateFile(ctx, projectID, in.Path, in.Content, in.Language)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, events.Event{Type: events.FileCreated, ProjectID: projectID, FileID: f.ID, Path: f.Path})
	return f, nil
}

func (s *Service) ListFiles(ctx context.Context, projectID uint64) ([]models.File, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListFiles(ctx, projectID)
}

// UpdateFile resolves the owning project so the version is recorded against it.
func (s *Service) UpdateFile(ctx context.Context, id uint64, content string) (*models.File, error) {
	cur, err := s.store.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := s.store.UpdateFile(ctx, id, content, cur.ProjectID)
	if err != nil {
		return nil, err
	}
	if cur.Content != content {
		s.notify.Notify(ctx, events.Event{Type: events.FileUpdated, ProjectID: f.ProjectID, FileID: f.ID, Path: f.Path})
	}
	return f, nil
}

func (s *Service) DeleteFile(ctx context.Context, id uint64) error {
	cur, err := s.store.GetFile(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFile(ctx, id); err != nil {
		return err
	}
	s.notify.Notify(ctx, events.Event{Type: events.FileDeleted, ProjectID: cur.ProjectID, FileID: id, Path: cur.Path})
	return nil
}

func (s *Service) ListVersions(ctx context.Context, fileID uint64) ([]models.FileVersion, error) {
	if _, err := s.store.GetFile(ctx, fileID); err != nil {
		return nil, err
	}
	return s.store.ListFileVersions(ctx, fileID)
}

// SuggestFiles matches query against file paths, ignoring case.
func (s *Service) SuggestFiles(ctx context.Context, projectID uint64, query string) ([]models.File, error) {
	files, err := s.ListFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.File, 0, SuggestLimit)
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Path), q) {
			out = append(out, f)
			if len(out) == SuggestLimit {
				break
			}
		}
	}
	return out, nil
}

// Uploads

func (s *Service) CreateUpload(ctx context.Context, projectID uint64, in models.NewUpload) (*models.Upload, error) {
	in.FileName = strings.TrimSpace(in.FileName)
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.FileName, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&in.FileType, validation.RuneLength(0, 128)),
		validation.Field(&in.FileSize, validation.Min(int64(0))),
		validation.Field(&in.FilePath, validation.RuneLength(0, 1024)),
	); err != nil {
		return nil, common.FromValidation(err)
	}
	if in.FileType == "" {
		in.FileType = "application/octet-stream"
	}
	if in.FilePath == "" {
		in.FilePath = UploadPath(projectID, in.FileName)
	}
	u, err := s.store.CreateUpload(ctx, projectID, in)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, events.Event{Type: events.UploadCreated, ProjectID: projectID, UploadID: u.ID})
	return u, nil
}

func (s *Service) ListUploads(ctx context.Context, projectID uint64) ([]models.Upload, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListUploads(ctx, projectID)
}

func (s *Service) GetUpload(ctx context.Context, id uint64) (*models.Upload, error) {
	return s.store.GetUpload(ctx, id)
}

func (s *Service) DeleteUpload(ctx context.Context, id uint64) error {
	u, err := s.store.GetUpload(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUpload(ctx, id); err != nil {
		return err
	}
	s.notify.Notify(ctx, events.Event{Type: events.UploadDeleted, ProjectID: u.ProjectID, UploadID: id})
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeName(name string) string {
	n := unsafeName.ReplaceAllString(path.Base(strings.ReplaceAll(name, `\`, "/")), "_")
	n = strings.Trim(n, "._")
	if n == "" {
		return "file"
	}
	return n
}

// UploadPath is the storage key for a new upload: a fresh uuid directory per
// upload so equal file names never collide.
func UploadPath(projectID uint64, fileName string) string {
	return path.Join("uploads", strconv.FormatUint(projectID, 10), uuid.NewString(), safeName(fileName))
}
