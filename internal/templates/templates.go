// Package templates manages the global starter-template catalogue and applies
// templates to projects.
package templates

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/suPer8Hu/codegen-ide/internal/common"
	"github.com/suPer8Hu/codegen-ide/internal/models"
	"github.com/suPer8Hu/codegen-ide/internal/store"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Store is the slice of storage the catalogue needs.
type Store interface {
	store.TemplateStore
	GetProject(ctx context.Context, id uint64) (*models.Project, error)
}

// FileCreator creates one project file through the regular validated path.
type FileCreator interface {
	CreateFile(ctx context.Context, projectID uint64, in models.NewFile) (*models.File, error)
}

type Service struct {
	store Store
	files FileCreator
	log   *zap.Logger
}

func NewService(s Store, files FileCreator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, files: files, log: log}
}

func (s *Service) List(ctx context.Context) ([]models.Template, error) {
	return s.store.ListTemplates(ctx)
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

func validFile(v any) error {
	f, _ := v.(models.TemplateFile)
	if strings.TrimSpace(f.Path) == "" {
		return validation.NewError("validation_template_path", "path is required")
	}
	if strings.HasSuffix(f.Path, "/") {
		return validation.NewError("validation_template_dir", "path must name a file")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in models.NewTemplate) (*models.Template, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.TrimSpace(in.Type)
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&in.Type, validation.Required, validation.RuneLength(1, 64)),
		validation.Field(&in.Description, validation.RuneLength(0, 1024)),
		validation.Field(&in.Files, validation.Each(validation.By(validFile))),
	); err != nil {
		return nil, common.FromValidation(err)
	}
	for i := range in.Files {
		in.Files[i].Path = strings.TrimSpace(in.Files[i].Path)
		in.Files[i].Language = store.FileLanguage(in.Files[i].Path, in.Files[i].Language)
	}
	return s.store.CreateTemplate(ctx, in)
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	return s.store.DeleteTemplate(ctx, id)
}

// Apply copies every template file into the project, in template order. The
// files created before a failure are returned with the error.
func (s *Service) Apply(ctx context.Context, projectID, templateID uint64) ([]models.File, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	created := make([]models.File, 0, len(t.Files))
	for _, tf := range t.Files {
		f, err := s.files.CreateFile(ctx, projectID, models.NewFile{
			Path:     tf.Path,
			Content:  tf.Content,
			Language: store.FileLanguage(tf.Path, tf.Language),
		})
		if err != nil {
			return created, fmt.Errorf("apply template %d: %s: %w", templateID, tf.Path, err)
		}
		created = append(created, *f)
	}
	s.log.Info("template applied",
		zap.Uint64("project_id", projectID),
		zap.Uint64("template_id", templateID),
		zap.Int("files", len(created)),
	)
	return created, nil
}

type catalogue struct {
	Templates []models.NewTemplate `yaml:"templates"`
}

// Defaults returns the built-in catalogue.
func Defaults() ([]models.NewTemplate, error) {
	var c catalogue
	if err := yaml.Unmarshal(defaultsYAML, &c); err != nil {
		return nil, fmt.Errorf("parse default templates: %w", err)
	}
	return c.Templates, nil
}

// SeedDefaults loads the built-in catalogue when no template exists yet and
// reports how many templates it created.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	existing, err := s.store.ListTemplates(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	defaults, err := Defaults()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range defaults {
		if _, err := s.Create(ctx, t); err != nil {
			s.log.Error("seed template failed", zap.String("name", t.Name), zap.Error(err))
			continue
		}
		s.log.Info("seeded template", zap.String("name", t.Name))
		n++
	}
	return n, nil
}
