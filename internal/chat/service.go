// Package chat runs the prompt pipeline: persist the prompt, generate, persist
// the reply and reconcile the generated files into the project.
package chat

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/suPer8Hu/codegen-ide/internal/common"
	"github.com/suPer8Hu/codegen-ide/internal/events"
	"github.com/suPer8Hu/codegen-ide/internal/generation"
	"github.com/suPer8Hu/codegen-ide/internal/models"
	"github.com/suPer8Hu/codegen-ide/internal/prompt"
	"github.com/suPer8Hu/codegen-ide/internal/reconcile"
	"go.uber.org/zap"
)

// ErrGeneration matches every failed model call surfaced by SendPrompt.
var ErrGeneration = generation.ErrFailed

const (
	MaxPromptLength = 20000

	fallbackReply = "I've updated your code."
)

type Generator interface {
	Generate(ctx context.Context, pc prompt.Context) (generation.Result, error)
}

type Store interface {
	reconcile.Writer
	GetProject(ctx context.Context, id uint64) (*models.Project, error)
	ListFiles(ctx context.Context, projectID uint64) ([]models.File, error)
	CreateMessage(ctx context.Context, projectID uint64, role models.Role, content string) (*models.Message, error)
	ListMessages(ctx context.Context, projectID uint64) ([]models.Message, error)
}

type Service struct {
	store  Store
	gen    Generator
	notify *events.Notifier
	log    *zap.Logger
}

func NewService(s Store, gen Generator, notify *events.Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, gen: gen, notify: notify, log: log}
}

// Reply is what a chat turn produces.
type Reply struct {
	Message        models.Message `json:"message"`
	GeneratedFiles []models.File  `json:"generatedFiles"`
}

type sendPromptReq struct {
	Prompt string `json:"prompt"`
}

// SendPrompt blocks until the model answers. The user message is stored
// before the call and stays even when generation fails. When reconciliation
// stops part way, the reply and the files applied so far come back with the
// error.
func (s *Service) SendPrompt(ctx context.Context, projectID uint64, text string) (*Reply, error) {
	req := sendPromptReq{Prompt: strings.TrimSpace(text)}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Prompt, validation.Required, validation.RuneLength(1, MaxPromptLength)),
	); err != nil {
		return nil, common.FromValidation(err)
	}

	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	// 1) user message first so the prompt is never lost
	userMsg, err := s.store.CreateMessage(ctx, projectID, models.RoleUser, text)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, events.Event{Type: events.MessageCreated, ProjectID: projectID, MessageID: userMsg.ID})

	// 2) build context from the committed files
	files, err := s.store.ListFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	pc := prompt.Build(text, files)

	// 3) one blocking model call
	res, err := s.gen.Generate(ctx, pc)
	if err != nil {
		s.log.Error("generation failed",
			zap.Uint64("project_id", projectID),
			zap.Int("files", len(files)),
			zap.Error(err),
		)
		if !errors.Is(err, ErrGeneration) {
			err = errors.Join(ErrGeneration, err)
		}
		return nil, err
	}

	// 4) assistant message
	reply := strings.TrimSpace(res.Message)
	if reply == "" {
		reply = fallbackReply
	}
	assistantMsg, err := s.store.CreateMessage(ctx, projectID, models.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, events.Event{Type: events.MessageCreated, ProjectID: projectID, MessageID: assistantMsg.ID})

	// 5) reconcile
	applied, applyErr := reconcile.Apply(ctx, s.store, projectID, files, res.Files)
	for _, a := range applied {
		typ := events.FileUpdated
		if a.Created {
			typ = events.FileCreated
		}
		s.notify.Notify(ctx, events.Event{Type: typ, ProjectID: projectID, FileID: a.File.ID, Path: a.File.Path})
	}

	out := &Reply{Message: *assistantMsg, GeneratedFiles: reconcile.Files(applied)}
	if applyErr != nil {
		s.log.Error("reconcile stopped",
			zap.Uint64("project_id", projectID),
			zap.Int("applied", len(applied)),
			zap.Int("edits", len(res.Files)),
			zap.Error(applyErr),
		)
		return out, applyErr
	}
	s.log.Info("prompt handled",
		zap.Uint64("project_id", projectID),
		zap.Int("applied", len(applied)),
	)
	return out, nil
}

// ListMessages returns the transcript oldest first.
func (s *Service) ListMessages(ctx context.Context, projectID uint64) ([]models.Message, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, projectID)
}
