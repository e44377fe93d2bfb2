// Package events carries project change notifications to connected views.
// Delivery is best-effort: a slow or failed consumer never fails the
// mutation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Type string

const (
	ProjectCreated Type = "project.created"
	ProjectDeleted Type = "project.deleted"
	FileCreated    Type = "file.created"
	FileUpdated    Type = "file.updated"
	FileDeleted    Type = "file.deleted"
	MessageCreated Type = "message.created"
	UploadCreated  Type = "upload.created"
	UploadDeleted  Type = "upload.deleted"
)

type Event struct {
	Type      Type      `json:"type"`
	ProjectID uint64    `json:"projectId"`
	FileID    uint64    `json:"fileId,omitempty"`
	MessageID uint64    `json:"messageId,omitempty"`
	UploadID  uint64    `json:"uploadId,omitempty"`
	Path      string    `json:"path,omitempty"`
	At        time.Time `json:"at"`
}

func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }

func Unmarshal(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" || e.ProjectID == 0 {
		return Event{}, errors.New("events: missing type or project id")
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notifier is what services hold. It stamps the event time and logs
// publish failures instead of returning them.
type Notifier struct {
	pub Publisher
	log *zap.Logger
	now func() time.Time
}

func NewNotifier(pub Publisher, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{pub: pub, log: log, now: time.Now}
}

func (n *Notifier) Notify(ctx context.Context, e Event) {
	if n == nil || n.pub == nil {
		return
	}
	if e.At.IsZero() {
		e.At = n.now().UTC()
	}
	if err := n.pub.Publish(ctx, e); err != nil {
		n.log.Warn("publish event failed",
			zap.String("type", string(e.Type)),
			zap.Uint64("project_id", e.ProjectID),
			zap.Error(err),
		)
	}
}
