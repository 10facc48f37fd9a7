package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"

	"meddoc/internal/fileutil"
	"meddoc/internal/logging"
	"meddoc/internal/notifications"
	"meddoc/internal/taxonomy"
)

// Notifier delivers operator notifications.
type Notifier interface {
	Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error
}

// Relay forwards bus messages to a Notifier.
type Relay struct {
	notifier Notifier
	root     string
	logger   *slog.Logger
}

// NewRelay builds a relay that renders paths relative to root.
func NewRelay(notifier Notifier, root string, logger *slog.Logger) *Relay {
	if root != "" {
		if resolved, err := fileutil.ResolveRoot(root); err == nil {
			root = resolved
		}
	}
	return &Relay{
		notifier: notifier,
		root:     root,
		logger:   logging.NewComponentLogger(logger, "relay"),
	}
}

// Run delivers messages until msgs is closed or ctx is cancelled.
func (r *Relay) Run(ctx context.Context, msgs <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.deliver(ctx, msg)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, msg Message) {
	event, payload, ok := r.translate(msg)
	if !ok {
		return
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(r.logger, "notification delivery failed", "notification_failed",
			logging.String("kind", msg.Kind()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator was not notified; the draft is still listed by `meddoc records list`"),
		)
	}
}

func (r *Relay) translate(msg Message) (notifications.Event, notifications.Payload, bool) {
	switch m := msg.(type) {
	case DraftCreated:
		return notifications.EventDraftCreated, notifications.Payload{
			"recordID":     strconv.FormatInt(m.RecordID, 10),
			"fileName":     m.FileName,
			"vendor":       m.Vendor,
			"model":        m.Model,
			"docType":      m.DocType,
			"docTypeLabel": taxonomy.DocTypeLabel(m.DocType),
			"summary":      m.Summary,
			"proposedPath": r.relative(m.ProposedPath),
			"confidence":   m.Confidence,
		}, true
	case Confirmed:
		return notifications.EventConfirmed, notifications.Payload{
			"fileName": filepath.Base(m.Path),
			"path":     r.relative(m.Path),
		}, true
	case ClassificationFailed:
		return notifications.EventClassificationFailed, notifications.Payload{
			"fileName": filepath.Base(m.Path),
			"error":    m.Err,
		}, true
	default:
		return "", nil, false
	}
}

func (r *Relay) relative(path string) string {
	if r.root == "" {
		return path
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
