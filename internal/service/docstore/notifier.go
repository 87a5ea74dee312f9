package docstore

import (
	"context"
	"log/slog"

	"docstore/internal/domain/models"
	"docstore/internal/domain/services"
)

// ChangeNotifier pushes create/modify/delete events to the external sink
// after the metadata transaction commits. Notification is best-effort:
// errors and panics are logged and never reach the triggering operation.
type ChangeNotifier struct {
	sink   services.EventSink
	logger *slog.Logger
}

// NewChangeNotifier creates a new change notifier. sink may be nil, which
// disables notifications entirely.
func NewChangeNotifier(sink services.EventSink, logger *slog.Logger) *ChangeNotifier {
	return &ChangeNotifier{sink: sink, logger: logger}
}

// NotifyCreate publishes a created event.
func (n *ChangeNotifier) NotifyCreate(ctx context.Context, doc *models.DocumentMetadata) {
	n.publish(ctx, services.EventCreated, doc)
}

// NotifyModify publishes a modified event.
func (n *ChangeNotifier) NotifyModify(ctx context.Context, doc *models.DocumentMetadata) {
	n.publish(ctx, services.EventModified, doc)
}

// NotifyDelete publishes a deleted event.
func (n *ChangeNotifier) NotifyDelete(ctx context.Context, doc *models.DocumentMetadata) {
	n.publish(ctx, services.EventDeleted, doc)
}

func (n *ChangeNotifier) publish(ctx context.Context, kind services.EventKind, doc *models.DocumentMetadata) {
	if n.sink == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("event sink panicked",
				"kind", kind,
				"document_id", doc.ID,
				"panic", r,
			)
		}
	}()

	if err := n.sink.Publish(ctx, kind, doc); err != nil {
		n.logger.Warn("event notification failed",
			"kind", kind,
			"document_id", doc.ID,
			"error", err,
		)
	}
}

// LogSink is an EventSink that writes events to the structured log. It is
// the default sink until a message broker is wired in.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed event sink
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs the event.
func (s *LogSink) Publish(_ context.Context, kind services.EventKind, doc *models.DocumentMetadata) error {
	s.logger.Info("document event",
		"kind", kind,
		"document_id", doc.ID,
		"folder_id", doc.FolderID,
		"sequence_number", doc.SequenceNumber,
	)
	return nil
}
