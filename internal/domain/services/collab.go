package services

import (
	"context"

	"docstore/internal/domain/models"
)

// FolderResolver computes the caller's effective rights on a folder. Folder
// storage and permission records live outside this core; only the resolved
// shape crosses the boundary.
type FolderResolver interface {
	EffectiveRights(ctx context.Context, folderID, userID int64) (models.RightsSet, error)
}

// EventKind labels a change notification.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
)

// EventSink receives change notifications. Publishing is fire-and-forget:
// the store logs failures and never lets them affect the triggering
// operation.
type EventSink interface {
	Publish(ctx context.Context, kind EventKind, doc *models.DocumentMetadata) error
}
