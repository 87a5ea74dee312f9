package docstore

import (
	"context"
	"fmt"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/services"
)

// PermissionGate resolves the caller's effective rights before any mutation
// touches the action pipeline. Folder rights come from the external
// resolver; the document dimension (own vs. foreign objects) is computed
// here with pure functions on the RightsSet.
type PermissionGate struct {
	resolver services.FolderResolver
}

// NewPermissionGate creates a new permission gate
func NewPermissionGate(resolver services.FolderResolver) *PermissionGate {
	return &PermissionGate{resolver: resolver}
}

// Rights returns the caller's effective rights on a folder.
func (g *PermissionGate) Rights(ctx context.Context, folderID, userID int64) (models.RightsSet, error) {
	rights, err := g.resolver.EffectiveRights(ctx, folderID, userID)
	if err != nil {
		return models.RightsSet{}, fmt.Errorf("resolve folder rights: %w", err)
	}
	return rights, nil
}

// RequireRead fails with ErrPermissionDenied unless the caller may read the
// document.
func (g *PermissionGate) RequireRead(ctx context.Context, doc *models.DocumentMetadata, userID int64) (models.RightsSet, error) {
	rights, err := g.Rights(ctx, doc.FolderID, userID)
	if err != nil {
		return rights, err
	}
	if !rights.Visible || !rights.CanReadDocument(doc.CreatedBy, userID) {
		return rights, fmt.Errorf("read document %d: %w", doc.ID, domain.ErrPermissionDenied)
	}
	return rights, nil
}

// RequireWrite fails with ErrPermissionDenied unless the caller may modify
// the document.
func (g *PermissionGate) RequireWrite(ctx context.Context, doc *models.DocumentMetadata, userID int64) (models.RightsSet, error) {
	rights, err := g.Rights(ctx, doc.FolderID, userID)
	if err != nil {
		return rights, err
	}
	if !rights.Visible || !rights.CanWriteDocument(doc.CreatedBy, userID) {
		return rights, fmt.Errorf("write document %d: %w", doc.ID, domain.ErrPermissionDenied)
	}
	return rights, nil
}

// RequireDelete fails with ErrPermissionDenied unless the caller may delete
// the document.
func (g *PermissionGate) RequireDelete(ctx context.Context, doc *models.DocumentMetadata, userID int64) (models.RightsSet, error) {
	rights, err := g.Rights(ctx, doc.FolderID, userID)
	if err != nil {
		return rights, err
	}
	if !rights.Visible || !rights.CanDeleteDocument(doc.CreatedBy, userID) {
		return rights, fmt.Errorf("delete document %d: %w", doc.ID, domain.ErrPermissionDenied)
	}
	return rights, nil
}

// RequireCreate fails with ErrPermissionDenied unless the caller may create
// objects in the folder.
func (g *PermissionGate) RequireCreate(ctx context.Context, folderID, userID int64) (models.RightsSet, error) {
	rights, err := g.Rights(ctx, folderID, userID)
	if err != nil {
		return rights, err
	}
	if !rights.Visible || !rights.CanCreate {
		return rights, fmt.Errorf("create in folder %d: %w", folderID, domain.ErrPermissionDenied)
	}
	return rights, nil
}
