package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"docstore/internal/domain/models"
	"docstore/internal/domain/services"
	"docstore/internal/httputil"
)

// DocumentHandler exposes the document store over HTTP.
type DocumentHandler struct {
	store  services.DocumentStore
	logger *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(store services.DocumentStore, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, logger: logger}
}

// HealthCheck returns 200 OK for load balancer health checks
func (h *DocumentHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func session(r *http.Request) services.Session {
	return services.Session{UserID: httputil.GetUserID(r)}
}

// saveRequest is the metadata payload of create and update calls.
type saveRequest struct {
	FolderID    int64  `json:"folder_id"`
	Title       string `json:"title"`
	FileName    string `json:"file_name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	FileSize    int64  `json:"file_size"`
	MimeType    string `json:"mime_type"`
}

func (req *saveRequest) toModel(id int64) *models.DocumentMetadata {
	return &models.DocumentMetadata{
		ID:          id,
		FolderID:    req.FolderID,
		Title:       req.Title,
		FileName:    req.FileName,
		Description: req.Description,
		URL:         req.URL,
		FileSize:    req.FileSize,
		MimeType:    req.MimeType,
	}
}

// parseSaveBody reads the request body: plain JSON for metadata-only saves,
// multipart/form-data with a "metadata" part followed by a "content" part
// for saves with a payload. The content reader streams straight from the
// wire into the blob store, so the metadata part must come first.
func parseSaveBody(w http.ResponseWriter, r *http.Request) (*saveRequest, io.Reader, func(), error) {
	noop := func() {}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "application/json"
	}

	if mediaType != "multipart/form-data" {
		var req saveRequest
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			return nil, nil, noop, err
		}
		return &req, nil, noop, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, noop, err
	}

	part, err := mr.NextPart()
	if err != nil {
		return nil, nil, noop, errors.New("missing metadata part")
	}
	if part.FormName() != "metadata" {
		part.Close()
		return nil, nil, noop, errors.New("first multipart part must be metadata")
	}

	var req saveRequest
	err = json.NewDecoder(part).Decode(&req)
	part.Close()
	if err != nil {
		return nil, nil, noop, errors.New("invalid metadata JSON")
	}

	content, err := mr.NextPart()
	if err == io.EOF {
		return &req, nil, noop, nil
	}
	if err != nil {
		return nil, nil, noop, err
	}
	if content.FormName() != "content" {
		content.Close()
		return nil, nil, noop, errors.New("second multipart part must be content")
	}

	return &req, content, func() { content.Close() }, nil
}

// CreateDocument handles POST /api/documents
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	req, content, closeBody, err := parseSaveBody(w, r)
	defer closeBody()
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.store.Save(r.Context(), session(r), req.toModel(0), content, 0)
	if err != nil {
		if doc != nil {
			// the metadata exists but the content attach failed; report
			// the partial result so the client can retry the upload
			h.logger.Warn("document created without content", "document_id", doc.ID, "error", err)
			httputil.RespondJSON(w, http.StatusAccepted, doc)
			return
		}
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// UpdateDocument handles PUT /api/documents/{id}?seq=N
func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	seqRaw := r.URL.Query().Get("seq")
	seq, err := strconv.ParseInt(seqRaw, 10, 64)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "seq query parameter is required")
		return
	}

	req, content, closeBody, err := parseSaveBody(w, r)
	defer closeBody()
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.store.Save(r.Context(), session(r), req.toModel(id), content, seq)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// GetDocument handles GET /api/documents/{id}?version=N
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	version, err := queryVersion(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.store.GetMetadata(r.Context(), session(r), id, version)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// GetContent handles GET /api/documents/{id}/content?version=N
func (h *DocumentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	version, err := queryVersion(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.store.GetMetadata(r.Context(), session(r), id, version)
	if err != nil {
		handleError(w, err)
		return
	}

	rc, err := h.store.GetContent(r.Context(), session(r), id, version)
	if err != nil {
		handleError(w, err)
		return
	}
	defer rc.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if doc.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	}
	if doc.FileName != "" {
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	}

	if _, err := io.Copy(w, rc); err != nil {
		// headers are gone; all we can do is log
		h.logger.Warn("content stream aborted", "document_id", id, "error", err)
	}
}

// DeleteDocument handles DELETE /api/documents/{id}?notAfter=N
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	notAfter, err := queryInt64(r, "notAfter", int64(1)<<62)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rejected, err := h.store.Remove(r.Context(), session(r), []int64{id}, notAfter)
	if err != nil {
		handleError(w, err)
		return
	}
	if len(rejected) > 0 {
		httputil.RespondErrorWithExtras(w, http.StatusConflict, "document was not removed",
			map[string]interface{}{"rejected": rejected})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// removeRequest is the payload of batch document removal.
type removeRequest struct {
	IDs      []int64 `json:"ids"`
	NotAfter int64   `json:"not_after"`
}

// RemoveDocuments handles POST /api/documents/remove
func (h *DocumentHandler) RemoveDocuments(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.NotAfter == 0 {
		req.NotAfter = int64(1) << 62
	}

	rejected, err := h.store.Remove(r.Context(), session(r), req.IDs, req.NotAfter)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"rejected": rejected})
}

// ListVersions handles GET /api/documents/{id}/versions
func (h *DocumentHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	versions, err := h.store.ListVersions(r.Context(), session(r), id, listOptions(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, versions)
}

// removeVersionsRequest is the payload of version purging.
type removeVersionsRequest struct {
	Numbers []int `json:"numbers"`
}

// RemoveVersions handles POST /api/documents/{id}/versions/remove
func (h *DocumentHandler) RemoveVersions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req removeVersionsRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	notRemoved, err := h.store.RemoveVersions(r.Context(), session(r), id, req.Numbers)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"not_removed": notRemoved})
}

// LockDocument handles POST /api/documents/{id}/lock?timeout=seconds
func (h *DocumentHandler) LockDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	timeout := models.InfiniteTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds < 0 {
			httputil.RespondError(w, http.StatusBadRequest, "invalid timeout")
			return
		}
		timeout = time.Duration(seconds) * time.Second
	}

	if err := h.store.Lock(r.Context(), session(r), id, timeout); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnlockDocument handles DELETE /api/documents/{id}/lock
func (h *DocumentHandler) UnlockDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Unlock(r.Context(), session(r), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListDocuments handles GET /api/folders/{folderID}/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	folderID, err := pathID(r, "folderID")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := h.store.ListDocuments(r.Context(), session(r), folderID, listOptions(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}

// CountDocuments handles GET /api/folders/{folderID}/documents/count
func (h *DocumentHandler) CountDocuments(w http.ResponseWriter, r *http.Request) {
	folderID, err := pathID(r, "folderID")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.store.CountDocuments(r.Context(), session(r), folderID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]int{"count": count})
}

// FolderEmpty handles GET /api/folders/{folderID}/documents/empty
func (h *DocumentHandler) FolderEmpty(w http.ResponseWriter, r *http.Request) {
	folderID, err := pathID(r, "folderID")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	empty, err := h.store.IsFolderEmpty(r.Context(), session(r), folderID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"empty": empty})
}

// FolderForeignObjects handles GET /api/folders/{folderID}/documents/foreign
func (h *DocumentHandler) FolderForeignObjects(w http.ResponseWriter, r *http.Request) {
	folderID, err := pathID(r, "folderID")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	foreign, err := h.store.ContainsForeignObjects(r.Context(), session(r), folderID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"contains_foreign": foreign})
}

// GetDelta handles GET /api/folders/{folderID}/documents/delta?since=N
func (h *DocumentHandler) GetDelta(w http.ResponseWriter, r *http.Request) {
	folderID, err := pathID(r, "folderID")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	since, err := queryInt64(r, "since", 0)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	delta, err := h.store.Delta(r.Context(), session(r), folderID, since)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, delta)
}

// ClearFolder handles DELETE /api/folders/{folderID}/documents?notAfter=N
func (h *DocumentHandler) ClearFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := pathID(r, "folderID")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	notAfter, err := queryInt64(r, "notAfter", int64(1)<<62)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rejected, err := h.store.RemoveAll(r.Context(), session(r), folderID, notAfter)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"rejected": rejected})
}
