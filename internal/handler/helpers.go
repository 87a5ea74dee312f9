package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/httputil"
)

// handleError converts domain errors to HTTP responses. Typed errors carry
// their own status code; sentinels are mapped here.
func handleError(w http.ResponseWriter, err error) {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), err.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicateFilename):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLocked):
		httputil.RespondError(w, http.StatusLocked, err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		httputil.RespondError(w, http.StatusInsufficientStorage, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrInconsistent):
		httputil.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID parses the named int64 path segment.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// queryInt64 parses an optional int64 query parameter.
func queryInt64(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

// queryVersion parses the version query parameter; absent means current.
func queryVersion(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return models.CurrentVersion, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid version")
	}
	return v, nil
}

// listOptions parses columns, sort and order query parameters. Column and
// sort names are passed through as-is: the repository whitelists them.
func listOptions(r *http.Request) models.ListOptions {
	q := r.URL.Query()

	var opts models.ListOptions
	if raw := q.Get("columns"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				opts.Columns = append(opts.Columns, models.Field(c))
			}
		}
	}
	opts.SortBy = models.Field(q.Get("sort"))
	if strings.EqualFold(q.Get("order"), "desc") {
		opts.Order = models.Descending
	} else {
		opts.Order = models.Ascending
	}
	return opts
}
