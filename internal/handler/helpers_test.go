package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
)

func TestHandleErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("bad input: %w", domain.ErrValidation), http.StatusBadRequest},
		{"not found", fmt.Errorf("document 1: %w", domain.ErrNotFound), http.StatusNotFound},
		{"permission", domain.ErrPermissionDenied, http.StatusForbidden},
		{"conflict sentinel", domain.ErrConflict, http.StatusConflict},
		{"conflict typed", &domain.ConflictError{DocumentID: 1, ExpectedSequence: 2, ActualSequence: 3}, http.StatusConflict},
		{"duplicate filename", &domain.DuplicateFilenameError{FolderID: 1, FileName: "a.txt", DocumentID: 2}, http.StatusConflict},
		{"locked", &domain.LockedError{DocumentID: 1, Owner: 2}, http.StatusLocked},
		{"quota", &domain.QuotaExceededError{Owner: 1, Limit: 10, Used: 10, Requested: 5}, http.StatusInsufficientStorage},
		{"store unavailable", domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"inconsistent", domain.ErrInconsistent, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("content type = %q", ct)
			}
		})
	}
}

func TestListOptionsParsing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/api/folders/1/documents?columns=id,title,%20file_name&sort=last_modified&order=desc", nil)

	opts := listOptions(r)
	if len(opts.Columns) != 3 || opts.Columns[1] != models.FieldTitle || opts.Columns[2] != models.FieldFileName {
		t.Errorf("columns = %v", opts.Columns)
	}
	if opts.SortBy != models.FieldLastModified {
		t.Errorf("sort = %v", opts.SortBy)
	}
	if opts.Order != models.Descending {
		t.Errorf("order = %v", opts.Order)
	}

	plain := listOptions(httptest.NewRequest(http.MethodGet, "/api/folders/1/documents", nil))
	if plain.Columns != nil || plain.Order != models.Ascending {
		t.Errorf("defaults = %+v", plain)
	}
}

func TestQueryVersion(t *testing.T) {
	tests := []struct {
		url  string
		want int
		ok   bool
	}{
		{"/d/1", models.CurrentVersion, true},
		{"/d/1?version=3", 3, true},
		{"/d/1?version=0", 0, true},
		{"/d/1?version=-2", 0, false},
		{"/d/1?version=abc", 0, false},
	}

	for _, tt := range tests {
		got, err := queryVersion(httptest.NewRequest(http.MethodGet, tt.url, nil))
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("queryVersion(%s) = %d, %v, want %d", tt.url, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("queryVersion(%s) succeeded, want error", tt.url)
		}
	}
}
