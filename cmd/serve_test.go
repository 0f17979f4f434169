package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

func errorResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- writeError ---

func TestWriteError_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", model.NewValidationError("bad input"), http.StatusBadRequest},
		{"not found", &model.NotFoundError{Entity: "session", ID: "s1"}, http.StatusNotFound},
		{"rejection", &model.QualificationRejected{Reason: "not an owner type: enslaved"}, http.StatusUnprocessableEntity},
		{"upstream", &model.UpstreamFetchError{URL: "https://catalog.archives.gov/id/1", Err: eris.New("timeout")}, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/s1", nil), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.err.Error(), errorResponse(t, rec)["error"])
		})
	}
}

func TestWriteError_InternalDetailStaysInLog(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-42"))
	rec := httptest.NewRecorder()

	writeError(rec, req, &model.PersistenceError{Op: "sqlite: update session", Err: eris.New("disk I/O error")})

	// Callers get a generic message and a correlation id; the detail is
	// log-only.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := errorResponse(t, rec)
	assert.Equal(t, "internal error", body["error"])
	assert.Equal(t, "req-42", body["request_id"])
	assert.NotContains(t, rec.Body.String(), "sqlite")
	assert.NotContains(t, rec.Body.String(), "disk I/O")
}
