package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/librarianhq/librarian/domain/library"
)

func writeAndDecode(t *testing.T, err error) (int, ErrorEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(w, r, err, slog.Default())

	var envelope ErrorEnvelope
	if decodeErr := json.NewDecoder(w.Body).Decode(&envelope); decodeErr != nil {
		t.Fatalf("decode error envelope: %v", decodeErr)
	}
	return w.Code, envelope
}

func TestWriteError_StatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"validation", library.NewValidationError("bad tag"), http.StatusUnprocessableEntity, "ValidationError"},
		{"not found", library.NewNotFoundError("library not found"), http.StatusNotFound, "NotFoundError"},
		{"already exists", library.NewAlreadyExistsError("duplicate"), http.StatusConflict, "AlreadyExistsError"},
		{"service", library.NewServiceError("embedding", errors.New("down")), http.StatusInternalServerError, "ServiceError"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "InternalError"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, envelope := writeAndDecode(t, tc.err)
			if status != tc.wantStatus {
				t.Errorf("status = %d, want %d", status, tc.wantStatus)
			}
			if envelope.Error != tc.wantKind {
				t.Errorf("kind = %s, want %s", envelope.Error, tc.wantKind)
			}
		})
	}
}

func TestWriteError_MasksInternalDetail(t *testing.T) {
	_, envelope := writeAndDecode(t, errors.New("password=hunter2 leaked"))
	if envelope.Message != "internal server error" {
		t.Errorf("internal error detail must be masked, got %q", envelope.Message)
	}
}

func TestWriteError_KeepsBusinessDetail(t *testing.T) {
	_, envelope := writeAndDecode(t, library.NewValidationError("Tag 'v9' not found for library /acme/docs"))
	if envelope.Message != "Tag 'v9' not found for library /acme/docs" {
		t.Errorf("business error detail should pass through, got %q", envelope.Message)
	}
}

func TestWriteSuccess_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteSuccess(w, r, map[string]string{"k": "v"}, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var envelope SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Message != "Operation successful" {
		t.Errorf("message = %q", envelope.Message)
	}
	if envelope.CreatedAt == "" {
		t.Error("createdAt should be set")
	}
}
