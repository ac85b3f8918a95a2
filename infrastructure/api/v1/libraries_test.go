package v1_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/librarianhq/librarian/application/service"
	"github.com/librarianhq/librarian/domain/library"
	v1 "github.com/librarianhq/librarian/infrastructure/api/v1"
	"github.com/librarianhq/librarian/infrastructure/api/v1/dto"
	"github.com/librarianhq/librarian/infrastructure/index"
	"github.com/librarianhq/librarian/internal/database"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) (library.Embedding, error) {
	return library.Embedding{Vector: []float64{1, 0}, Tokens: 3}, nil
}

func (stubEmbedder) Dimension() int { return 2 }

type stubProcessor struct {
	snippets []library.Snippet
}

func (s stubProcessor) Process(_ context.Context, _ map[string]string) ([]library.Snippet, error) {
	return s.snippets, nil
}

type stubFactory struct{}

func (stubFactory) FromURL(_, _ string) (library.OriginClient, error) {
	return nil, library.NewValidationError("repositories not reachable in tests")
}

func (stubFactory) FromLibrary(_ library.Library, _ string) (library.OriginClient, error) {
	return nil, library.NewValidationError("repositories not reachable in tests")
}

type harness struct {
	storage    *service.Storage
	libraries  *service.Library
	dispatcher *service.Dispatcher
	routes     http.Handler
}

func newHarness(t *testing.T, snippets []library.Snippet) *harness {
	t.Helper()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.NewDatabase(ctx, "sqlite:///"+dbPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := index.NewStore(db, slog.Default())
	if err != nil {
		t.Fatalf("create index: %v", err)
	}

	storage := service.NewStorage(store, 2, slog.Default())
	dispatcher := service.NewDispatcher(slog.Default())
	libraries := service.NewLibrary(
		storage,
		stubProcessor{snippets: snippets},
		stubEmbedder{},
		stubFactory{},
		dispatcher,
		slog.Default(),
	)

	return &harness{
		storage:    storage,
		libraries:  libraries,
		dispatcher: dispatcher,
		routes:     v1.NewLibraryRouter(libraries, slog.Default()).Routes(),
	}
}

func (h *harness) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.routes.ServeHTTP(w, req)
	return w
}

func (h *harness) waitForBuilds(t *testing.T) {
	t.Helper()
	if err := h.dispatcher.Shutdown(context.Background()); err != nil {
		t.Fatalf("wait for builds: %v", err)
	}
}

func TestCreateFromContent_BuildsAndServes(t *testing.T) {
	h := newHarness(t, []library.Snippet{
		{
			Title:       "Install",
			Description: "Setup instructions",
			Source:      "readme.md#snippet_1",
			Language:    "bash",
			Code:        "npm install mylib",
			Tokens:      40,
			Vector:      []float64{1, 0},
		},
	})

	w := h.do(t, http.MethodPost, "/acme/docs/content",
		`{"title": "Docs", "description": "Acme docs", "files": {"readme.md": "# Docs"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	h.waitForBuilds(t)

	// Metadata reflects the finished build.
	w = h.do(t, http.MethodGet, "/acme/docs/meta", "")
	if w.Code != http.StatusOK {
		t.Fatalf("meta status = %d", w.Code)
	}
	var meta struct {
		Data dto.LibraryDetail `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&meta); err != nil {
		t.Fatal(err)
	}
	if meta.Data.State != string(library.StateFinalized) {
		t.Errorf("state = %s, want finalized", meta.Data.State)
	}
	if meta.Data.TotalTokens != 40 {
		t.Errorf("total tokens = %d, want 40", meta.Data.TotalTokens)
	}

	// Retrieval returns the Context7 plain-text format.
	w = h.do(t, http.MethodGet, "/acme/docs?topic=install", "")
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %s, want text/plain", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"TITLE: Install", "SOURCE: readme.md#snippet_1", "LANGUAGE: bash", "npm install mylib"} {
		if !strings.Contains(body, want) {
			t.Errorf("response missing %q:\n%s", want, body)
		}
	}
}

func TestCreateFromContent_Conflict(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/acme/docs/content",
		`{"title": "Docs", "description": "d", "files": {}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("first create status = %d", w.Code)
	}
	h.waitForBuilds(t)

	w = h.do(t, http.MethodPost, "/acme/docs/content",
		`{"title": "Docs", "description": "d", "files": {}}`)
	if w.Code != http.StatusConflict {
		t.Errorf("second create status = %d, want 409", w.Code)
	}
}

func TestCreate_MissingRepoURL(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/", `{"accessToken": "tok"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestQuery_UnknownLibrary(t *testing.T) {
	h := newHarness(t, nil)

	// The header lookup only happens for non-default tags; an unknown
	// library with an explicit tag surfaces as not found.
	w := h.do(t, http.MethodGet, "/ghost/lib/v1.0", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestQuery_EmptyLibraryReturnsEmptyBody(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/acme/docs/content",
		`{"title": "Docs", "description": "d", "files": {}}`)
	if w.Code != http.StatusOK {
		t.Fatal("create failed")
	}
	h.waitForBuilds(t)

	w = h.do(t, http.MethodGet, "/acme/docs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestSearch_ListsLibraries(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/acme/docs/content",
		`{"title": "Acme Docs", "description": "d", "files": {}}`)
	if w.Code != http.StatusOK {
		t.Fatal("create failed")
	}
	h.waitForBuilds(t)

	w = h.do(t, http.MethodGet, "/search", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var response dto.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatal(err)
	}
	if len(response.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(response.Results))
	}
	item := response.Results[0]
	if item.ID != "/acme/docs" {
		t.Errorf("id = %s, want /acme/docs", item.ID)
	}
	if item.TrustScore != nil {
		t.Error("listing must not carry trust scores")
	}

	// Semantic search carries scores.
	w = h.do(t, http.MethodGet, "/search?query=acme", "")
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatal(err)
	}
	if len(response.Results) != 1 {
		t.Fatalf("search results = %d, want 1", len(response.Results))
	}
	if response.Results[0].TrustScore == nil {
		t.Error("semantic search results must carry trust scores")
	}
}

func TestTags_NotARepository(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/acme/docs/content",
		`{"title": "Docs", "description": "d", "files": {}}`)
	if w.Code != http.StatusOK {
		t.Fatal("create failed")
	}
	h.waitForBuilds(t)

	w = h.do(t, http.MethodGet, "/acme/docs/tags", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestRebuild_NotARepository(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/acme/docs/content",
		`{"title": "Docs", "description": "d", "files": {}}`)
	if w.Code != http.StatusOK {
		t.Fatal("create failed")
	}
	h.waitForBuilds(t)

	w = h.do(t, http.MethodPost, "/acme/docs/rebuild", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}
