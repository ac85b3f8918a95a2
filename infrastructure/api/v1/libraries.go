// Package v1 implements the versioned REST API over the library
// coordinator.
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librarianhq/librarian/application/service"
	"github.com/librarianhq/librarian/domain/library"
	"github.com/librarianhq/librarian/infrastructure/api/middleware"
	"github.com/librarianhq/librarian/infrastructure/api/v1/dto"
)

const snippetSeparator = "----------------------------------------"

// LibraryRouter handles the library API endpoints.
type LibraryRouter struct {
	libraries *service.Library
	logger    *slog.Logger
}

// NewLibraryRouter creates a new LibraryRouter.
func NewLibraryRouter(libraries *service.Library, logger *slog.Logger) *LibraryRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LibraryRouter{libraries: libraries, logger: logger}
}

// Routes returns the chi router for library endpoints.
func (r *LibraryRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/search", r.Search)
	router.Post("/", r.Create)
	router.Post("/{org}/{project}/content", r.CreateFromContent)
	router.Get("/{org}/{project}/tags", r.Tags)
	router.Post("/{org}/{project}/tags/{tag}", r.AddTag)
	router.Post("/{org}/{project}/rebuild", r.Rebuild)
	router.Get("/{org}/{project}/meta", r.Meta)
	router.Get("/{org}/{project}", r.Query)
	router.Get("/{org}/{project}/{tag}", r.Query)

	return router
}

// Search handles GET /search: semantic search over the catalog, or a
// paged listing when no query is given.
func (r *LibraryRouter) Search(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query().Get("query")
	limit := queryInt(req, "limit", 10, 1, 100)
	offset := queryInt(req, "offset", 0, 0, 1<<30)

	entries, err := r.libraries.Search(req.Context(), query, limit, offset)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	results := make([]dto.LibrarySearchItem, 0, len(entries))
	for _, e := range entries {
		item := dto.LibrarySearchItem{
			ID:             e.Name(),
			Title:          e.Title,
			Description:    e.Description,
			Branch:         e.Origin.Branch,
			LastUpdateDate: e.LastUpdate.Format(time.RFC3339),
			State:          string(e.State),
			TotalTokens:    e.TotalTokens,
			Versions:       e.Tags,
			LibraryType:    string(e.Origin.Kind),
		}
		if e.Scored {
			score := e.Score
			item.TrustScore = &score
		}
		results = append(results, item)
	}
	middleware.WriteJSON(w, http.StatusOK, dto.SearchResponse{Results: results})
}

// Create handles POST /: register a repository and start building it.
func (r *LibraryRouter) Create(w http.ResponseWriter, req *http.Request) {
	var body dto.RepositoryRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, library.NewValidationError("invalid request body: %v", err), r.logger)
		return
	}
	if body.RepoURL == "" {
		middleware.WriteError(w, req, library.NewValidationError("repoUrl is required"), r.logger)
		return
	}

	if _, err := r.libraries.StartCreateFromRepo(req.Context(), body.RepoURL, body.AccessToken); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteSuccess(w, req, struct{}{}, "")
}

// CreateFromContent handles POST /{org}/{project}/content: build a
// library from directly submitted files.
func (r *LibraryRouter) CreateFromContent(w http.ResponseWriter, req *http.Request) {
	org := chi.URLParam(req, "org")
	project := chi.URLParam(req, "project")

	var body dto.ContentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, library.NewValidationError("invalid request body: %v", err), r.logger)
		return
	}

	_, err := r.libraries.StartCreate(req.Context(), org, project, body.Title, body.Description, body.Files)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteSuccess(w, req, struct{}{}, "Library creation started")
}

// Tags handles GET /{org}/{project}/tags: version labels available at
// the library's origin, newest first.
func (r *LibraryRouter) Tags(w http.ResponseWriter, req *http.Request) {
	tags, err := r.libraries.Tags(req.Context(), requestLibraryID(req))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteSuccess(w, req, tags, "")
}

// AddTag handles POST /{org}/{project}/tags/{tag}: validate and start
// building a new version label.
func (r *LibraryRouter) AddTag(w http.ResponseWriter, req *http.Request) {
	tag := chi.URLParam(req, "tag")
	if err := r.libraries.StartAddTag(req.Context(), requestLibraryID(req), tag); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteSuccess(w, req, struct{}{}, "")
}

// Rebuild handles POST /{org}/{project}/rebuild.
func (r *LibraryRouter) Rebuild(w http.ResponseWriter, req *http.Request) {
	if err := r.libraries.StartRebuild(req.Context(), requestLibraryID(req)); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteSuccess(w, req, struct{}{}, "")
}

// Meta handles GET /{org}/{project}/meta.
func (r *LibraryRouter) Meta(w http.ResponseWriter, req *http.Request) {
	lib, err := r.libraries.Get(req.Context(), requestLibraryID(req))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	detail := dto.LibraryDetail{
		LibraryID:          lib.ID,
		Title:              lib.Title,
		Description:        lib.Description,
		Org:                lib.Org,
		Project:            lib.Project,
		State:              string(lib.State),
		LibraryType:        string(lib.Origin.Kind),
		RepoURL:            lib.Origin.RepoURL,
		Branch:             lib.Origin.Branch,
		LastRevisionMarker: lib.Origin.LastRevisionMarker,
		Tags:               lib.Tags,
		TotalTokens:        lib.TotalTokens,
		ErrorDetail:        lib.ErrorDetail,
		LastUpdate:         lib.LastUpdate.Format(time.RFC3339),
	}
	if detail.Tags == nil {
		detail.Tags = []string{}
	}
	middleware.WriteSuccess(w, req, detail, "")
}

// Query handles GET /{org}/{project} and GET /{org}/{project}/{tag}:
// token-budgeted retrieval rendered as plain text.
func (r *LibraryRouter) Query(w http.ResponseWriter, req *http.Request) {
	tag := chi.URLParam(req, "tag")
	topic := req.URL.Query().Get("topic")
	tokens := queryInt(req, "tokens", service.DefaultQueryTokens, service.MinQueryTokens, service.MaxQueryTokens)

	docs, err := r.libraries.Query(req.Context(), requestLibraryID(req), topic, tokens, tag)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(formatDocuments(docs)))
}

// formatDocuments renders retrieval results in the Context7 plain-text
// format: one block per snippet, separated by a dashed line.
func formatDocuments(docs []library.Document) string {
	if len(docs) == 0 {
		return ""
	}

	var parts []string
	for i, doc := range docs {
		if i > 0 {
			parts = append(parts, snippetSeparator)
		}
		parts = append(parts,
			"",
			"TITLE: "+doc.Title,
			"DESCRIPTION: "+doc.Description,
			"SOURCE: "+doc.Source,
			"",
			"LANGUAGE: "+doc.Language,
			"CODE:",
			"```",
			doc.Code,
			"```",
			"",
		)
	}
	return strings.Join(parts, "\n")
}

func requestLibraryID(req *http.Request) string {
	org := chi.URLParam(req, "org")
	project := chi.URLParam(req, "project")
	return library.DeriveID(library.CanonicalName(org, project))
}

func queryInt(req *http.Request, key string, fallback, min, max int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
