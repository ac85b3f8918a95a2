// Package service coordinates the library lifecycle: validated
// mutations dispatched to background builds, and token-budgeted
// retrieval over the vector index.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/librarianhq/librarian/domain/library"
)

// Query parameter bounds. Requests outside the token range are clamped
// rather than rejected.
const (
	DefaultQueryTokens = 10000
	MinQueryTokens     = 100
	MaxQueryTokens     = 50000

	// DefaultTopic is used when a retrieval request names no topic, so
	// an empty query still ranks snippets instead of failing.
	DefaultTopic = "comprehensive documentation overview"

	// DefaultSearchLimit applies when a caller passes a non-positive
	// catalog search limit.
	DefaultSearchLimit = 35
)

// Library coordinates mutations and retrieval for the catalog. Every
// mutation claims the library's lock slot before its prechecks run, so
// concurrent requests cannot both pass validation.
type Library struct {
	storage    *Storage
	processor  library.Processor
	embedder   library.Embedder
	origins    library.OriginFactory
	dispatcher *Dispatcher
	locks      *LockTable
	logger     *slog.Logger
}

// NewLibrary creates the library coordinator.
func NewLibrary(
	storage *Storage,
	processor library.Processor,
	embedder library.Embedder,
	origins library.OriginFactory,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		storage:    storage,
		processor:  processor,
		embedder:   embedder,
		origins:    origins,
		dispatcher: dispatcher,
		locks:      NewLockTable(),
		logger:     logger,
	}
}

// StartCreateFromRepo validates access to a repository and dispatches a
// background build for it. It returns the derived library ID.
func (s *Library) StartCreateFromRepo(ctx context.Context, repoURL, accessToken string) (string, error) {
	client, err := s.origins.FromURL(repoURL, accessToken)
	if err != nil {
		return "", err
	}
	id := library.DeriveID(client.Name())

	if !s.locks.TryAcquire(id) {
		return "", library.NewValidationError("Library is currently being processed")
	}
	release := true
	defer func() {
		if release {
			s.locks.Release(id)
		}
	}()

	if !client.CheckAccess(ctx) {
		return "", library.NewValidationError("Cannot access repository '%s'", client.Name())
	}
	exists, err := s.storage.Exists(ctx, id)
	if err != nil {
		return "", err
	}
	if exists {
		return "", library.NewAlreadyExistsError("Library '%s' already exists", client.Name())
	}

	org, project, err := library.ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}
	lib := library.Library{
		ID:          id,
		Title:       client.Title(),
		Description: client.Description(),
		Org:         org,
		Project:     project,
		Origin: library.Origin{
			Kind:        library.OriginGit,
			RepoURL:     repoURL,
			AccessToken: accessToken,
		},
	}

	release = false
	s.dispatcher.Dispatch("create "+id, func(ctx context.Context) {
		defer s.locks.Release(id)
		s.build(ctx, lib, client)
	})
	return id, nil
}

// StartCreate dispatches a background build from directly submitted
// files. It returns the derived library ID.
func (s *Library) StartCreate(ctx context.Context, org, project, title, description string, files map[string]string) (string, error) {
	id := library.DeriveID(library.CanonicalName(org, project))

	if !s.locks.TryAcquire(id) {
		return "", library.NewValidationError("Library is currently being processed")
	}
	release := true
	defer func() {
		if release {
			s.locks.Release(id)
		}
	}()

	exists, err := s.storage.Exists(ctx, id)
	if err != nil {
		return "", err
	}
	if exists {
		return "", library.NewAlreadyExistsError("Library already exists")
	}

	lib := library.Library{
		ID:          id,
		Title:       title,
		Description: description,
		Org:         org,
		Project:     project,
		Origin:      library.Origin{Kind: library.OriginContent},
	}

	release = false
	s.dispatcher.Dispatch("create "+id, func(ctx context.Context) {
		defer s.locks.Release(id)
		s.buildFromFiles(ctx, lib, files)
	})
	return id, nil
}

// StartAddTag validates a new version label and dispatches its build.
// A failed tag build never rolls back existing data.
func (s *Library) StartAddTag(ctx context.Context, libraryID, tag string) error {
	if !s.locks.TryAcquire(libraryID) {
		return library.NewValidationError("Library is currently being processed")
	}
	release := true
	defer func() {
		if release {
			s.locks.Release(libraryID)
		}
	}()

	lib, err := s.storage.Get(ctx, libraryID)
	if err != nil {
		return err
	}
	if lib.HasTag(tag) {
		return library.NewValidationError("Tag %s already exists", tag)
	}
	if lib.State == library.StateProcessing {
		return library.NewValidationError("Library is currently being processed")
	}

	client, err := s.origins.FromLibrary(lib, tag)
	if err != nil {
		return err
	}
	if !client.CheckAccess(ctx) {
		return library.NewValidationError("Cannot access repository '%s'", client.Name())
	}
	available, err := client.ListTags(ctx)
	if err != nil {
		return library.NewServiceError("list tags", err)
	}
	if !containsTag(available, tag) {
		return library.NewValidationError("Tag '%s' does not exist in repository '%s'", tag, client.Name())
	}

	release = false
	s.dispatcher.Dispatch(fmt.Sprintf("add_tag %s %s", libraryID, tag), func(ctx context.Context) {
		defer s.locks.Release(libraryID)
		s.addTag(ctx, libraryID, tag, client)
	})
	return nil
}

// StartRebuild validates that the default tag is stale and dispatches a
// rebuild. Rebuilding an unchanged source is rejected.
func (s *Library) StartRebuild(ctx context.Context, libraryID string) error {
	if !s.locks.TryAcquire(libraryID) {
		return library.NewValidationError("Library is currently being processed")
	}
	release := true
	defer func() {
		if release {
			s.locks.Release(libraryID)
		}
	}()

	lib, err := s.storage.Get(ctx, libraryID)
	if err != nil {
		return err
	}
	if !lib.Origin.IsGit() {
		return library.NewValidationError("Cannot rebuild: This library was not created from a Git repository")
	}
	if lib.State == library.StateProcessing {
		return library.NewValidationError("Library is currently being processed")
	}

	client, err := s.origins.FromLibrary(lib, library.DefaultTag)
	if err != nil {
		return err
	}
	if !client.CheckAccess(ctx) {
		return library.NewValidationError("Cannot access repository '%s'", client.Name())
	}
	marker, err := client.LatestRevisionMarker(ctx)
	if err != nil {
		return library.NewServiceError("latest revision", err)
	}
	if marker != "" && marker == lib.Origin.LastRevisionMarker {
		return library.NewValidationError("No changes detected since last build. Rebuild not needed.")
	}

	release = false
	s.dispatcher.Dispatch("rebuild "+libraryID, func(ctx context.Context) {
		defer s.locks.Release(libraryID)
		s.rebuild(ctx, libraryID, client)
	})
	return nil
}

// build runs a full repository-backed creation. Failure deletes the
// partition but keeps the header with the failure recorded.
func (s *Library) build(ctx context.Context, lib library.Library, client library.OriginClient) {
	s.logger.Info("creating library",
		slog.String("library_id", lib.ID),
		slog.String("title", lib.Title),
	)

	emb, err := s.embedder.Embed(ctx, lib.Title+" "+lib.Description)
	if err != nil {
		s.storage.CleanupFailed(ctx, lib.ID, err.Error())
		return
	}
	if err := s.storage.Initialize(ctx, lib, emb.Vector); err != nil {
		s.storage.CleanupFailed(ctx, lib.ID, err.Error())
		return
	}

	files, err := client.ListContent(ctx)
	if err != nil {
		s.storage.CleanupFailed(ctx, lib.ID, err.Error())
		return
	}
	s.logger.Info("collected files", slog.String("library_id", lib.ID), slog.Int("count", len(files)))

	total, count, err := s.processAndStore(ctx, lib.ID, "", files)
	if err != nil {
		s.storage.CleanupFailed(ctx, lib.ID, err.Error())
		return
	}

	marker, err := client.LatestRevisionMarker(ctx)
	if err != nil {
		s.logger.Warn("could not record revision marker",
			slog.String("library_id", lib.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.storage.Complete(ctx, lib.ID, total, marker); err != nil {
		s.storage.CleanupFailed(ctx, lib.ID, err.Error())
		return
	}

	s.logger.Info("library creation completed",
		slog.String("library_id", lib.ID),
		slog.Int("snippets", count),
		slog.Int("tokens", total),
	)
}

// buildFromFiles runs a creation from submitted content.
func (s *Library) buildFromFiles(ctx context.Context, lib library.Library, files map[string]string) {
	s.logger.Info("creating library",
		slog.String("library_id", lib.ID),
		slog.String("title", lib.Title),
	)

	emb, err := s.embedder.Embed(ctx, lib.Title+" "+lib.Description)
	if err != nil {
		s.storage.CleanupFailed(ctx, lib.ID, err.Error())
		return
	}
	if err := s.storage.Initialize(ctx, lib, emb.Vector); err != nil {
		s.storage.CleanupFailed(ctx, lib.ID, err.Error())
		return
	}

	total, count, err := s.processAndStore(ctx, lib.ID, "", files)
	if err != nil {
		s.storage.CleanupFailed(ctx, lib.ID, err.Error())
		return
	}
	if err := s.storage.Complete(ctx, lib.ID, total, ""); err != nil {
		s.storage.CleanupFailed(ctx, lib.ID, err.Error())
		return
	}

	s.logger.Info("library creation completed",
		slog.String("library_id", lib.ID),
		slog.Int("snippets", count),
		slog.Int("tokens", total),
	)
}

// addTag builds one version's snippets next to the existing data. A
// fetch or processing failure restores the finalized state so the
// library keeps serving its previous tags; only a failed header update
// leaves the library failed.
func (s *Library) addTag(ctx context.Context, libraryID, tag string, client library.OriginClient) {
	s.logger.Info("adding tag", slog.String("library_id", libraryID), slog.String("tag", tag))

	if err := s.storage.SetState(ctx, libraryID, library.StateProcessing); err != nil {
		s.logger.Error("failed to mark processing", slog.String("error", err.Error()))
	}

	restore := func(err error) {
		if stateErr := s.storage.SetState(ctx, libraryID, library.StateFinalized); stateErr != nil {
			s.logger.Error("failed to restore finalized state", slog.String("error", stateErr.Error()))
		}
		s.logger.Error("tag build failed, existing tags kept",
			slog.String("library_id", libraryID),
			slog.String("tag", tag),
			slog.String("error", err.Error()),
		)
	}
	fail := func(err error) {
		if markErr := s.storage.MarkFailed(ctx, libraryID, err.Error()); markErr != nil {
			s.logger.Error("failed to record failure", slog.String("error", markErr.Error()))
		}
		s.logger.Error("tag header update failed",
			slog.String("library_id", libraryID),
			slog.String("tag", tag),
			slog.String("error", err.Error()),
		)
	}

	files, err := client.ListContent(ctx)
	if err != nil {
		restore(err)
		return
	}
	total, count, err := s.processAndStore(ctx, libraryID, tag, files)
	if err != nil {
		restore(err)
		return
	}
	if err := s.storage.AppendTag(ctx, libraryID, tag); err != nil {
		fail(err)
		return
	}
	if err := s.storage.CompleteTag(ctx, libraryID, total); err != nil {
		fail(err)
		return
	}

	s.logger.Info("tag added",
		slog.String("library_id", libraryID),
		slog.String("tag", tag),
		slog.Int("documents", count),
		slog.Int("tokens", total),
	)
}

// rebuild replaces the default tag's data. The processing state is set
// eagerly so the header reflects the rebuild before the old data goes.
// Failure keeps other tags intact.
func (s *Library) rebuild(ctx context.Context, libraryID string, client library.OriginClient) {
	s.logger.Info("starting rebuild", slog.String("library_id", libraryID))

	fail := func(err error) {
		if markErr := s.storage.MarkFailed(ctx, libraryID, err.Error()); markErr != nil {
			s.logger.Error("failed to record failure", slog.String("error", markErr.Error()))
		}
		s.logger.Error("rebuild failed",
			slog.String("library_id", libraryID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.storage.SetState(ctx, libraryID, library.StateProcessing); err != nil {
		fail(err)
		return
	}
	if err := s.storage.RemoveTagData(ctx, libraryID, library.DefaultTag); err != nil {
		fail(err)
		return
	}

	files, err := client.ListContent(ctx)
	if err != nil {
		fail(err)
		return
	}
	total, count, err := s.processAndStore(ctx, libraryID, "", files)
	if err != nil {
		fail(err)
		return
	}

	marker, err := client.LatestRevisionMarker(ctx)
	if err != nil {
		s.logger.Warn("could not record revision marker",
			slog.String("library_id", libraryID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.storage.Complete(ctx, libraryID, total, marker); err != nil {
		fail(err)
		return
	}

	s.logger.Info("rebuild completed",
		slog.String("library_id", libraryID),
		slog.Int("snippets", count),
		slog.Int("tokens", total),
	)
}

// processAndStore splits and embeds files, stamps the snippets with tag
// when given, and stores them. It returns total tokens and snippet count.
func (s *Library) processAndStore(ctx context.Context, libraryID, tag string, files map[string]string) (int, int, error) {
	snippets, err := s.processor.Process(ctx, files)
	if err != nil {
		return 0, 0, err
	}
	total := 0
	for i := range snippets {
		if tag != "" {
			snippets[i].Tag = tag
		}
		total += snippets[i].Tokens
	}
	if err := s.storage.SaveSnippets(ctx, libraryID, snippets); err != nil {
		return 0, 0, err
	}
	return total, len(snippets), nil
}

// Query retrieves documents for a topic within one tag of a library,
// trimmed to a token budget. An unknown non-default tag is a validation
// error; a backend failure degrades to an empty result.
func (s *Library) Query(ctx context.Context, libraryID, topic string, tokens int, tag string) ([]library.Document, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if tag == "" {
		tag = library.DefaultTag
	}
	tokens = clampTokens(tokens)

	if tag != library.DefaultTag {
		lib, err := s.storage.Get(ctx, libraryID)
		if err != nil {
			return nil, err
		}
		if !lib.HasTag(tag) {
			return nil, library.NewValidationError("Tag '%s' not found for library %s", tag, lib.Name())
		}
	}

	emb, err := s.embedder.Embed(ctx, topic)
	if err != nil {
		s.logger.Error("query embedding failed",
			slog.String("library_id", libraryID),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	docs, err := s.storage.QuerySnippets(ctx, libraryID, emb.Vector, tag)
	if err != nil {
		s.logger.Error("query failed",
			slog.String("library_id", libraryID),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	budgeted, used := applyTokenBudget(docs, tokens)
	s.logger.Info("query served",
		slog.String("library_id", libraryID),
		slog.String("tag", tag),
		slog.Int("documents", len(budgeted)),
		slog.Int("tokens", used),
	)
	return budgeted, nil
}

// Search searches or lists catalog entries. A backend failure degrades
// to an empty result rather than an error.
func (s *Library) Search(ctx context.Context, query string, limit, offset int) ([]CatalogEntry, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	var vector []float64
	if query != "" {
		emb, err := s.embedder.Embed(ctx, query)
		if err != nil {
			s.logger.Error("search embedding failed", slog.String("error", err.Error()))
			return nil, nil
		}
		vector = emb.Vector
	}

	entries, err := s.storage.SearchCatalog(ctx, vector, limit, offset)
	if err != nil {
		s.logger.Error("catalog search failed", slog.String("error", err.Error()))
		return nil, nil
	}
	return entries, nil
}

// Tags lists the version labels available at the library's origin.
func (s *Library) Tags(ctx context.Context, libraryID string) ([]string, error) {
	lib, err := s.storage.Get(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	if !lib.Origin.IsGit() {
		return nil, library.NewValidationError("Cannot get tags: This library was not created from a Git repository")
	}

	client, err := s.origins.FromLibrary(lib, library.DefaultTag)
	if err != nil {
		return nil, err
	}
	if !client.CheckAccess(ctx) {
		return nil, library.NewValidationError("Cannot access repository '%s'", client.Name())
	}
	tags, err := client.ListTags(ctx)
	if err != nil {
		return nil, library.NewServiceError("list tags", err)
	}
	return tags, nil
}

// Get loads a library header by ID.
func (s *Library) Get(ctx context.Context, libraryID string) (library.Library, error) {
	return s.storage.Get(ctx, libraryID)
}

// Exists reports whether a library's partition exists.
func (s *Library) Exists(ctx context.Context, libraryID string) (bool, error) {
	return s.storage.Exists(ctx, libraryID)
}

// IsProcessing reports whether a mutation is underway, either in this
// process or recorded on the header.
func (s *Library) IsProcessing(ctx context.Context, libraryID string) bool {
	if s.locks.Held(libraryID) {
		return true
	}
	return s.storage.IsProcessing(ctx, libraryID)
}

// applyTokenBudget keeps documents in rank order until the next one
// would overflow the budget, then stops. The first overflowing document
// ends the scan even if a later, smaller one would still fit.
func applyTokenBudget(docs []library.Document, budget int) ([]library.Document, int) {
	kept := make([]library.Document, 0, len(docs))
	used := 0
	for _, doc := range docs {
		if used+doc.Tokens > budget {
			break
		}
		kept = append(kept, doc)
		used += doc.Tokens
	}
	return kept, used
}

func clampTokens(tokens int) int {
	switch {
	case tokens <= 0:
		return DefaultQueryTokens
	case tokens < MinQueryTokens:
		return MinQueryTokens
	case tokens > MaxQueryTokens:
		return MaxQueryTokens
	}
	return tokens
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
