package library

import "context"

// OriginKind discriminates the origin variants of a library.
type OriginKind string

// Origin kinds.
const (
	// OriginGit marks a library built from a version-controlled repository.
	OriginGit OriginKind = "git"
	// OriginContent marks a library built from directly submitted files,
	// with no repository backing.
	OriginContent OriginKind = "content"
)

// Origin describes where a library's content came from. It is a tagged
// union: the Git fields are only meaningful when Kind is OriginGit.
type Origin struct {
	Kind               OriginKind
	RepoURL            string
	AccessToken        string
	Branch             string
	LastRevisionMarker string
}

// IsGit reports whether the origin is repository-backed.
func (o Origin) IsGit() bool { return o.Kind == OriginGit }

// OriginClient is the external capability for reaching a library's source.
// Implementations carry their own timeout and retry policy.
type OriginClient interface {
	// CheckAccess reports whether the origin is reachable with the
	// configured credentials.
	CheckAccess(ctx context.Context) bool

	// ListContent returns the content units of the origin at the client's
	// configured reference, keyed by content-unit identifier.
	ListContent(ctx context.Context) (map[string]string, error)

	// LatestRevisionMarker returns an opaque marker for the origin's
	// current revision, or empty if it cannot be determined.
	LatestRevisionMarker(ctx context.Context) (string, error)

	// ListTags returns the origin's version labels, newest first.
	ListTags(ctx context.Context) ([]string, error)

	// Name returns the canonical /org/project name.
	Name() string
	// Title returns a display title for the origin.
	Title() string
	// Description returns a display description for the origin.
	Description() string
}

// OriginFactory constructs origin clients. FromLibrary fails with a
// ValidationError when the header carries no usable repository fields.
type OriginFactory interface {
	FromURL(repoURL, accessToken string) (OriginClient, error)
	FromLibrary(lib Library, tag string) (OriginClient, error)
}
