package origin

import (
	"log/slog"

	"github.com/librarianhq/librarian/domain/library"
)

// Factory builds git origin clients from URLs or stored library headers.
type Factory struct {
	logger        *slog.Logger
	defaultBranch string
}

// NewFactory creates an origin factory. defaultBranch is used when a
// library header carries no branch of its own.
func NewFactory(logger *slog.Logger, defaultBranch string) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	return &Factory{logger: logger, defaultBranch: defaultBranch}
}

// FromURL builds a client for a fresh repository URL at the default tag.
func (f *Factory) FromURL(repoURL, accessToken string) (library.OriginClient, error) {
	org, project, err := library.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	return newGitOrigin(f.logger, repoURL, accessToken, f.defaultBranch, library.DefaultTag, org, project), nil
}

// FromLibrary builds a client for an already-registered library at a
// specific tag. Headers without repository backing cannot be re-fetched.
func (f *Factory) FromLibrary(lib library.Library, tag string) (library.OriginClient, error) {
	if !lib.Origin.IsGit() || lib.Origin.RepoURL == "" {
		return nil, library.NewValidationError("missing required repository information for %s", lib.Name())
	}
	branch := lib.Origin.Branch
	if branch == "" {
		branch = f.defaultBranch
	}
	return newGitOrigin(f.logger, lib.Origin.RepoURL, lib.Origin.AccessToken, branch, tag, lib.Org, lib.Project), nil
}

// Ensure Factory implements the domain factory contract.
var _ library.OriginFactory = (*Factory)(nil)
