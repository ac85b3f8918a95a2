// Package origin provides repository-backed origin clients. The git
// implementation clones documentation sources with go-git and never
// shells out to a git binary.
package origin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/librarianhq/librarian/domain/library"
)

// maxContentBytes caps the size of a single documentation file. Larger
// files are skipped rather than fed to the splitter.
const maxContentBytes = 1 << 20

// GitOrigin reads documentation content from a git repository over HTTP.
// The zero value is not usable; construct through the Factory.
type GitOrigin struct {
	logger      *slog.Logger
	repoURL     string
	accessToken string
	branch      string
	tag         string
	org         string
	project     string
}

func newGitOrigin(logger *slog.Logger, repoURL, accessToken, branch, tag, org, project string) *GitOrigin {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitOrigin{
		logger:      logger,
		repoURL:     repoURL,
		accessToken: accessToken,
		branch:      branch,
		tag:         tag,
		org:         org,
		project:     project,
	}
}

// Name returns the canonical /org/project name.
func (g *GitOrigin) Name() string { return library.CanonicalName(g.org, g.project) }

// Title returns a display title derived from the project name.
func (g *GitOrigin) Title() string { return g.project }

// Description returns a display description for the origin.
func (g *GitOrigin) Description() string {
	return fmt.Sprintf("Documentation for %s", g.Name())
}

// CheckAccess reports whether the remote is reachable with the
// configured credentials. It lists remote refs without cloning.
func (g *GitOrigin) CheckAccess(ctx context.Context) bool {
	_, err := g.listRemoteRefs(ctx)
	if err != nil {
		g.logger.Warn("repository not accessible",
			slog.String("url", g.repoURL),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// LatestRevisionMarker returns the commit hash the configured branch
// currently points at, or empty when it cannot be determined.
func (g *GitOrigin) LatestRevisionMarker(ctx context.Context) (string, error) {
	refs, err := g.listRemoteRefs(ctx)
	if err != nil {
		return "", fmt.Errorf("list remote refs: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(g.branch)
	var headHash string
	for _, ref := range refs {
		if ref.Name() == branchRef {
			return ref.Hash().String(), nil
		}
		if ref.Name() == plumbing.HEAD && !ref.Hash().IsZero() {
			headHash = ref.Hash().String()
		}
	}
	return headHash, nil
}

// ListTags returns the remote's tag names, newest first under the
// catalog's reverse-lexicographic ordering.
func (g *GitOrigin) ListTags(ctx context.Context) ([]string, error) {
	refs, err := g.listRemoteRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote refs: %w", err)
	}

	var tags []string
	for _, ref := range refs {
		if ref.Name().IsTag() {
			tags = append(tags, ref.Name().Short())
		}
	}
	library.SortTags(tags)
	return tags, nil
}

// ListContent clones the repository at the configured reference and
// returns its documentation files keyed by blob URL.
func (g *GitOrigin) ListContent(ctx context.Context) (map[string]string, error) {
	dir, err := os.MkdirTemp("", "librarian-clone-*")
	if err != nil {
		return nil, fmt.Errorf("create clone directory: %w", err)
	}
	defer os.RemoveAll(dir)

	opts := &gogit.CloneOptions{
		URL:          g.repoURL,
		Auth:         g.auth(),
		Depth:        1,
		SingleBranch: true,
		Progress:     nil,
	}
	if g.tag != library.DefaultTag {
		opts.ReferenceName = plumbing.NewTagReferenceName(g.tag)
	} else if g.branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(g.branch)
	}

	g.logger.Info("cloning repository",
		slog.String("url", g.repoURL),
		slog.String("ref", opts.ReferenceName.String()),
	)

	repo, err := gogit.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		// A missing branch ref is common for repos whose default branch
		// differs from the configured one; retry at the remote HEAD.
		if g.tag == library.DefaultTag && opts.ReferenceName != "" {
			opts.ReferenceName = ""
			repo, err = gogit.PlainCloneContext(ctx, dir, false, opts)
		}
		if err != nil {
			return nil, fmt.Errorf("clone repository: %w", err)
		}
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}

	ref := g.tag
	if ref == library.DefaultTag {
		ref = head.Hash().String()
	}

	content := make(map[string]string)
	err = tree.Files().ForEach(func(f *object.File) error {
		if !isDocumentation(f.Name) {
			return nil
		}
		if f.Size > maxContentBytes {
			g.logger.Debug("skipping oversized file", slog.String("path", f.Name))
			return nil
		}
		body, err := f.Contents()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		content[g.blobURL(ref, f.Name)] = body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect content: %w", err)
	}

	g.logger.Info("collected documentation",
		slog.String("name", g.Name()),
		slog.Int("files", len(content)),
	)
	return content, nil
}

// blobURL builds the stable content-unit identifier for a file at a ref.
func (g *GitOrigin) blobURL(ref, path string) string {
	base := strings.TrimSuffix(g.repoURL, ".git")
	return fmt.Sprintf("%s/blob/%s/%s", base, ref, path)
}

func (g *GitOrigin) listRemoteRefs(ctx context.Context) ([]*plumbing.Reference, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{g.repoURL},
	})
	return remote.ListContext(ctx, &gogit.ListOptions{Auth: g.auth()})
}

func (g *GitOrigin) auth() *githttp.BasicAuth {
	if g.accessToken == "" {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: g.accessToken,
	}
}

// isDocumentation reports whether a path holds prose documentation
// worth indexing.
func isDocumentation(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".md", ".mdx", ".markdown", ".rst", ".txt"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Ensure GitOrigin implements the origin capability.
var _ library.OriginClient = (*GitOrigin)(nil)
