package origin

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/librarianhq/librarian/domain/library"
)

func TestFactory_FromURL(t *testing.T) {
	f := NewFactory(slog.Default(), "main")

	client, err := f.FromURL("https://github.com/vercel/next.js.git", "")
	if err != nil {
		t.Fatalf("FromURL failed: %v", err)
	}
	if got := client.Name(); got != "/vercel/next.js" {
		t.Errorf("Name() = %q, want /vercel/next.js", got)
	}
	if got := client.Title(); got != "next.js" {
		t.Errorf("Title() = %q, want next.js", got)
	}
	if got := client.Description(); got != "Documentation for /vercel/next.js" {
		t.Errorf("Description() = %q", got)
	}
}

func TestFactory_FromURL_Invalid(t *testing.T) {
	f := NewFactory(slog.Default(), "main")

	_, err := f.FromURL("git@github.com:vercel/next.js.git", "")
	if !errors.Is(err, library.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestFactory_FromLibrary(t *testing.T) {
	f := NewFactory(slog.Default(), "main")

	lib := library.Library{
		Org:     "vercel",
		Project: "next.js",
		Origin: library.Origin{
			Kind:    library.OriginGit,
			RepoURL: "https://github.com/vercel/next.js",
			Branch:  "canary",
		},
	}

	client, err := f.FromLibrary(lib, "v14.0.0")
	if err != nil {
		t.Fatalf("FromLibrary failed: %v", err)
	}
	git, ok := client.(*GitOrigin)
	if !ok {
		t.Fatalf("expected *GitOrigin, got %T", client)
	}
	if git.branch != "canary" {
		t.Errorf("branch = %q, want canary", git.branch)
	}
	if git.tag != "v14.0.0" {
		t.Errorf("tag = %q, want v14.0.0", git.tag)
	}
}

func TestFactory_FromLibrary_NoRepository(t *testing.T) {
	f := NewFactory(slog.Default(), "main")

	lib := library.Library{
		Org:     "acme",
		Project: "docs",
		Origin:  library.Origin{Kind: library.OriginContent},
	}

	_, err := f.FromLibrary(lib, library.DefaultTag)
	if !errors.Is(err, library.ErrValidation) {
		t.Errorf("expected validation error for content-backed library, got %v", err)
	}
}

func TestFactory_FromLibrary_DefaultBranch(t *testing.T) {
	f := NewFactory(nil, "")

	lib := library.Library{
		Org:     "acme",
		Project: "docs",
		Origin: library.Origin{
			Kind:    library.OriginGit,
			RepoURL: "https://github.com/acme/docs",
		},
	}

	client, err := f.FromLibrary(lib, library.DefaultTag)
	if err != nil {
		t.Fatalf("FromLibrary failed: %v", err)
	}
	if git := client.(*GitOrigin); git.branch != "main" {
		t.Errorf("branch = %q, want main", git.branch)
	}
}

func TestGitOrigin_BlobURL(t *testing.T) {
	g := newGitOrigin(nil, "https://github.com/acme/docs.git", "", "main", library.DefaultTag, "acme", "docs")

	got := g.blobURL("abc123", "guides/setup.md")
	want := "https://github.com/acme/docs/blob/abc123/guides/setup.md"
	if got != want {
		t.Errorf("blobURL = %q, want %q", got, want)
	}
}

func TestGitOrigin_Auth(t *testing.T) {
	withToken := newGitOrigin(nil, "https://github.com/acme/docs", "secret", "main", library.DefaultTag, "acme", "docs")
	if auth := withToken.auth(); auth == nil || auth.Password != "secret" {
		t.Errorf("expected basic auth carrying the token, got %+v", auth)
	}

	anonymous := newGitOrigin(nil, "https://github.com/acme/docs", "", "main", library.DefaultTag, "acme", "docs")
	if auth := anonymous.auth(); auth != nil {
		t.Errorf("expected nil auth without a token, got %+v", auth)
	}
}

func TestIsDocumentation(t *testing.T) {
	cases := map[string]bool{
		"README.md":           true,
		"docs/guide.MDX":      true,
		"notes.markdown":      true,
		"manual.rst":          true,
		"CHANGELOG.txt":       true,
		"main.go":             false,
		"image.png":           false,
		"markdown/config.yml": false,
	}
	for path, want := range cases {
		if got := isDocumentation(path); got != want {
			t.Errorf("isDocumentation(%q) = %v, want %v", path, got, want)
		}
	}
}
