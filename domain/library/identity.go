package library

import (
	"crypto/md5" //nolint:gosec // identity derivation, not security
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// CanonicalName builds the /org/project identifier a library is addressed by.
func CanonicalName(org, project string) string {
	return fmt.Sprintf("/%s/%s", org, project)
}

// DeriveID derives the library identifier from a canonical name.
// It is a pure function: the same canonical name always yields the same ID.
func DeriveID(canonicalName string) string {
	sum := md5.Sum([]byte(canonicalName)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// ParseRepoURL extracts org and project from a repository URL.
// Works with or without a .git suffix; HTTP and HTTPS only.
func ParseRepoURL(repoURL string) (org string, project string, err error) {
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", "", NewValidationError("invalid repository URL: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", NewValidationError("repository URL must use http or https")
	}

	parts := make([]string, 0, 4)
	for _, p := range strings.Split(strings.Trim(parsed.Path, "/"), "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", "", NewValidationError("invalid repository URL format")
	}

	org = parts[len(parts)-2]
	project = strings.TrimSuffix(parts[len(parts)-1], ".git")
	if org == "" || project == "" {
		return "", "", NewValidationError("organization and project names cannot be empty")
	}
	return org, project, nil
}
