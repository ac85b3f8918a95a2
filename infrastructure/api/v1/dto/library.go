// Package dto holds the request and response shapes of the v1 API.
package dto

// RepositoryRequest is the body of POST /api/v1/library.
type RepositoryRequest struct {
	RepoURL     string `json:"repoUrl"`
	AccessToken string `json:"accessToken"`
}

// ContentRequest is the body of POST /api/v1/library/{org}/{project}/content.
type ContentRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Files       map[string]string `json:"files"`
}

// LibrarySearchItem is one entry of the search response, following the
// Context7 response shape.
type LibrarySearchItem struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Branch         string   `json:"branch"`
	LastUpdateDate string   `json:"lastUpdateDate"`
	State          string   `json:"state"`
	TotalTokens    int      `json:"totalTokens"`
	Versions       []string `json:"versions"`
	LibraryType    string   `json:"libraryType"`
	TrustScore     *float64 `json:"trustScore,omitempty"`
}

// SearchResponse is the body of GET /api/v1/library/search.
type SearchResponse struct {
	Results []LibrarySearchItem `json:"results"`
}

// LibraryDetail is the metadata body of GET .../meta.
type LibraryDetail struct {
	LibraryID          string   `json:"library_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Org                string   `json:"org"`
	Project            string   `json:"project"`
	State              string   `json:"state"`
	LibraryType        string   `json:"library_type"`
	RepoURL            string   `json:"repo_url,omitempty"`
	Branch             string   `json:"branch,omitempty"`
	LastRevisionMarker string   `json:"last_revision_marker,omitempty"`
	Tags               []string `json:"tags"`
	TotalTokens        int      `json:"total_tokens"`
	ErrorDetail        string   `json:"error_detail,omitempty"`
	LastUpdate         string   `json:"last_update"`
}
