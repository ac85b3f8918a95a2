package library

import "time"

// Snippet is one embedded, retrievable unit of content. A snippet belongs
// to exactly one (library, tag) partition.
type Snippet struct {
	Title       string
	Description string
	// Source is the locator within its content unit, of the form
	// {content-id}#snippet_{n}, 1-based.
	Source    string
	Language  string
	Code      string
	Tokens    int
	Tag       string
	Vector    []float64
	CreatedAt time.Time
}

// Document is a retrieval result: a snippet with its similarity score.
type Document struct {
	Title       string
	Description string
	Source      string
	Language    string
	Code        string
	Tokens      int
	Score       float64
}
