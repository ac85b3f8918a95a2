// Package library defines the library lifecycle model: identity, state,
// versions, snippets and the capability interfaces the coordinator calls.
package library

import "time"

// DefaultTag is the version label used when no explicit tag is given.
const DefaultTag = "latest"

// CatalogCollection is the vector index collection holding library headers.
const CatalogCollection = "libraries"

// State is the lifecycle state of a library.
type State string

// Library lifecycle states. Transitions within one mutation attempt are
// monotonic: processing moves to finalized or failed, never back. A new
// mutation on a finalized library re-enters processing.
const (
	StateProcessing State = "processing"
	StateFinalized  State = "finalized"
	StateFailed     State = "failed"
)

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	switch s {
	case StateProcessing, StateFinalized, StateFailed:
		return true
	}
	return false
}

// Library is the catalog header row for one ingested source.
type Library struct {
	ID          string
	Title       string
	Description string
	Org         string
	Project     string
	Origin      Origin
	State       State
	Tags        []string
	TotalTokens int
	ErrorDetail string
	LastUpdate  time.Time
}

// Name returns the canonical /org/project identifier.
func (l Library) Name() string {
	return CanonicalName(l.Org, l.Project)
}

// HasTag reports whether the given version label is registered.
func (l Library) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
