// Package models defines the book domain shapes and the raw Open Library payloads.
package models

// WorkID identifies an Open Library work without its "/works/" prefix.
type WorkID = string

// BookSummary is the list representation of a work.
type BookSummary struct {
	ID               WorkID   `csv:"id" json:"id"`
	Title            string   `csv:"title" json:"title"`
	Authors          []string `csv:"authors" json:"authors"`
	CoverID          *int     `csv:"cover_id" json:"cover_id,omitempty"`
	FirstPublishYear *int     `csv:"first_publish_year" json:"first_publish_year,omitempty"`
	SubjectTags      []string `csv:"subject_tags" json:"subject_tags"`
}

// BookDetail is a summary enriched with long-form text.
type BookDetail struct {
	BookSummary
	Description *string `json:"description,omitempty"`
	Excerpt     *string `json:"excerpt,omitempty"`
}

// PartialBookDetail carries whatever a detail payload provided.
// Nil fields are absent; a non-nil empty slice is present but empty.
type PartialBookDetail struct {
	ID               *string
	Title            *string
	Authors          []string
	CoverID          *int
	FirstPublishYear *int
	SubjectTags      []string
	Description      *string
	Excerpt          *string
}

// Status is the lifecycle of a query controller.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
