package models

// OpenLibrarySubjectResponse is the payload of /subjects/{subject}.json.
type OpenLibrarySubjectResponse struct {
	Key       string           `json:"key"`
	Name      string           `json:"name"`
	WorkCount int              `json:"work_count"`
	Works     []OpenLibraryWork `json:"works"`
}

// OpenLibraryWork is one entry of a subject listing.
type OpenLibraryWork struct {
	Key              string                 `json:"key"`
	Title            string                 `json:"title"`
	EditionCount     *int                   `json:"edition_count,omitempty"`
	CoverID          *int                   `json:"cover_id,omitempty"`
	Subject          []string               `json:"subject,omitempty"`
	FirstPublishYear *int                   `json:"first_publish_year,omitempty"`
	Authors          []OpenLibraryAuthorRef `json:"authors,omitempty"`
}

// OpenLibraryAuthorRef is an author as embedded in a subject listing.
type OpenLibraryAuthorRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// OpenLibraryWorkResponse is the payload of /works/{id}.json.
// Description and Excerpt are either a bare string or an object wrapping the text.
type OpenLibraryWorkResponse struct {
	Key              string   `json:"key"`
	Title            *string  `json:"title,omitempty"`
	FirstPublishDate string   `json:"first_publish_date,omitempty"`
	Description      any      `json:"description,omitempty"`
	Excerpt          any      `json:"excerpt,omitempty"`
	Covers           []int    `json:"covers,omitempty"`
	Subjects         []string `json:"subjects,omitempty"`
	Authors          []struct {
		Author struct {
			Key string `json:"key"`
		} `json:"author"`
	} `json:"authors,omitempty"`
}
