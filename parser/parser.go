package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-openlibrary-books/models"
)

const (
	workKeyPrefix = "/works/"

	// DefaultID and DefaultTitle fill a merged detail when neither side knows the value.
	DefaultID    = "unknown"
	DefaultTitle = "Tanpa Judul"
)

// NormalizeWorkID strips the "/works/" prefix from an Open Library key.
func NormalizeWorkID(key string) models.WorkID {
	return strings.Replace(key, workKeyPrefix, "", 1)
}

// MapWorkToSummary converts a subject listing entry into a summary.
func MapWorkToSummary(work models.OpenLibraryWork) models.BookSummary {
	authors := make([]string, 0, len(work.Authors))
	for _, author := range work.Authors {
		if author.Name == "" {
			continue
		}
		authors = append(authors, author.Name)
	}

	tags := work.Subject
	if tags == nil {
		tags = []string{}
	}

	return models.BookSummary{
		ID:               NormalizeWorkID(work.Key),
		Title:            work.Title,
		Authors:          authors,
		CoverID:          work.CoverID,
		FirstPublishYear: work.FirstPublishYear,
		SubjectTags:      tags,
	}
}

// MapWorkResponseToDetail converts a work payload into a partial detail.
// Authors are not mapped: the work payload only carries author keys.
func MapWorkResponseToDetail(work models.OpenLibraryWorkResponse) models.PartialBookDetail {
	detail := models.PartialBookDetail{
		Title:       work.Title,
		SubjectTags: work.Subjects,
		Description: ExtractRichText(work.Description),
		Excerpt:     ExtractRichText(work.Excerpt),
	}
	if work.Key != "" {
		id := NormalizeWorkID(work.Key)
		detail.ID = &id
	}
	if detail.SubjectTags == nil {
		detail.SubjectTags = []string{}
	}
	if len(work.Covers) > 0 {
		cover := work.Covers[0]
		detail.CoverID = &cover
	}
	if detail.FirstPublishYear == nil && work.FirstPublishDate != "" {
		detail.FirstPublishYear = ParseLeadingYear(work.FirstPublishDate)
	}
	return detail
}

// ParseLeadingYear reads the first four characters of a date string as a year.
// It returns nil when they are not an integer.
func ParseLeadingYear(date string) *int {
	head := date
	if len(head) > 4 {
		head = head[:4]
	}
	year, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return nil
	}
	return &year
}

// ExtractRichText unwraps fields that arrive either as a bare string or as an
// object carrying the text under "value" or "text".
func ExtractRichText(value any) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return &v
	case *string:
		if v == nil || *v == "" {
			return nil
		}
		return v
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return nil
		}
		return ExtractRichText(decoded)
	case map[string]any:
		if text, ok := v["value"].(string); ok {
			return &text
		}
		if text, ok := v["text"].(string); ok {
			return &text
		}
	case map[string]string:
		if text, ok := v["value"]; ok {
			return &text
		}
		if text, ok := v["text"]; ok {
			return &text
		}
	}
	return nil
}

// SeedDetail lifts a summary into a detail with no long-form text.
func SeedDetail(seed *models.BookSummary) *models.BookDetail {
	if seed == nil {
		return nil
	}
	return &models.BookDetail{BookSummary: *seed}
}

// MergeBookDetail lays a partial detail over a known base. Values present in the
// partial win; absent ones fall back to the base and then to defaults. Authors
// from the partial only win when non-empty.
func MergeBookDetail(base *models.BookDetail, partial models.PartialBookDetail) models.BookDetail {
	if base == nil {
		base = &models.BookDetail{}
	}

	merged := models.BookDetail{
		BookSummary: models.BookSummary{
			ID:               firstString(partial.ID, base.ID, DefaultID),
			Title:            firstString(partial.Title, base.Title, DefaultTitle),
			Authors:          base.Authors,
			CoverID:          firstInt(partial.CoverID, base.CoverID),
			FirstPublishYear: firstInt(partial.FirstPublishYear, base.FirstPublishYear),
			SubjectTags:      base.SubjectTags,
		},
		Description: firstStringPtr(partial.Description, base.Description),
		Excerpt:     firstStringPtr(partial.Excerpt, base.Excerpt),
	}
	if len(partial.Authors) > 0 {
		merged.Authors = partial.Authors
	}
	if merged.Authors == nil {
		merged.Authors = []string{}
	}
	if partial.SubjectTags != nil {
		merged.SubjectTags = partial.SubjectTags
	}
	if merged.SubjectTags == nil {
		merged.SubjectTags = []string{}
	}
	return merged
}

// ValidateSummary ensures a summary carries what an export row needs.
func ValidateSummary(b *models.BookSummary) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("book missing id")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title for %s", b.ID)
	}
	return nil
}

// DedupeSummaries drops invalid summaries and repeated ids, keeping the first
// occurrence. Skipped records are counted by reason.
func DedupeSummaries(books []models.BookSummary) ([]models.BookSummary, map[string]int) {
	out := make([]models.BookSummary, 0, len(books))
	skipped := make(map[string]int)
	seen := make(map[string]struct{}, len(books))
	for i := range books {
		if err := ValidateSummary(&books[i]); err != nil {
			skipped["invalid_record"]++
			continue
		}
		if _, ok := seen[books[i].ID]; ok {
			skipped["duplicate_id"]++
			continue
		}
		seen[books[i].ID] = struct{}{}
		out = append(out, books[i])
	}
	return out, skipped
}

// firstString prefers the partial, then a non-empty base, then the fallback.
func firstString(partial *string, base, fallback string) string {
	if partial != nil {
		return *partial
	}
	if base != "" {
		return base
	}
	return fallback
}

func firstStringPtr(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
