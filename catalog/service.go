// Package catalog fetches book lists and work details from Open Library and
// keeps the last good results for the current session.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/aluiziolira/go-openlibrary-books/config"
	"github.com/aluiziolira/go-openlibrary-books/metrics"
	"github.com/aluiziolira/go-openlibrary-books/models"
	"github.com/aluiziolira/go-openlibrary-books/openlibrary"
	"github.com/aluiziolira/go-openlibrary-books/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

const listCacheKey = "subject"

// Getter is the slice of the remote client the service needs.
type Getter interface {
	Get(ctx context.Context, path string, query openlibrary.Query, out any) error
}

// Service maps Open Library payloads into domain shapes.
type Service struct {
	getter   Getter
	subject  string
	pageSize int
	metrics  *metrics.Metrics

	lists   *lru.Cache[string, []models.BookSummary]
	details *lru.Cache[models.WorkID, models.BookDetail]
}

// NewService builds a service backed by getter.
func NewService(cfg *config.Config, getter Getter, m *metrics.Metrics) (*Service, error) {
	lists, err := lru.New[string, []models.BookSummary](1)
	if err != nil {
		return nil, fmt.Errorf("create list cache: %w", err)
	}
	details, err := lru.New[models.WorkID, models.BookDetail](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create detail cache: %w", err)
	}

	return &Service{
		getter:   getter,
		subject:  cfg.Subject,
		pageSize: cfg.PageSize,
		metrics:  m,
		lists:    lists,
		details:  details,
	}, nil
}

// FetchBooks loads the first page of the configured subject.
func (s *Service) FetchBooks(ctx context.Context) ([]models.BookSummary, error) {
	var response models.OpenLibrarySubjectResponse
	path := "/subjects/" + url.PathEscape(s.subject) + ".json"
	if err := s.getter.Get(ctx, path, openlibrary.Query{"limit": s.pageSize}, &response); err != nil {
		return nil, err
	}

	books := make([]models.BookSummary, 0, len(response.Works))
	for _, work := range response.Works {
		books = append(books, parser.MapWorkToSummary(work))
	}

	slog.Debug("fetched books", slog.String("subject", s.subject), slog.Int("count", len(books)))
	return books, nil
}

// FetchBookDetail loads a single work.
func (s *Service) FetchBookDetail(ctx context.Context, workID models.WorkID) (models.PartialBookDetail, error) {
	var response models.OpenLibraryWorkResponse
	path := "/works/" + url.PathEscape(workID) + ".json"
	if err := s.getter.Get(ctx, path, nil, &response); err != nil {
		return models.PartialBookDetail{}, err
	}
	return parser.MapWorkResponseToDetail(response), nil
}

// CachedBooks returns the last list passed to RememberBooks.
func (s *Service) CachedBooks() ([]models.BookSummary, bool) {
	books, ok := s.lists.Get(listCacheKey)
	s.metrics.IncCacheLookup("list", ok)
	if !ok {
		return nil, false
	}
	out := make([]models.BookSummary, len(books))
	copy(out, books)
	return out, true
}

// RememberBooks stores the list a caller accepted as current.
func (s *Service) RememberBooks(books []models.BookSummary) {
	out := make([]models.BookSummary, len(books))
	copy(out, books)
	s.lists.Add(listCacheKey, out)
}

// CachedDetail returns the last merged detail remembered for workID.
func (s *Service) CachedDetail(workID models.WorkID) (models.BookDetail, bool) {
	detail, ok := s.details.Get(workID)
	s.metrics.IncCacheLookup("detail", ok)
	return detail, ok
}

// RememberDetail stores a merged detail for later sessions of the same run.
func (s *Service) RememberDetail(detail models.BookDetail) {
	if detail.ID == "" || detail.ID == parser.DefaultID {
		return
	}
	s.details.Add(detail.ID, detail)
}
