package catalog

import (
	"context"
	"net/http"
	"testing"

	"github.com/aluiziolira/go-openlibrary-books/config"
	"github.com/aluiziolira/go-openlibrary-books/metrics"
	"github.com/aluiziolira/go-openlibrary-books/models"
	"github.com/aluiziolira/go-openlibrary-books/openlibrary"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const subjectPayload = `{
	"key": "/subjects/love",
	"name": "love",
	"work_count": 2,
	"works": [
		{
			"key": "/works/OL1W",
			"title": "Pride and Prejudice",
			"cover_id": 14348537,
			"first_publish_year": 1813,
			"subject": ["Love", "Fiction"],
			"authors": [{"key": "/authors/OL1A", "name": "Jane Austen"}]
		},
		{
			"key": "/works/OL2W",
			"title": "Untagged",
			"authors": [{"key": "/authors/OL2A", "name": ""}]
		}
	]
}`

const workPayload = `{
	"key": "/works/OL1W",
	"title": "Pride and Prejudice",
	"first_publish_date": "1813",
	"description": {"type": "/type/text", "value": "A novel."},
	"excerpt": {"comment": "opening", "text": "It is a truth"},
	"covers": [9],
	"subjects": ["Love"]
}`

func newTestService(t *testing.T) (*Service, *httpmock.MockTransport, *metrics.Metrics) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://openlibrary.test"

	transport := httpmock.NewMockTransport()
	m := metrics.NewMetrics()
	client, err := openlibrary.New(cfg, openlibrary.WithTransport(transport), openlibrary.WithMetrics(m))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	svc, err := NewService(cfg, client, m)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, transport, m
}

func TestFetchBooks(t *testing.T) {
	svc, transport, _ := newTestService(t)
	transport.RegisterResponder(http.MethodGet, "http://openlibrary.test/subjects/love.json?limit=10",
		httpmock.NewStringResponder(http.StatusOK, subjectPayload))

	books, err := svc.FetchBooks(context.Background())
	if err != nil {
		t.Fatalf("fetch books: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("books = %d, want 2", len(books))
	}
	if books[0].ID != "OL1W" || books[0].Authors[0] != "Jane Austen" || *books[0].FirstPublishYear != 1813 {
		t.Fatalf("unexpected first book: %+v", books[0])
	}
	if len(books[1].Authors) != 0 || len(books[1].SubjectTags) != 0 || books[1].CoverID != nil {
		t.Fatalf("unexpected second book: %+v", books[1])
	}

	if cached, ok := svc.CachedBooks(); ok {
		t.Fatalf("fetching alone must not fill the cache, got %v", cached)
	}
}

func TestRememberBooks(t *testing.T) {
	svc, transport, m := newTestService(t)
	transport.RegisterResponder(http.MethodGet, "http://openlibrary.test/subjects/love.json?limit=10",
		httpmock.NewStringResponder(http.StatusOK, subjectPayload))
	books, err := svc.FetchBooks(context.Background())
	if err != nil {
		t.Fatalf("fetch books: %v", err)
	}
	svc.RememberBooks(books)
	books[0].Title = "mutated"

	transport.RegisterResponder(http.MethodGet, "http://openlibrary.test/subjects/love.json?limit=10",
		httpmock.NewStringResponder(http.StatusInternalServerError, "down"))
	if _, err := svc.FetchBooks(context.Background()); err == nil {
		t.Fatalf("expected error")
	}

	cached, ok := svc.CachedBooks()
	if !ok || len(cached) != 2 {
		t.Fatalf("failed fetch must not drop the cached list")
	}
	if cached[0].Title != "Pride and Prejudice" {
		t.Fatalf("cache must hold its own copy, got %q", cached[0].Title)
	}
	if got := testutil.ToFloat64(m.CacheLookupTotal.WithLabelValues("list", "hit")); got != 1 {
		t.Fatalf("list hits = %v, want 1", got)
	}
}

func TestFetchBookDetail(t *testing.T) {
	svc, transport, _ := newTestService(t)
	transport.RegisterResponder(http.MethodGet, "http://openlibrary.test/works/OL1W.json",
		httpmock.NewStringResponder(http.StatusOK, workPayload))

	detail, err := svc.FetchBookDetail(context.Background(), "OL1W")
	if err != nil {
		t.Fatalf("fetch detail: %v", err)
	}
	if detail.ID == nil || *detail.ID != "OL1W" {
		t.Fatalf("id = %v", detail.ID)
	}
	if detail.FirstPublishYear == nil || *detail.FirstPublishYear != 1813 {
		t.Fatalf("year = %v, want 1813", detail.FirstPublishYear)
	}
	if detail.Description == nil || *detail.Description != "A novel." {
		t.Fatalf("description = %v", detail.Description)
	}
	if detail.Excerpt == nil || *detail.Excerpt != "It is a truth" {
		t.Fatalf("excerpt = %v", detail.Excerpt)
	}
	if detail.CoverID == nil || *detail.CoverID != 9 {
		t.Fatalf("cover = %v", detail.CoverID)
	}
}

func TestRememberDetail(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, ok := svc.CachedDetail("OL1W"); ok {
		t.Fatalf("cache should start empty")
	}

	svc.RememberDetail(models.BookDetail{BookSummary: models.BookSummary{ID: "OL1W", Title: "T"}})
	svc.RememberDetail(models.BookDetail{BookSummary: models.BookSummary{ID: "unknown"}})

	got, ok := svc.CachedDetail("OL1W")
	if !ok || got.Title != "T" {
		t.Fatalf("cached detail = %+v, %v", got, ok)
	}
	if _, ok := svc.CachedDetail("unknown"); ok {
		t.Fatalf("placeholder ids must not be cached")
	}
}
