package query

import (
	"context"
	"testing"
	"time"

	"github.com/aluiziolira/go-openlibrary-books/models"
)

const waitFor = 2 * time.Second

type listReply struct {
	books []models.BookSummary
	err   error
	panic any
}

type listCall struct {
	ctx   context.Context
	reply chan listReply
}

// fakeListFetcher hands every call to the test, which decides when and how it
// resolves. Replies are delivered even after cancellation to mimic a slow
// response that arrives late.
type fakeListFetcher struct {
	calls  chan *listCall
	cached []models.BookSummary
}

func newFakeListFetcher() *fakeListFetcher {
	return &fakeListFetcher{calls: make(chan *listCall, 8)}
}

func (f *fakeListFetcher) FetchBooks(ctx context.Context) ([]models.BookSummary, error) {
	call := &listCall{ctx: ctx, reply: make(chan listReply, 1)}
	f.calls <- call
	r := <-call.reply
	if r.panic != nil {
		panic(r.panic)
	}
	return r.books, r.err
}

func (f *fakeListFetcher) next(t *testing.T) *listCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(waitFor):
		t.Fatalf("expected a fetch call")
		return nil
	}
}

func (f *fakeListFetcher) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case <-f.calls:
		t.Fatalf("unexpected fetch call")
	case <-time.After(50 * time.Millisecond):
	}
}

type cachingListFetcher struct {
	*fakeListFetcher
	remembered chan []models.BookSummary
}

func newCachingListFetcher(cached []models.BookSummary) cachingListFetcher {
	f := cachingListFetcher{
		fakeListFetcher: newFakeListFetcher(),
		remembered:      make(chan []models.BookSummary, 8),
	}
	f.cached = cached
	return f
}

func (f cachingListFetcher) CachedBooks() ([]models.BookSummary, bool) {
	return f.cached, f.cached != nil
}

func (f cachingListFetcher) RememberBooks(books []models.BookSummary) {
	f.remembered <- books
}

type detailReply struct {
	detail models.PartialBookDetail
	err    error
}

type detailCall struct {
	ctx    context.Context
	workID models.WorkID
	reply  chan detailReply
}

type fakeDetailFetcher struct {
	calls chan *detailCall
}

func newFakeDetailFetcher() *fakeDetailFetcher {
	return &fakeDetailFetcher{calls: make(chan *detailCall, 8)}
}

func (f *fakeDetailFetcher) FetchBookDetail(ctx context.Context, workID models.WorkID) (models.PartialBookDetail, error) {
	call := &detailCall{ctx: ctx, workID: workID, reply: make(chan detailReply, 1)}
	f.calls <- call
	r := <-call.reply
	return r.detail, r.err
}

func (f *fakeDetailFetcher) next(t *testing.T) *detailCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(waitFor):
		t.Fatalf("expected a detail fetch call")
		return nil
	}
}

func (f *fakeDetailFetcher) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case call := <-f.calls:
		t.Fatalf("unexpected detail fetch for %q", call.workID)
	case <-time.After(50 * time.Millisecond):
	}
}

type memoryDetailCache struct {
	*fakeDetailFetcher
	stored map[models.WorkID]models.BookDetail
	saved  chan models.BookDetail
}

func newMemoryDetailCache() *memoryDetailCache {
	return &memoryDetailCache{
		fakeDetailFetcher: newFakeDetailFetcher(),
		stored:            make(map[models.WorkID]models.BookDetail),
		saved:             make(chan models.BookDetail, 8),
	}
}

func (c *memoryDetailCache) CachedDetail(workID models.WorkID) (models.BookDetail, bool) {
	d, ok := c.stored[workID]
	return d, ok
}

func (c *memoryDetailCache) RememberDetail(detail models.BookDetail) {
	c.saved <- detail
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }
