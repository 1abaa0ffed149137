package query

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-openlibrary-books/apperr"
	"github.com/aluiziolira/go-openlibrary-books/metrics"
	"github.com/aluiziolira/go-openlibrary-books/models"
)

const listController = "list"

// ListFetcher loads the fixed first page of books.
type ListFetcher interface {
	FetchBooks(ctx context.Context) ([]models.BookSummary, error)
}

// ListCache is implemented by fetchers that remember the last good list.
// RememberBooks is only called with results the controller accepted.
type ListCache interface {
	CachedBooks() ([]models.BookSummary, bool)
	RememberBooks(books []models.BookSummary)
}

// ListState is a snapshot of the book list controller.
// Books may be stale: an error never clears previously loaded data.
type ListState struct {
	Books      []models.BookSummary
	Status     models.Status
	Err        *apperr.AppError
	Refreshing bool
	Version    uint64
}

// Loading reports a full-screen load, which a refresh is not.
func (s ListState) Loading() bool {
	return s.Status == models.StatusLoading && !s.Refreshing
}

// BookList owns the book list state.
type BookList struct {
	fetcher ListFetcher
	cache   ListCache
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	state     ListState
	lc        lifecycle
	listeners listeners[ListState]
}

// NewBookList mounts a list controller and starts the initial load. Stale data
// from the fetcher's cache, if any, is shown while it runs.
func NewBookList(ctx context.Context, fetcher ListFetcher, opts ...Option) *BookList {
	o := applyOptions(opts)
	q := &BookList{
		fetcher: fetcher,
		metrics: o.metrics,
		logger:  o.logger,
		state: ListState{
			Books:  []models.BookSummary{},
			Status: models.StatusIdle,
		},
	}
	q.lc.init(ctx)

	if cache, ok := fetcher.(ListCache); ok {
		q.cache = cache
		if books, ok := cache.CachedBooks(); ok {
			q.state.Books = books
		}
	}

	q.runFetch(ModeInitial)
	return q
}

// State returns the current snapshot.
func (q *BookList) State() ListState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Subscribe registers fn for every state change and returns a func that
// removes it. fn runs on the goroutine that made the change, without locks
// held; snapshots from racing attempts may arrive out of order, so compare
// Version when that matters.
func (q *BookList) Subscribe(fn func(ListState)) func() {
	q.mu.Lock()
	id := q.listeners.addLocked(fn)
	q.mu.Unlock()
	return func() {
		q.mu.Lock()
		q.listeners.removeLocked(id)
		q.mu.Unlock()
	}
}

// Refetch reruns the full load, used for manual retry.
func (q *BookList) Refetch() {
	q.runFetch(ModeInitial)
}

// Refresh reruns the load without entering the loading status.
func (q *BookList) Refresh() {
	q.runFetch(ModeRefresh)
}

// Wait blocks until no attempt is in flight.
func (q *BookList) Wait() {
	q.lc.wg.Wait()
}

// Close cancels the in-flight attempt. No state changes happen afterwards.
func (q *BookList) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lc.closeLocked()
}

func (q *BookList) runFetch(mode FetchMode) {
	q.mu.Lock()
	ctx, a, ok := q.lc.beginLocked()
	if !ok {
		q.mu.Unlock()
		return
	}
	if mode == ModeRefresh {
		q.state.Refreshing = true
	} else {
		q.state.Status = models.StatusLoading
		q.state.Refreshing = false
	}
	q.state.Err = nil
	snapshot, fns := q.commitLocked()
	q.mu.Unlock()

	q.metrics.IncAttempt(listController, mode.String())
	q.logger.Debug("list attempt started",
		slog.String("attempt", a.id),
		slog.String("mode", mode.String()),
	)
	notify(fns, snapshot)

	go q.execute(ctx, a, mode)
}

func (q *BookList) execute(ctx context.Context, a *attempt, mode FetchMode) {
	defer q.lc.done(a)

	books, failure := guard(func() ([]models.BookSummary, error) {
		return q.fetcher.FetchBooks(ctx)
	})

	q.mu.Lock()
	if !q.lc.ownsLocked(ctx, a) {
		q.mu.Unlock()
		q.metrics.IncSuperseded(listController)
		q.logger.Debug("list attempt superseded", slog.String("attempt", a.id))
		return
	}
	q.lc.settleLocked(a)
	q.state.Refreshing = false

	var classified *apperr.AppError
	if failure != nil {
		classified = apperr.Classify(failure)
		q.state.Err = classified
		q.state.Status = models.StatusError
	} else {
		if books == nil {
			books = []models.BookSummary{}
		}
		q.state.Books = books
		q.state.Status = models.StatusSuccess
	}
	snapshot, fns := q.commitLocked()
	q.mu.Unlock()

	if classified != nil {
		q.metrics.IncError(listController, classified.Kind.String())
		q.logger.Warn("list attempt failed",
			slog.String("attempt", a.id),
			slog.String("mode", mode.String()),
			slog.String("kind", classified.Kind.String()),
			slog.String("details", classified.Details),
		)
	} else {
		q.logger.Debug("list attempt succeeded",
			slog.String("attempt", a.id),
			slog.Int("count", len(snapshot.Books)),
		)
		if q.cache != nil {
			q.cache.RememberBooks(snapshot.Books)
		}
	}
	notify(fns, snapshot)
}

func (q *BookList) commitLocked() (ListState, []func(ListState)) {
	q.state.Version = q.lc.nextVersionLocked()
	return q.state, q.listeners.snapshotLocked()
}
