package query

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-openlibrary-books/apperr"
	"github.com/aluiziolira/go-openlibrary-books/metrics"
	"github.com/aluiziolira/go-openlibrary-books/models"
	"github.com/aluiziolira/go-openlibrary-books/parser"
)

const detailController = "detail"

// DetailFetcher loads a single work.
type DetailFetcher interface {
	FetchBookDetail(ctx context.Context, workID models.WorkID) (models.PartialBookDetail, error)
}

// DetailCache is implemented by fetchers that remember merged details.
type DetailCache interface {
	CachedDetail(workID models.WorkID) (models.BookDetail, bool)
	RememberDetail(detail models.BookDetail)
}

// DetailState is a snapshot of the book detail controller. Book stays visible
// when a fetch fails.
type DetailState struct {
	Book    *models.BookDetail
	Status  models.Status
	Err     *apperr.AppError
	Version uint64
}

// Loading reports whether a fetch is running.
func (s DetailState) Loading() bool {
	return s.Status == models.StatusLoading
}

// BookDetail owns the detail state of one work at a time.
type BookDetail struct {
	fetcher DetailFetcher
	cache   DetailCache
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	workID    models.WorkID
	seed      *models.BookDetail
	state     DetailState
	lc        lifecycle
	listeners listeners[DetailState]
}

// NewBookDetail mounts a detail controller for workID. A non-nil seed is shown
// right away with status success; a load starts whenever workID is set.
func NewBookDetail(ctx context.Context, fetcher DetailFetcher, workID models.WorkID, seed *models.BookSummary, opts ...Option) *BookDetail {
	o := applyOptions(opts)
	q := &BookDetail{
		fetcher: fetcher,
		metrics: o.metrics,
		logger:  o.logger,
	}
	if cache, ok := fetcher.(DetailCache); ok {
		q.cache = cache
	}
	q.lc.init(ctx)
	q.resetLocked(workID, seed)

	q.load()
	return q
}

// State returns the current snapshot.
func (q *BookDetail) State() DetailState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Subscribe registers fn for every state change and returns a func that
// removes it. The delivery rules of BookList.Subscribe apply.
func (q *BookDetail) Subscribe(fn func(DetailState)) func() {
	q.mu.Lock()
	id := q.listeners.addLocked(fn)
	q.mu.Unlock()
	return func() {
		q.mu.Lock()
		q.listeners.removeLocked(id)
		q.mu.Unlock()
	}
}

// SetWork switches to another work. Displayed data is replaced by the new seed
// rather than merged, the in-flight attempt is cancelled, and a load starts
// when workID is set.
func (q *BookDetail) SetWork(workID models.WorkID, seed *models.BookSummary) {
	q.mu.Lock()
	if q.lc.closed {
		q.mu.Unlock()
		return
	}
	q.lc.cancelLocked()
	q.resetLocked(workID, seed)
	snapshot, fns := q.commitLocked()
	q.mu.Unlock()

	notify(fns, snapshot)
	q.load()
}

// Refetch reloads the current work. It does nothing without a work id.
func (q *BookDetail) Refetch() {
	q.load()
}

// Wait blocks until no attempt is in flight.
func (q *BookDetail) Wait() {
	q.lc.wg.Wait()
}

// Close cancels the in-flight attempt. No state changes happen afterwards.
func (q *BookDetail) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lc.closeLocked()
}

func (q *BookDetail) resetLocked(workID models.WorkID, seed *models.BookSummary) {
	base := parser.SeedDetail(seed)
	if base == nil && workID != "" && q.cache != nil {
		if cached, ok := q.cache.CachedDetail(workID); ok {
			base = &cached
		}
	}

	q.workID = workID
	q.seed = base
	q.state.Book = base
	q.state.Err = nil
	if base != nil {
		q.state.Status = models.StatusSuccess
	} else {
		q.state.Status = models.StatusIdle
	}
}

func (q *BookDetail) load() {
	q.mu.Lock()
	if q.workID == "" {
		q.mu.Unlock()
		return
	}
	ctx, a, ok := q.lc.beginLocked()
	if !ok {
		q.mu.Unlock()
		return
	}
	workID := q.workID
	q.state.Status = models.StatusLoading
	q.state.Err = nil
	snapshot, fns := q.commitLocked()
	q.mu.Unlock()

	q.metrics.IncAttempt(detailController, ModeInitial.String())
	q.logger.Debug("detail attempt started",
		slog.String("attempt", a.id),
		slog.String("work_id", workID),
	)
	notify(fns, snapshot)

	go q.execute(ctx, a, workID)
}

func (q *BookDetail) execute(ctx context.Context, a *attempt, workID models.WorkID) {
	defer q.lc.done(a)

	partial, failure := guard(func() (models.PartialBookDetail, error) {
		return q.fetcher.FetchBookDetail(ctx, workID)
	})

	q.mu.Lock()
	if !q.lc.ownsLocked(ctx, a) {
		q.mu.Unlock()
		q.metrics.IncSuperseded(detailController)
		q.logger.Debug("detail attempt superseded",
			slog.String("attempt", a.id),
			slog.String("work_id", workID),
		)
		return
	}
	q.lc.settleLocked(a)

	var (
		classified *apperr.AppError
		merged     models.BookDetail
	)
	if failure != nil {
		classified = apperr.Classify(failure)
		q.state.Err = classified
		q.state.Status = models.StatusError
	} else {
		base := q.state.Book
		if base == nil {
			base = q.seed
		}
		merged = parser.MergeBookDetail(base, partial)
		q.state.Book = &merged
		q.state.Status = models.StatusSuccess
	}
	snapshot, fns := q.commitLocked()
	q.mu.Unlock()

	if classified != nil {
		q.metrics.IncError(detailController, classified.Kind.String())
		q.logger.Warn("detail attempt failed",
			slog.String("attempt", a.id),
			slog.String("work_id", workID),
			slog.String("kind", classified.Kind.String()),
			slog.String("details", classified.Details),
		)
	} else if q.cache != nil {
		q.cache.RememberDetail(merged)
	}
	notify(fns, snapshot)
}

func (q *BookDetail) commitLocked() (DetailState, []func(DetailState)) {
	q.state.Version = q.lc.nextVersionLocked()
	return q.state, q.listeners.snapshotLocked()
}
