// Package query holds the stateful controllers that own the request lifecycle
// of the book list and book detail screens.
//
// Each controller allows one in-flight attempt. Starting an attempt cancels the
// previous one, and only the attempt that is still current when it settles may
// write state. Closing a controller cancels the outstanding attempt and freezes
// its state.
package query

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-openlibrary-books/metrics"
	"github.com/google/uuid"
)

// FetchMode distinguishes a full load from a pull-to-refresh.
type FetchMode int

const (
	ModeInitial FetchMode = iota
	ModeRefresh
)

func (m FetchMode) String() string {
	if m == ModeRefresh {
		return "refresh"
	}
	return "initial"
}

// Option configures a controller.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// WithMetrics records attempt, supersession and error counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// attempt is the token captured when a fetch starts. Results are applied only
// while the controller still points at the same token.
type attempt struct {
	id     string
	cancel context.CancelFunc
}

// lifecycle tracks the current attempt. Fields are guarded by the owning
// controller's mutex; wg is not.
type lifecycle struct {
	ctx     context.Context
	stop    context.CancelFunc
	current *attempt
	closed  bool
	version uint64
	wg      sync.WaitGroup
}

func (l *lifecycle) init(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	l.ctx, l.stop = context.WithCancel(parent)
}

// beginLocked cancels any in-flight attempt and starts a new one.
func (l *lifecycle) beginLocked() (context.Context, *attempt, bool) {
	if l.closed || l.ctx.Err() != nil {
		return nil, nil, false
	}
	l.cancelLocked()

	ctx, cancel := context.WithCancel(l.ctx)
	a := &attempt{id: uuid.NewString(), cancel: cancel}
	l.current = a
	l.wg.Add(1)
	return ctx, a, true
}

// ownsLocked reports whether a may still write state.
func (l *lifecycle) ownsLocked(ctx context.Context, a *attempt) bool {
	return !l.closed && l.current == a && ctx.Err() == nil
}

func (l *lifecycle) settleLocked(a *attempt) {
	if l.current == a {
		l.current = nil
	}
}

func (l *lifecycle) cancelLocked() {
	if l.current != nil {
		l.current.cancel()
		l.current = nil
	}
}

func (l *lifecycle) closeLocked() {
	l.closed = true
	l.cancelLocked()
	l.stop()
}

func (l *lifecycle) nextVersionLocked() uint64 {
	l.version++
	return l.version
}

func (l *lifecycle) done(a *attempt) {
	a.cancel()
	l.wg.Done()
}

// guard runs fn and turns a panic into a failure value so it can be classified.
func guard[T any](fn func() (T, error)) (result T, failure any) {
	defer func() {
		if r := recover(); r != nil {
			failure = r
		}
	}()
	result, err := fn()
	if err != nil {
		return result, err
	}
	return result, nil
}

// listeners is a small registry of state callbacks.
type listeners[S any] struct {
	next  int
	funcs map[int]func(S)
}

func (ls *listeners[S]) addLocked(fn func(S)) int {
	if ls.funcs == nil {
		ls.funcs = make(map[int]func(S))
	}
	ls.next++
	ls.funcs[ls.next] = fn
	return ls.next
}

func (ls *listeners[S]) removeLocked(id int) {
	delete(ls.funcs, id)
}

func (ls *listeners[S]) snapshotLocked() []func(S) {
	out := make([]func(S), 0, len(ls.funcs))
	for _, fn := range ls.funcs {
		out = append(out, fn)
	}
	return out
}

func notify[S any](fns []func(S), state S) {
	for _, fn := range fns {
		fn(state)
	}
}
