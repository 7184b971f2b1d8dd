// Package registry serialises every access to the URL registry through one goroutine.
//
// The goroutine owns the authoritative in-memory copy of the registry, loaded once
// from a Store when the Registry is opened. Updates run against a copy which replaces
// the authoritative one only after the Store has saved it, so a failed save leaves
// no trace and no two load-mutate-save units can interleave.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

var (
	// ErrClosed is returned for intents submitted after Close.
	ErrClosed = errors.New("registry closed")
	// ErrReadOnly is returned when a View transaction attempts a write.
	ErrReadOnly = errors.New("read-only transaction")
	// ErrPanicked is returned for an intent whose callback panicked.
	ErrPanicked = errors.New("registry callback panicked")
)

// Store persists the whole registry as one document.
type Store interface {
	// Load reads the persisted registry.
	Load(ctx context.Context) (entity.Registry, error)
	// Save replaces the persisted registry with reg.
	Save(ctx context.Context, reg entity.Registry) error
}

type intent struct {
	ctx    context.Context
	write  bool
	fn     func(tx *Tx) error
	result chan error
}

// Registry is the single writer of the URL registry.
type Registry struct {
	store   Store
	logger  *slog.Logger
	urls    entity.Registry
	intents chan intent
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Open loads the registry from store and starts the worker goroutine.
// Call Close to stop it.
func Open(ctx context.Context, store Store, logger *slog.Logger) (*Registry, error) {
	const op = "registry.Open"

	urls, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load registry: %w", op, err)
	}
	if urls == nil {
		urls = make(entity.Registry)
	}

	r := &Registry{
		store:   store,
		logger:  logger,
		urls:    urls,
		intents: make(chan intent),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	logger.Info("registry loaded", slog.Int("urls", len(urls)))

	go r.run()

	return r, nil
}

// Close stops the worker. Intents already running complete first.
func (r *Registry) Close() error {
	r.once.Do(func() {
		close(r.quit)
	})
	<-r.done
	return nil
}

// View runs fn against a read-only transaction.
func (r *Registry) View(ctx context.Context, fn func(tx *Tx) error) error {
	return r.submit(ctx, false, fn)
}

// Update runs fn against a writable transaction. If fn returns nil and wrote
// anything, the whole registry is saved before Update returns. A failed save
// discards the writes.
func (r *Registry) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return r.submit(ctx, true, fn)
}

func (r *Registry) submit(ctx context.Context, write bool, fn func(tx *Tx) error) error {
	in := intent{
		ctx:    ctx,
		write:  write,
		fn:     fn,
		result: make(chan error, 1),
	}

	select {
	case r.intents <- in:
	case <-r.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-in.result
}

func (r *Registry) run() {
	defer close(r.done)

	for {
		select {
		case in := <-r.intents:
			in.result <- r.apply(in)
		case <-r.quit:
			return
		}
	}
}

// apply runs one intent. A panicking callback fails only its own intent; the
// authoritative registry is left as it was.
func (r *Registry) apply(in intent) (err error) {
	const op = "registry.Registry.apply"

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("registry callback panicked", slog.Any("panic", p), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: %w: %v", op, ErrPanicked, p)
		}
	}()

	if !in.write {
		return in.fn(&Tx{urls: r.urls})
	}

	tx := &Tx{urls: r.urls.Clone(), writable: true}
	if err := in.fn(tx); err != nil {
		return err
	}

	if !tx.dirty {
		return nil
	}

	// The caller may give up waiting, but a started save must not be cut short.
	if err := r.store.Save(context.WithoutCancel(in.ctx), tx.urls); err != nil {
		r.logger.Error("failed to save registry, changes discarded", slog.Any("err", err))
		return fmt.Errorf("%s: failed to save registry: %w", op, err)
	}

	r.urls = tx.urls

	return nil
}
