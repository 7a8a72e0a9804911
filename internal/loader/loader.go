// Package loader provides per-request memoized batch loaders.
//
// A loader coalesces single-key lookups issued while resolving one request
// into one multi-key store call. Results are memoized for the lifetime of the
// loader, which is the lifetime of the request: loaders are never shared
// across requests, so authorization-sensitive data can't go stale.
package loader

import (
	"context"
	"sync"
	"time"
)

// dispatchWindow is how long a batch accumulates keys before it fires.
// Long enough to gather the lookups of one resolver pass, short enough to be
// invisible in request latency.
const dispatchWindow = 250 * time.Microsecond

// maxBatchKeys caps a single batched call; a larger accumulation dispatches
// immediately and a new batch starts.
const maxBatchKeys = 100

// BatchFunc fetches values for a set of keys in one call. Keys absent from
// the returned map resolve to the zero value.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

type result[V any] struct {
	done  chan struct{}
	value V
	err   error
}

type batch[K comparable] struct {
	keys  []K
	fired bool
}

// Loader memoizes and batches lookups for one key kind.
type Loader[K comparable, V any] struct {
	fetch BatchFunc[K, V]

	mu      sync.Mutex
	results map[K]*result[V]
	pending *batch[K]
}

// New creates a loader around the given batch function.
func New[K comparable, V any](fetch BatchFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{
		fetch:   fetch,
		results: make(map[K]*result[V]),
	}
}

// Load returns the value for key, blocking until the batch containing it
// resolves. Repeated loads of the same key share one result.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	l.mu.Lock()
	if res, ok := l.results[key]; ok {
		l.mu.Unlock()
		return l.await(ctx, res)
	}

	res := &result[V]{done: make(chan struct{})}
	l.results[key] = res

	if l.pending == nil {
		l.pending = &batch[K]{}
		go l.dispatchAfter(ctx, l.pending, dispatchWindow)
	}
	l.pending.keys = append(l.pending.keys, key)
	if len(l.pending.keys) >= maxBatchKeys {
		b := l.pending
		l.pending = nil
		l.mu.Unlock()
		l.dispatch(ctx, b)
		return l.await(ctx, res)
	}
	l.mu.Unlock()

	return l.await(ctx, res)
}

// LoadMany resolves several keys through the same batching machinery.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) (map[K]V, error) {
	out := make(map[K]V, len(keys))
	for _, key := range keys {
		v, err := l.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// Prime seeds the cache with a known value; an existing entry wins.
func (l *Loader[K, V]) Prime(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.results[key]; ok {
		return
	}
	res := &result[V]{done: make(chan struct{}), value: value}
	close(res.done)
	l.results[key] = res
}

func (l *Loader[K, V]) await(ctx context.Context, res *result[V]) (V, error) {
	select {
	case <-res.done:
		return res.value, res.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (l *Loader[K, V]) dispatchAfter(ctx context.Context, b *batch[K], wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	l.mu.Lock()
	if l.pending == b {
		l.pending = nil
	}
	l.mu.Unlock()

	l.dispatch(ctx, b)
}

func (l *Loader[K, V]) dispatch(ctx context.Context, b *batch[K]) {
	l.mu.Lock()
	if b.fired {
		l.mu.Unlock()
		return
	}
	b.fired = true
	keys := b.keys
	l.mu.Unlock()

	if len(keys) == 0 {
		return
	}

	values, err := l.fetch(ctx, keys)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range keys {
		res := l.results[key]
		if res == nil {
			continue
		}
		if err != nil {
			res.err = err
		} else {
			res.value = values[key]
		}
		close(res.done)
	}
}
