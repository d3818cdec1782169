package workbench

import (
	"context"
	"errors"
	"fmt"

	"github.com/oceanobs/objstore/internal/blobstore"
	"github.com/oceanobs/objstore/internal/commitstore"
	"github.com/oceanobs/objstore/internal/metrics"
)

// instrumentedBlobs wraps a blobstore.Store so every call records
// objstore_store_calls_total/objstore_store_call_duration_seconds/
// objstore_store_timeouts_total (spec §4.7 AMBIENT instrumentation:
// "per store call (count, latency, timeout rate)"), without touching
// any of op_push.go/op_pull.go/op_checkout.go/op_fetch_blobs.go's call
// sites.
type instrumentedBlobs struct {
	inner   blobstore.Store
	backend string
}

func newInstrumentedBlobs(inner blobstore.Store, backend string) *instrumentedBlobs {
	return &instrumentedBlobs{inner: inner, backend: backend}
}

func (b *instrumentedBlobs) observe(ctx context.Context, method string, timer *metrics.Timer, err error) {
	timer.ObserveVec(metrics.StoreCallDuration, b.backend, method)
	metrics.StoreCallsTotal.WithLabelValues(b.backend, method, outcomeLabel(err)).Inc()
	if isTimeout(ctx, err) {
		metrics.StoreTimeoutsTotal.WithLabelValues(b.backend, method).Inc()
	}
}

func (b *instrumentedBlobs) Put(ctx context.Context, key string, data []byte) error {
	timer := metrics.NewTimer()
	err := b.inner.Put(ctx, key, data)
	b.observe(ctx, "put", timer, err)
	return err
}

func (b *instrumentedBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	timer := metrics.NewTimer()
	data, err := b.inner.Get(ctx, key)
	b.observe(ctx, "get", timer, err)
	return data, err
}

func (b *instrumentedBlobs) Has(ctx context.Context, key string) (bool, error) {
	timer := metrics.NewTimer()
	ok, err := b.inner.Has(ctx, key)
	b.observe(ctx, "has", timer, err)
	return ok, err
}

func (b *instrumentedBlobs) Remove(ctx context.Context, key string) error {
	timer := metrics.NewTimer()
	err := b.inner.Remove(ctx, key)
	b.observe(ctx, "remove", timer, err)
	return err
}

// instrumentedCommits wraps a commitstore.Store with the same
// per-call metrics as instrumentedBlobs.
type instrumentedCommits struct {
	inner   commitstore.Store
	backend string
}

func newInstrumentedCommits(inner commitstore.Store, backend string) *instrumentedCommits {
	return &instrumentedCommits{inner: inner, backend: backend}
}

func (c *instrumentedCommits) observe(ctx context.Context, method string, timer *metrics.Timer, err error) {
	timer.ObserveVec(metrics.StoreCallDuration, c.backend, method)
	metrics.StoreCallsTotal.WithLabelValues(c.backend, method, outcomeLabel(err)).Inc()
	if isTimeout(ctx, err) {
		metrics.StoreTimeoutsTotal.WithLabelValues(c.backend, method).Inc()
	}
}

func (c *instrumentedCommits) Put(ctx context.Context, key string, value []byte, attributes map[string]string) error {
	timer := metrics.NewTimer()
	err := c.inner.Put(ctx, key, value, attributes)
	c.observe(ctx, "put", timer, err)
	return err
}

func (c *instrumentedCommits) UpdateIndex(ctx context.Context, key string, attributes map[string]string) error {
	timer := metrics.NewTimer()
	err := c.inner.UpdateIndex(ctx, key, attributes)
	c.observe(ctx, "update_index", timer, err)
	return err
}

func (c *instrumentedCommits) Get(ctx context.Context, key string) ([]byte, error) {
	timer := metrics.NewTimer()
	data, err := c.inner.Get(ctx, key)
	c.observe(ctx, "get", timer, err)
	return data, err
}

func (c *instrumentedCommits) Multiget(ctx context.Context, keys []string) (map[string][]byte, error) {
	timer := metrics.NewTimer()
	data, err := c.inner.Multiget(ctx, keys)
	c.observe(ctx, "multiget", timer, err)
	return data, err
}

func (c *instrumentedCommits) HasKey(ctx context.Context, key string) (bool, error) {
	timer := metrics.NewTimer()
	ok, err := c.inner.HasKey(ctx, key)
	c.observe(ctx, "has_key", timer, err)
	return ok, err
}

func (c *instrumentedCommits) Remove(ctx context.Context, key string) error {
	timer := metrics.NewTimer()
	err := c.inner.Remove(ctx, key)
	c.observe(ctx, "remove", timer, err)
	return err
}

func (c *instrumentedCommits) Query(ctx context.Context, predicates []commitstore.Predicate, maxRows int) (map[string]commitstore.Row, error) {
	timer := metrics.NewTimer()
	rows, err := c.inner.Query(ctx, predicates, maxRows)
	c.observe(ctx, "query", timer, err)
	return rows, err
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// isTimeout reports whether err (or the call's own context) reflects
// a store_timeout expiry, so StoreTimeoutsTotal tracks timeout rate
// specifically rather than every error.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return err != nil && ctx.Err() == context.DeadlineExceeded
}

// backendLabel names the concrete backend type behind a Store for the
// "backend" metric label, e.g. "*blobstore.Memory" -> "Memory".
func backendLabel(v any) string {
	t := fmt.Sprintf("%T", v)
	for i := len(t) - 1; i >= 0; i-- {
		if t[i] == '.' {
			return t[i+1:]
		}
	}
	return t
}
