package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

func newPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := New(&Config{Size: size, ExpiryDuration: time.Second, ReleaseTimeout: time.Second}, logger.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewRejectsBadSize(t *testing.T) {
	_, err := New(&Config{Size: 0}, logger.NewNop())
	assert.Error(t, err)
}

func TestForEachRunsEveryIndexOnce(t *testing.T) {
	// ants starts a package-level default pool at init; only this pool's goroutines count
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := newPool(t, 2)
	defer func() { require.NoError(t, p.Close()) }()

	hits := make([]atomic.Int32, 20)
	p.ForEach(context.Background(), len(hits), func(_ context.Context, i int) {
		hits[i].Add(1)
	})
	for i := range hits {
		assert.EqualValues(t, 1, hits[i].Load(), "index %d", i)
	}
}

func TestForEachRunsInlineWhenSaturated(t *testing.T) {
	p := newPool(t, 1)
	defer p.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.ForEach(context.Background(), 3, func(context.Context, int) {})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ForEach blocked on a saturated pool")
	}
	close(release)
}

func TestPanicIsRecovered(t *testing.T) {
	p := newPool(t, 1)
	defer p.Shutdown()

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		defer close(done)
		panic("boom")
	}))
	<-done

	assert.Eventually(t, func() bool { return p.Stats().Panicked == 1 }, time.Second, 10*time.Millisecond)
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := newPool(t, 1)
	p.Shutdown()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)

	var ran atomic.Bool
	p.ForEach(context.Background(), 1, func(context.Context, int) { ran.Store(true) })
	assert.True(t, ran.Load())
}
