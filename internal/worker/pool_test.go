package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dreamstream/internal/models"

	"github.com/bmizerany/assert"
	"github.com/rs/zerolog"
)

type recordingWriter struct {
	mu     sync.Mutex
	events []models.PointEvent
	fail   bool
	block  chan struct{}
}

func (w *recordingWriter) InsertPointEvent(ctx context.Context, ev *models.PointEvent) error {
	if w.block != nil {
		select {
		case <-w.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if w.fail {
		return errors.New("database unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, *ev)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

func TestPoolFlushesOnShutdown(t *testing.T) {
	writer := &recordingWriter{}
	pool := NewWorkerPool(4, 100, writer, zerolog.Nop())
	pool.Start()

	for i := 0; i < 50; i++ {
		assert.Equal(t, nil, pool.Submit(models.PointEvent{UserID: "u1", Delta: int64(i + 1)}))
	}

	assert.Equal(t, nil, pool.Shutdown(5*time.Second))
	assert.Equal(t, 50, writer.count())

	m := pool.GetMetrics()
	assert.Equal(t, int64(50), m.Processed)
	assert.Equal(t, int64(0), m.Failed)
}

func TestPoolBackpressure(t *testing.T) {
	writer := &recordingWriter{block: make(chan struct{})}
	pool := NewWorkerPool(1, 1, writer, zerolog.Nop())

	// not started: the single queue slot fills immediately
	assert.Equal(t, nil, pool.Submit(models.PointEvent{UserID: "a"}))
	err := pool.Submit(models.PointEvent{UserID: "b"})
	assert.NotEqual(t, nil, err)
	assert.Equal(t, int64(1), pool.GetMetrics().Backpressure)

	close(writer.block)
	pool.Start()
	assert.Equal(t, nil, pool.Shutdown(5*time.Second))
	assert.Equal(t, 1, writer.count())
}

func TestPoolCountsFailures(t *testing.T) {
	writer := &recordingWriter{fail: true}
	pool := NewWorkerPool(2, 10, writer, zerolog.Nop())
	pool.Start()

	for i := 0; i < 3; i++ {
		assert.Equal(t, nil, pool.Submit(models.PointEvent{UserID: "u"}))
	}
	assert.Equal(t, nil, pool.Shutdown(5*time.Second))
	assert.Equal(t, int64(3), pool.GetMetrics().Failed)
}

func TestPoolRejectsSubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1, 1, &recordingWriter{}, zerolog.Nop())
	pool.Start()
	assert.Equal(t, nil, pool.Shutdown(time.Second))
	assert.NotEqual(t, nil, pool.Submit(models.PointEvent{UserID: "late"}))
	assert.Equal(t, nil, pool.Shutdown(time.Second))
}

func TestPoolShutdownTimeout(t *testing.T) {
	writer := &recordingWriter{block: make(chan struct{})}
	pool := NewWorkerPool(1, 1, writer, zerolog.Nop())
	pool.Start()
	assert.Equal(t, nil, pool.Submit(models.PointEvent{UserID: "stuck"}))

	err := pool.Shutdown(50 * time.Millisecond)
	assert.NotEqual(t, nil, err)
	close(writer.block)
}
