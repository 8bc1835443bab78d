package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dreamstream/internal/models"

	"github.com/rs/zerolog"
)

// EventWriter persists ledger entries
type EventWriter interface {
	InsertPointEvent(ctx context.Context, ev *models.PointEvent) error
}

// WorkerPool appends point events to the ledger off the request path
type WorkerPool struct {
	jobs        chan models.PointEvent
	workerCount int
	writer      EventWriter
	logger      zerolog.Logger
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	metrics     *PoolMetrics
	timeout     time.Duration

	// closeMu guards jobs against sends after Shutdown closes it
	closeMu sync.RWMutex
	closed  bool
}

// PoolMetrics tracks worker pool performance
type PoolMetrics struct {
	mu              sync.RWMutex
	processed       int64
	failed          int64
	backpressure    int64
	totalProcessing time.Duration
}

// Metrics is a point-in-time copy of PoolMetrics
type Metrics struct {
	Processed         int64  `json:"processed"`
	Failed            int64  `json:"failed"`
	Backpressure      int64  `json:"backpressure_events"`
	AvgProcessingTime string `json:"avg_processing_time"`
	QueueUtilization  string `json:"queue_utilization"`
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, writer EventWriter, logger zerolog.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	return &WorkerPool{
		jobs:        make(chan models.PointEvent, queueSize),
		workerCount: workerCount,
		writer:      writer,
		logger:      logger.With().Str("component", "worker_pool").Logger(),
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &PoolMetrics{},
		timeout:     5 * time.Second,
	}
}

// Start initializes and starts all worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.Info().
		Int("workers", wp.workerCount).
		Int("queue_size", cap(wp.jobs)).
		Msg("starting worker pool")

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// worker is the main worker loop that processes jobs
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Int("worker", id).Msg("worker shutting down")
			return

		case ev, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processEvent(id, ev)
		}
	}
}

// processEvent writes a single ledger entry with panic recovery
func (wp *WorkerPool) processEvent(workerID int, ev models.PointEvent) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Int("worker", workerID).
				Str("user_id", ev.UserID).
				Interface("panic", r).
				Msg("worker panic recovered")
			wp.metrics.incrementFailed()
		}
	}()

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(wp.ctx, wp.timeout)
	defer cancel()

	err := wp.writer.InsertPointEvent(ctx, &ev)
	processingTime := time.Since(startTime)

	if err != nil {
		wp.logger.Error().
			Err(err).
			Int("worker", workerID).
			Str("user_id", ev.UserID).
			Dur("took", processingTime).
			Msg("failed to persist point event")
		wp.metrics.incrementFailed()
		return
	}

	wp.logger.Debug().
		Int("worker", workerID).
		Str("user_id", ev.UserID).
		Int64("delta", ev.Delta).
		Dur("took", processingTime).
		Msg("point event persisted")

	wp.metrics.recordSuccess(processingTime)
}

// Submit attempts to add an event to the queue. A full queue drops the event
// and returns an error instead of blocking the caller.
func (wp *WorkerPool) Submit(ev models.PointEvent) error {
	wp.closeMu.RLock()
	defer wp.closeMu.RUnlock()

	if wp.closed {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case wp.jobs <- ev:
		return nil

	default:
		wp.logger.Warn().Str("user_id", ev.UserID).Msg("queue full, dropping point event")
		wp.metrics.incrementBackpressure()
		return fmt.Errorf("worker pool queue full (backpressure)")
	}
}

// Shutdown stops accepting events and waits for queued ones to be written
func (wp *WorkerPool) Shutdown(timeout time.Duration) error {
	wp.logger.Info().Msg("shutting down worker pool")

	wp.closeMu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobs)
	}
	wp.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logMetrics()
		return nil

	case <-time.After(timeout):
		wp.cancel() // Force cancel remaining operations
		wp.logger.Warn().Dur("timeout", timeout).Msg("worker pool shutdown timed out")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetMetrics returns a snapshot of the pool metrics
func (wp *WorkerPool) GetMetrics() Metrics {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()

	avgProcessing := time.Duration(0)
	if wp.metrics.processed > 0 {
		avgProcessing = wp.metrics.totalProcessing / time.Duration(wp.metrics.processed)
	}

	return Metrics{
		Processed:         wp.metrics.processed,
		Failed:            wp.metrics.failed,
		Backpressure:      wp.metrics.backpressure,
		AvgProcessingTime: avgProcessing.String(),
		QueueUtilization:  fmt.Sprintf("%d/%d", len(wp.jobs), cap(wp.jobs)),
	}
}

func (wp *WorkerPool) logMetrics() {
	m := wp.GetMetrics()
	wp.logger.Info().
		Int64("processed", m.Processed).
		Int64("failed", m.Failed).
		Int64("backpressure_events", m.Backpressure).
		Str("avg_processing_time", m.AvgProcessingTime).
		Msg("worker pool drained")
}

func (pm *PoolMetrics) recordSuccess(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.processed++
	pm.totalProcessing += duration
}

func (pm *PoolMetrics) incrementFailed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed++
}

func (pm *PoolMetrics) incrementBackpressure() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.backpressure++
}
