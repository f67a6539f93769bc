package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"example.com/socialfeed/internal/apperr"
	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"github.com/segmentio/kafka-go"
)

var logg = logger.New()

// PostSink persists ingested posts.
type PostSink interface {
	Ingest(ctx context.Context, p models.Post) error
}

// Worker consumes post ingest events from Kafka and persists them concurrently.
type Worker struct {
	sink         PostSink
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
	maxAttempts  int
	offsets      *commitTracker
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(sink PostSink, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		sink:         sink,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
		maxAttempts:  3,
		offsets:      newCommitTracker(),
	}
}

// Run starts message reading and concurrent processing. When ctx is done it
// stops fetching, finishes every queued message and returns.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = 1
	}
	if w.offsets == nil {
		w.offsets = newCommitTracker()
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan kafka.Message, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- kafka.Message) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0
			w.offsets.fetched(msg)

			if len(msg.Value) == 0 {
				w.ack(msg)
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			// Left uncommitted on shutdown, so it is fetched again.
			select {
			case jobs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// processLoop decodes posts and persists them until jobs is closed. Queued
// messages are still handled after ctx is done; each one is committed once
// handled, whether it was stored or dropped.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan kafka.Message) {
	hctx := context.WithoutCancel(ctx)
	for msg := range jobs {
		if err := w.handle(hctx, msg); err != nil {
			logg.Error("worker", "Dropping post ingest event", err)
		}
		w.ack(msg)
	}
}

// ack commits msg as soon as every earlier message of its partition is done.
func (w *Worker) ack(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.offsets.complete(msg, func(m kafka.Message) error {
		return w.reader.CommitMessages(ctx, m)
	})
	if err != nil {
		logg.Error("worker", "Failed to commit offset", err)
	}
}

// handle persists a single ingest event. Storage faults are retried with
// backoff; malformed posts are not.
func (w *Worker) handle(ctx context.Context, msg kafka.Message) error {
	post, err := appkafka.DecodePost(msg)
	if err != nil {
		return err
	}
	if err := post.Validate(); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = w.sink.Ingest(ctx, post)
		if err == nil {
			logg.Debug("worker", "Post ingested (post ID anonymized)")
			return nil
		}
		if !apperr.Retryable(err) || attempt >= w.maxAttempts {
			return fmt.Errorf("ingest post after %d attempt(s): %w", attempt, err)
		}
		if !waitWithContext(ctx, time.Duration(attempt*50)*time.Millisecond) {
			return errors.Join(err, ctx.Err())
		}
	}
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}
	return nil
}
