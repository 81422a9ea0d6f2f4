package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/store"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// SubmissionWorker drains persist_submissions_queue into the submissions table.
type SubmissionWorker struct {
	submissions repository.SubmissionStore
	queue       store.Queue
	log         zerolog.Logger

	// backoff is the pause after a queue error or a requeue.
	backoff time.Duration
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(submissions repository.SubmissionStore, queue store.Queue, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		submissions: submissions,
		queue:       queue,
		log:         log.With().Str("component", "submission_worker").Logger(),
		backoff:     2 * time.Second,
	}
}

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SubmissionWorker started")

	buffer := make([]model.Submission, 0, BatchSize)
	lastFlush := time.Now()

	for {
		// 1. Flush on size or age.
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		// 2. Graceful shutdown.
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch. Pop returns nil, nil when the poll times out.
		raw, err := w.queue.Pop(ctx, config.WorkerKey.PersistSubmissionsQueue, PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Queue error, backing off")
			w.sleep(ctx)
			continue
		}
		if raw == nil {
			continue
		}

		var sub model.Submission
		if err := json.Unmarshal(raw, &sub); err != nil {
			// Malformed records can never succeed.
			w.log.Error().Err(err).Str("data", string(raw)).Msg("Discarding malformed submission")
			continue
		}
		buffer = append(buffer, sub)
	}
}

// flushSafe tries a bulk insert, then row by row, then requeues what is left.
func (w *SubmissionWorker) flushSafe(ctx context.Context, batch []model.Submission) {
	err := w.submissions.BulkInsert(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Submissions persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
	w.fallbackInsert(ctx, batch)
}

func (w *SubmissionWorker) fallbackInsert(ctx context.Context, batch []model.Submission) {
	var requeue []model.Submission
	for i := range batch {
		if err := w.submissions.Insert(ctx, &batch[i]); err != nil {
			w.log.Error().Err(err).
				Str("session_id", batch[i].SessionID.String()).
				Msg("Insert failed, requeueing")
			requeue = append(requeue, batch[i])
		}
	}
	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *SubmissionWorker) requeue(ctx context.Context, items []model.Submission) {
	payloads := make([][]byte, 0, len(items))
	for i := range items {
		data, err := json.Marshal(&items[i])
		if err != nil {
			continue
		}
		payloads = append(payloads, data)
	}

	// The shutdown context may already be done; requeue on a fresh one.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := w.queue.Push(pushCtx, config.WorkerKey.PersistSubmissionsQueue, payloads...); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue submissions. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed submissions")
	// Avoid thrashing while the database is down.
	w.sleep(ctx)
}

func (w *SubmissionWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.backoff):
	}
}

func (w *SubmissionWorker) shutdown(buffer []model.Submission) {
	w.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
