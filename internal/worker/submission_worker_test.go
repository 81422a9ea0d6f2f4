package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/store"
)

// flakyStore fails bulk inserts and rejects rows whose session is in bad.
type flakyStore struct {
	repository.SubmissionStore
	mu   sync.Mutex
	bad  map[uuid.UUID]bool
	bulk int
}

func (f *flakyStore) BulkInsert(context.Context, []model.Submission) error {
	f.mu.Lock()
	f.bulk++
	f.mu.Unlock()
	return assert.AnError
}

func (f *flakyStore) Insert(ctx context.Context, sub *model.Submission) error {
	if f.bad[sub.SessionID] {
		return assert.AnError
	}
	return f.SubmissionStore.Insert(ctx, sub)
}

func push(t *testing.T, q store.Queue, subs ...model.Submission) {
	t.Helper()
	for i := range subs {
		raw, err := json.Marshal(subs[i])
		require.NoError(t, err)
		require.NoError(t, q.Push(context.Background(), config.WorkerKey.PersistSubmissionsQueue, raw))
	}
}

func newSubmission(student uuid.UUID) model.Submission {
	return model.Submission{
		SessionID:   uuid.New(),
		ExamID:      uuid.New(),
		StudentID:   student,
		Score:       8,
		TotalMarks:  12,
		SubmittedAt: time.Now().UTC(),
	}
}

func TestSubmissionWorker_PersistsQueuedSubmissions(t *testing.T) {
	repo := repository.NewMemory()
	queue := store.NewMemoryQueue()
	w := NewSubmissionWorker(repo.Submissions(), queue, zerolog.Nop())

	student := uuid.New()
	push(t, queue, newSubmission(student), newSubmission(student))
	require.NoError(t, queue.Push(context.Background(), config.WorkerKey.PersistSubmissionsQueue, []byte("{not json")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return queue.Len(config.WorkerKey.PersistSubmissionsQueue) == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	subs, err := repo.Submissions().ListByStudent(context.Background(), student)
	require.NoError(t, err)
	assert.Len(t, subs, 2, "buffer is flushed on shutdown")
}

func TestSubmissionWorker_FallbackAndRequeue(t *testing.T) {
	repo := repository.NewMemory()
	queue := store.NewMemoryQueue()

	good, bad := newSubmission(uuid.New()), newSubmission(uuid.New())
	flaky := &flakyStore{SubmissionStore: repo.Submissions(), bad: map[uuid.UUID]bool{bad.SessionID: true}}
	w := NewSubmissionWorker(flaky, queue, zerolog.Nop())
	w.backoff = time.Millisecond

	w.flushSafe(context.Background(), []model.Submission{good, bad})

	assert.Equal(t, 1, flaky.bulk)
	got, err := repo.Submissions().GetByExamAndStudent(context.Background(), good.ExamID, good.StudentID)
	require.NoError(t, err)
	assert.Equal(t, good.SessionID, got.SessionID)

	require.Equal(t, 1, queue.Len(config.WorkerKey.PersistSubmissionsQueue))
	raw, err := queue.Pop(context.Background(), config.WorkerKey.PersistSubmissionsQueue, time.Second)
	require.NoError(t, err)
	var requeued model.Submission
	require.NoError(t, json.Unmarshal(raw, &requeued))
	assert.Equal(t, bad.SessionID, requeued.SessionID)
}
