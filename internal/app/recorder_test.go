package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbataille/visio/internal/domain"
)

type memRecordingStore struct {
	mu    sync.Mutex
	saved []FinalizedRecording
	fail  bool
}

func (s *memRecordingStore) SaveRecording(_ context.Context, rec FinalizedRecording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("db down")
	}
	s.saved = append(s.saved, rec)
	return nil
}

func newTestRecorder(t *testing.T, store RecordingStore) *Recorder {
	t.Helper()
	r, err := NewRecorder(t.TempDir(), 4*time.Hour, store)
	require.NoError(t, err)
	return r
}

func TestStartRecordingConflict(t *testing.T) {
	r := newTestRecorder(t, nil)

	job, err := r.Start("m1", "a", domain.RecordingBoth)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingRunning, job.Status)

	_, err = r.Start("m1", "b", domain.RecordingAudio)
	assert.True(t, domain.IsCode(err, domain.CodeConflict))

	// State after the failed start is unchanged: still the one active job.
	view, active := r.Active("m1")
	require.True(t, active)
	assert.Equal(t, job.ID, view.ID)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestStopWithoutActiveJob(t *testing.T) {
	r := newTestRecorder(t, nil)
	_, err := r.Stop(context.Background(), "m1", "a")
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestStopFinalizesChunks(t *testing.T) {
	store := &memRecordingStore{}
	r := newTestRecorder(t, store)

	_, err := r.Start("m1", "a", domain.RecordingVideo)
	require.NoError(t, err)
	r.AddChunk("m1", []byte("part1"))
	r.AddChunk("m1", []byte("part2"))

	final, err := r.Stop(context.Background(), "m1", "a")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingCompleted, final.Status)
	assert.Equal(t, int64(10), final.FileSize)

	data, err := os.ReadFile(final.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("part1part2"), data)

	require.Len(t, store.saved, 1)
	assert.Equal(t, 0, r.ActiveCount())
}

func TestStopWithZeroChunksWritesValidFile(t *testing.T) {
	r := newTestRecorder(t, nil)
	_, err := r.Start("m1", "a", domain.RecordingBoth)
	require.NoError(t, err)

	final, err := r.Stop(context.Background(), "m1", "a")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingCompleted, final.Status)
	assert.Greater(t, final.FileSize, int64(0))

	info, err := os.Stat(final.FilePath)
	require.NoError(t, err)
	assert.Equal(t, final.FileSize, info.Size())
}

func TestLateChunksDroppedAfterStop(t *testing.T) {
	store := &memRecordingStore{fail: true}
	r := newTestRecorder(t, store)
	_, err := r.Start("m1", "a", domain.RecordingBoth)
	require.NoError(t, err)
	r.AddChunk("m1", []byte("early"))

	// Persist failure leaves the job in processing for a retry.
	_, err = r.Stop(context.Background(), "m1", "a")
	require.Error(t, err)
	view, active := r.Active("m1")
	require.True(t, active)
	assert.Equal(t, domain.RecordingProcessing, view.Status)

	r.AddChunk("m1", []byte("late"))

	store.fail = false
	final, err := r.Stop(context.Background(), "m1", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), final.FileSize)
	assert.Equal(t, 0, r.ActiveCount())
}

func TestChunksIgnoredForUnknownMeeting(t *testing.T) {
	r := newTestRecorder(t, nil)
	r.AddChunk("ghost", []byte("noise"))
	assert.Equal(t, 0, r.ActiveCount())
}
