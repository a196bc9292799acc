package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jbataille/visio/internal/domain"
)

// emptyWebM is a minimal EBML header declaring an empty webm document, so a
// recording stopped before any chunk arrived still finalizes to a valid,
// non-empty file.
var emptyWebM = []byte{
	0x1a, 0x45, 0xdf, 0xa3, 0x9f,
	0x42, 0x86, 0x81, 0x01,
	0x42, 0xf7, 0x81, 0x01,
	0x42, 0xf2, 0x81, 0x04,
	0x42, 0xf3, 0x81, 0x08,
	0x42, 0x82, 0x84, 0x77, 0x65, 0x62, 0x6d,
	0x42, 0x87, 0x81, 0x04,
	0x42, 0x85, 0x81, 0x02,
}

// FinalizedRecording is what lands in durable storage when a job stops.
type FinalizedRecording struct {
	domain.RecordingJob
	Duration time.Duration `json:"duration"`
	FilePath string        `json:"filePath"`
	FileSize int64         `json:"fileSize"`
}

// RecordingStore persists finalized recordings.
type RecordingStore interface {
	SaveRecording(ctx context.Context, rec FinalizedRecording) error
}

type recordingJob struct {
	meta   domain.RecordingJob
	chunks [][]byte
}

// Recorder owns the active recording job per meeting. Chunk buffers are
// touched only under the recorder lock, on the owning meeting's event path.
type Recorder struct {
	mu     sync.Mutex
	active map[string]*recordingJob

	dir         string
	maxDuration time.Duration
	store       RecordingStore
}

func NewRecorder(dir string, maxDuration time.Duration, store RecordingStore) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &Recorder{
		active:      make(map[string]*recordingJob),
		dir:         dir,
		maxDuration: maxDuration,
		store:       store,
	}, nil
}

// Start allocates the single active job for a meeting.
func (r *Recorder) Start(meetingID string, userID domain.UserID, typ domain.RecordingType) (domain.RecordingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[meetingID]; ok {
		return domain.RecordingJob{}, domain.Conflict("a recording is already running for this meeting")
	}
	job := &recordingJob{meta: domain.RecordingJob{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		StartedBy: userID,
		Type:      typ,
		Status:    domain.RecordingRunning,
		StartTime: time.Now(),
	}}
	r.active[meetingID] = job
	log.Info().Str("module", "app.recorder").Str("meeting", meetingID).
		Str("recording", job.meta.ID).Msg("recording started")
	return job.meta, nil
}

// AddChunk appends data to the active job. Chunks arriving outside the
// `recording` status, or past the hard duration ceiling, are dropped
// silently: that is the intended backpressure against a stop race.
func (r *Recorder) AddChunk(meetingID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.active[meetingID]
	if !ok || job.meta.Status != domain.RecordingRunning {
		return
	}
	if r.maxDuration > 0 && time.Since(job.meta.StartTime) > r.maxDuration {
		return
	}
	job.chunks = append(job.chunks, data)
}

// Stop finalizes the active job: chunks are concatenated to a file, the
// durable record written, the job removed from the active set. A finalize
// failure leaves the job in `processing` for a later retry and keeps it out
// of the chunk path.
func (r *Recorder) Stop(ctx context.Context, meetingID string, userID domain.UserID) (FinalizedRecording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.active[meetingID]
	if !ok {
		return FinalizedRecording{}, domain.NotFound("no active recording for this meeting")
	}

	job.meta.Status = domain.RecordingProcessing
	if job.meta.EndTime == nil {
		now := time.Now()
		job.meta.EndTime = &now
	}

	payload := emptyWebM
	if len(job.chunks) > 0 {
		payload = bytes.Join(job.chunks, nil)
	}
	fileName := fmt.Sprintf("%s_%s.webm", job.meta.ID, meetingID)
	filePath := filepath.Join(r.dir, fileName)
	if err := os.WriteFile(filePath, payload, 0o644); err != nil {
		log.Error().Err(err).Str("module", "app.recorder").Str("recording", job.meta.ID).Msg("write recording file")
		return FinalizedRecording{}, fmt.Errorf("write recording: %w", err)
	}

	final := FinalizedRecording{
		RecordingJob: job.meta,
		Duration:     job.meta.EndTime.Sub(job.meta.StartTime),
		FilePath:     filePath,
		FileSize:     int64(len(payload)),
	}
	final.Status = domain.RecordingCompleted

	if r.store != nil {
		if err := r.store.SaveRecording(ctx, final); err != nil {
			log.Error().Err(err).Str("module", "app.recorder").Str("recording", job.meta.ID).Msg("persist recording")
			return FinalizedRecording{}, fmt.Errorf("persist recording: %w", err)
		}
	}

	delete(r.active, meetingID)
	log.Info().Str("module", "app.recorder").Str("meeting", meetingID).
		Str("recording", job.meta.ID).Int64("size", final.FileSize).Msg("recording stopped")
	return final, nil
}

// ActiveView is the status answer for an in-progress recording.
type ActiveView struct {
	domain.RecordingJob
	Duration time.Duration `json:"duration"`
}

// Active reports the running job for a meeting, if any.
func (r *Recorder) Active(meetingID string) (ActiveView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.active[meetingID]
	if !ok {
		return ActiveView{}, false
	}
	return ActiveView{RecordingJob: job.meta, Duration: time.Since(job.meta.StartTime)}, true
}

// ActiveCount is used by the stats endpoint.
func (r *Recorder) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
