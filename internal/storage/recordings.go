package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jbataille/visio/internal/app"
	"github.com/jbataille/visio/internal/domain"
)

// Recordings persists finalized recordings. It implements
// app.RecordingStore; queries back the durable records after the live job
// is gone.
type Recordings struct {
	db *gorm.DB
}

func NewRecordings(db *gorm.DB) *Recordings { return &Recordings{db: db} }

func (r *Recordings) SaveRecording(ctx context.Context, rec app.FinalizedRecording) error {
	row := RecordingRecord{
		ID:         rec.ID,
		MeetingID:  rec.MeetingID,
		StartedBy:  string(rec.StartedBy),
		Type:       string(rec.Type),
		Status:     string(rec.Status),
		StartTime:  rec.StartTime,
		EndTime:    rec.EndTime,
		DurationMS: rec.Duration.Milliseconds(),
		FilePath:   rec.FilePath,
		FileSize:   rec.FileSize,
	}
	return r.db.WithContext(ctx).Save(&row).Error
}

func (r *Recordings) ForMeeting(ctx context.Context, meetingID string) ([]RecordingRecord, error) {
	var recs []RecordingRecord
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("start_time DESC").
		Find(&recs).Error
	return recs, err
}

func (r *Recordings) ByOwner(ctx context.Context, userID string) ([]RecordingRecord, error) {
	var recs []RecordingRecord
	err := r.db.WithContext(ctx).
		Where("started_by = ?", userID).
		Order("start_time DESC").
		Find(&recs).Error
	return recs, err
}

func (r *Recordings) All(ctx context.Context) ([]RecordingRecord, error) {
	var recs []RecordingRecord
	err := r.db.WithContext(ctx).Order("start_time DESC").Find(&recs).Error
	return recs, err
}

func (r *Recordings) ByID(ctx context.Context, id string) (RecordingRecord, error) {
	var rec RecordingRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, domain.NotFound("recording not found")
	}
	return rec, err
}

func (r *Recordings) Delete(ctx context.Context, id string) (RecordingRecord, error) {
	var rec RecordingRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, domain.NotFound("recording not found")
	}
	if err != nil {
		return rec, err
	}
	return rec, r.db.WithContext(ctx).Delete(&rec).Error
}

// DeleteOlderThan removes records started before cutoff and returns the
// file paths so the caller can unlink them.
func (r *Recordings) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	var recs []RecordingRecord
	if err := r.db.WithContext(ctx).Where("start_time < ?", cutoff).Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Where("start_time < ?", cutoff).Delete(&RecordingRecord{}).Error; err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(recs))
	for _, rec := range recs {
		if rec.FilePath != "" {
			paths = append(paths, rec.FilePath)
		}
	}
	return paths, nil
}

// RecordingStats aggregates the durable set.
type RecordingStats struct {
	TotalRecordings int            `json:"totalRecordings"`
	TotalDurationMS int64          `json:"totalDuration"`
	TotalSize       int64          `json:"totalSize"`
	ByType          map[string]int `json:"recordingsByType"`
}

func (r *Recordings) Stats(ctx context.Context) (RecordingStats, error) {
	recs, err := r.All(ctx)
	if err != nil {
		return RecordingStats{}, err
	}
	st := RecordingStats{ByType: make(map[string]int)}
	st.TotalRecordings = len(recs)
	for _, rec := range recs {
		st.TotalDurationMS += rec.DurationMS
		st.TotalSize += rec.FileSize
		st.ByType[rec.Type]++
	}
	return st, nil
}
