package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jbataille/visio/internal/domain"
)

// Meetings persists instant-meeting lifecycle records and scheduled
// meetings. It implements app.MeetingStore.
type Meetings struct {
	db *gorm.DB
}

func NewMeetings(db *gorm.DB) *Meetings { return &Meetings{db: db} }

func (r *Meetings) SaveMeeting(ctx context.Context, m domain.Meeting) error {
	rec := MeetingRecord{
		ID:        m.ID,
		Title:     m.Title,
		HostID:    string(m.HostID),
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
		EndedAt:   m.EndedAt,
	}
	return r.db.WithContext(ctx).Save(&rec).Error
}

func (r *Meetings) CloseMeeting(ctx context.Context, id string, endedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&MeetingRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(domain.MeetingEnded), "ended_at": endedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("meeting not found")
	}
	return nil
}

type ScheduleRequest struct {
	Title        string
	Description  string
	ScheduledFor time.Time
	DurationMin  int
	Password     string
	Options      map[string]any
}

func (r *Meetings) Schedule(ctx context.Context, ownerID string, req ScheduleRequest) (ScheduledMeeting, error) {
	rec := ScheduledMeeting{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Title:        req.Title,
		Description:  req.Description,
		ScheduledFor: req.ScheduledFor,
		DurationMin:  req.DurationMin,
		Password:     req.Password,
		Status:       "scheduled",
		Options:      datatypes.JSONMap(req.Options),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return rec, err
	}
	return rec, nil
}

// Mine lists the owner's scheduled meetings, upcoming or past.
func (r *Meetings) Mine(ctx context.Context, ownerID, scope string) ([]ScheduledMeeting, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if scope == "past" {
		q = q.Where("scheduled_for < ?", time.Now()).Order("scheduled_for DESC")
	} else {
		q = q.Where("scheduled_for >= ?", time.Now()).Order("scheduled_for ASC")
	}
	var recs []ScheduledMeeting
	err := q.Find(&recs).Error
	return recs, err
}

func (r *Meetings) Update(ctx context.Context, ownerID, id string, changes map[string]any) (ScheduledMeeting, error) {
	var rec ScheduledMeeting
	err := r.db.WithContext(ctx).First(&rec, "id = ? AND owner_id = ?", id, ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, domain.NotFound("meeting not found")
	}
	if err != nil {
		return rec, err
	}
	changes["updated_at"] = time.Now()
	if err := r.db.WithContext(ctx).Model(&rec).Updates(changes).Error; err != nil {
		return rec, err
	}
	return rec, nil
}

func (r *Meetings) Cancel(ctx context.Context, ownerID, id string) error {
	res := r.db.WithContext(ctx).Model(&ScheduledMeeting{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(map[string]any{"status": "cancelled", "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("meeting not found")
	}
	return nil
}
