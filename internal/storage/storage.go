// Package storage holds the durable records behind the coordinator and the
// REST surface: users, meetings, recordings.
package storage

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type UserRecord struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64"`
	PasswordHash string
	Role         string `gorm:"size:16;default:user"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserRecord) TableName() string { return "users" }

// MeetingRecord mirrors an instant meeting's lifecycle; the live session in
// the coordinator stays authoritative while the meeting is open.
type MeetingRecord struct {
	ID        string `gorm:"primaryKey"`
	Title     string
	HostID    string `gorm:"index"`
	Status    string `gorm:"size:16;index"`
	CreatedAt time.Time
	EndedAt   *time.Time
}

func (MeetingRecord) TableName() string { return "instant_meetings" }

type ScheduledMeeting struct {
	ID           string `gorm:"primaryKey"`
	OwnerID      string `gorm:"index"`
	Title        string
	Description  string
	ScheduledFor time.Time
	DurationMin  int
	Password     string
	Status       string            `gorm:"size:16;default:scheduled"`
	Options      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ScheduledMeeting) TableName() string { return "scheduled_meetings" }

type RecordingRecord struct {
	ID         string `gorm:"primaryKey"`
	MeetingID  string `gorm:"index"`
	StartedBy  string `gorm:"index"`
	Type       string `gorm:"size:8"`
	Status     string `gorm:"size:16"`
	StartTime  time.Time
	EndTime    *time.Time
	DurationMS int64
	FilePath   string
	FileSize   int64
}

func (RecordingRecord) TableName() string { return "recordings" }

// Open connects to postgres and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		// Driver errors become gorm sentinels, so unique violations surface
		// as gorm.ErrDuplicatedKey instead of a raw pq error.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(
		&UserRecord{},
		&MeetingRecord{},
		&ScheduledMeeting{},
		&RecordingRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info().Str("module", "storage").Msg("database ready")
	return db, nil
}
