package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jbataille/visio/internal/domain"
)

// Users is the gorm-backed account repository.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users { return &Users{db: db} }

func (r *Users) Create(ctx context.Context, username, passwordHash, role string) (UserRecord, error) {
	rec := UserRecord{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return rec, usernameTaken(err)
	}
	return rec, nil
}

// usernameTaken maps the translated unique-violation sentinel onto the
// coded conflict error the HTTP layer turns into a 409.
func usernameTaken(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.Conflict("username already taken")
	}
	return err
}

func (r *Users) ByUsername(ctx context.Context, username string) (UserRecord, error) {
	var rec UserRecord
	err := r.db.WithContext(ctx).First(&rec, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, domain.NotFound("user not found")
	}
	return rec, err
}

func (r *Users) ByID(ctx context.Context, id string) (UserRecord, error) {
	var rec UserRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, domain.NotFound("user not found")
	}
	return rec, err
}

func (r *Users) UpdateUsername(ctx context.Context, id, username string) error {
	res := r.db.WithContext(ctx).Model(&UserRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"username": username, "updated_at": time.Now()})
	if res.Error != nil {
		return usernameTaken(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("user not found")
	}
	return nil
}

func (r *Users) List(ctx context.Context, limit, offset int) ([]UserRecord, error) {
	var recs []UserRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	return recs, err
}

func (r *Users) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserRecord{}).Count(&count).Error
	return count, err
}
