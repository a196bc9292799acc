package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/jbataille/visio/internal/domain"
)

func TestUsernameTakenMapping(t *testing.T) {
	err := usernameTaken(fmt.Errorf("insert user: %w", gorm.ErrDuplicatedKey))
	assert.True(t, domain.IsCode(err, domain.CodeConflict))

	other := errors.New("connection reset")
	assert.Equal(t, other, usernameTaken(other))

	assert.NoError(t, usernameTaken(nil))
}
