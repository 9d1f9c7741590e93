package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("progress", "Save", cause)

	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsConflict(err))
	assert.Equal(t, "progress.Save: storage call failed: connection reset", err.Error())
}

func TestClassifiers(t *testing.T) {
	wrapped := fmt.Errorf("award: %w", ErrStatsVersionStale)

	assert.True(t, IsConflict(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.True(t, IsInvalidInput(ErrBackdatedActivity))
	assert.True(t, IsInvalidInput(ErrPenaltyTooLarge))
	assert.True(t, IsInvalidInput(Invalid("progress", "Validate", "score %d out of range", 120)))
	assert.True(t, IsAlreadyExists(ErrAchievementEarned))
	assert.True(t, IsNotFound(ErrUserStatsNotFound))
	assert.False(t, IsInvalidInput(ErrConflict))
}

func TestNormalizeID(t *testing.T) {
	id, err := NormalizeID("progress", "Validate", "user id", "  u-1 ")
	assert.NoError(t, err)
	assert.Equal(t, "u-1", id)

	_, err = NormalizeID("progress", "Validate", "user id", "   ")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.True(t, IsInvalidInput(err))
}

func TestNewXPAwardedEvent_NegativeIsPenalty(t *testing.T) {
	assert.Equal(t, EventXPAwarded, NewXPAwardedEvent("u", 10, "lesson", 10, 1).EventType())
	assert.Equal(t, EventXPPenalized, NewXPAwardedEvent("u", -10, "hint", 0, 1).EventType())
}
