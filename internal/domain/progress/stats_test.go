package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestUserStats_AddXP(t *testing.T) {
	s := NewUserStats("u1", now)

	res, err := s.AddXP(175)
	require.NoError(t, err)

	assert.Equal(t, int64(175), res.XPAwarded)
	assert.Equal(t, int64(175), s.TotalXP)
	assert.Equal(t, 1, res.OldLevel)
	assert.Equal(t, 2, res.NewLevel)
	assert.True(t, res.LeveledUp)
	assert.NoError(t, s.Validate())

	_, err = s.AddXP(-1)
	assert.True(t, shared.IsInvalidInput(err))
	assert.Equal(t, int64(175), s.TotalXP)
}

func TestUserStats_AddXP_OrderIndependentTotal(t *testing.T) {
	a := NewUserStats("a", now)
	b := NewUserStats("b", now)

	r1, _ := a.AddXP(100)
	r2, _ := a.AddXP(50)
	r3, _ := b.AddXP(50)
	r4, _ := b.AddXP(100)

	assert.Equal(t, a.TotalXP, b.TotalXP)
	assert.Equal(t, a.Level, b.Level)
	assert.True(t, r1.LeveledUp)
	assert.False(t, r2.LeveledUp)
	assert.False(t, r3.LeveledUp)
	assert.True(t, r4.LeveledUp)
}

func TestUserStats_DeductXP(t *testing.T) {
	s := NewUserStats("u1", now)
	_, _ = s.AddXP(120)

	res, err := s.DeductXP(30)
	require.NoError(t, err)
	assert.Equal(t, int64(-30), res.XPAwarded)
	assert.Equal(t, int64(90), s.TotalXP)
	assert.True(t, res.LeveledDown)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, 1, s.Level)

	_, err = s.DeductXP(91)
	assert.ErrorIs(t, err, shared.ErrPenaltyTooLarge)
	assert.Equal(t, int64(90), s.TotalXP)
}

func TestUserStats_CloneIsDeep(t *testing.T) {
	s := NewUserStats("u1", now)
	_, err := s.RecordActivity(timeutil.NewDate(2024, 1, 1))
	require.NoError(t, err)

	c := s.Clone()
	*c.LastActivityDate = timeutil.NewDate(2030, 1, 1)
	assert.Equal(t, timeutil.NewDate(2024, 1, 1), *s.LastActivityDate)
}
