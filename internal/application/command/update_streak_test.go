package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 15, 0, 0, 0, time.UTC)
}

func TestUpdateStreak_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		then        time.Time
		wantStreak  int
		wantChanged bool
	}{
		{"same day", day(1), 1, false},
		{"next day", day(2), 2, true},
		{"gap resets", day(5), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			first, err := f.streaks.UpdateStreak(ctx, "u1", day(1))
			require.NoError(t, err)
			assert.Equal(t, 1, first.CurrentStreak)
			assert.GreaterOrEqual(t, first.LongestStreak, 1)

			res, err := f.streaks.UpdateStreak(ctx, "u1", tt.then)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStreak, res.CurrentStreak)
			assert.Equal(t, tt.wantChanged, res.StreakChanged)
		})
	}
}

func TestUpdateStreak_RejectsBackdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.streaks.UpdateStreak(ctx, "u1", day(5))
	require.NoError(t, err)

	_, err = f.streaks.UpdateStreak(ctx, "u1", day(4))
	assert.True(t, shared.IsInvalidInput(err))

	stats, err := f.store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", stats.LastActivityDate.String())
	assert.Equal(t, int64(1), stats.Version)
}

func TestUpdateStreak_BrokenStreakPublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []int{1, 2, 3} {
		_, err := f.streaks.UpdateStreak(ctx, "u1", day(d))
		require.NoError(t, err)
	}
	res, err := f.streaks.UpdateStreak(ctx, "u1", day(7))
	require.NoError(t, err)
	assert.True(t, res.StreakBroken)
	assert.Equal(t, 3, res.PreviousStreak)
	assert.Equal(t, 3, res.DaysMissed)
	assert.Equal(t, 3, res.LongestStreak)

	broken := f.events.ofType(shared.EventStreakBroken)
	require.Len(t, broken, 1)
	assert.Equal(t, 3, broken[0].(shared.StreakBrokenEvent).PreviousStreak)
}

func TestUpdateStreak_UsesLocationDays(t *testing.T) {
	f := newFixture(t)
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)
	f.streaks = NewStreakTracker(f.updater, almaty, f.events, nil)
	ctx := context.Background()

	// 2024-01-01 20:00 UTC is already 2024-01-02 in Almaty.
	_, err := f.streaks.UpdateStreak(ctx, "u1", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	res, err := f.streaks.UpdateStreak(ctx, "u1", time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak)
}
