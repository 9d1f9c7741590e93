package timeutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesLocation(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)
	instant := time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC)

	assert.Equal(t, NewDate(2024, time.January, 1), DateOf(instant, time.UTC))
	assert.Equal(t, NewDate(2024, time.January, 2), DateOf(instant, almaty))
	assert.Equal(t, NewDate(2024, time.January, 1), DateOf(instant, nil))
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b Date
		want int
	}{
		{"same day", NewDate(2024, 1, 1), NewDate(2024, 1, 1), 0},
		{"next day", NewDate(2024, 1, 1), NewDate(2024, 1, 2), 1},
		{"gap", NewDate(2024, 1, 1), NewDate(2024, 1, 5), 4},
		{"backwards", NewDate(2024, 1, 5), NewDate(2024, 1, 1), -4},
		{"leap day", NewDate(2024, 2, 28), NewDate(2024, 3, 1), 2},
		{"year boundary", NewDate(2023, 12, 31), NewDate(2024, 1, 1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.a, tt.b))
		})
	}
}

func TestDate_DSTDoesNotSkewDays(t *testing.T) {
	ny, err := LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	before := DateOf(time.Date(2024, 3, 9, 23, 30, 0, 0, ny), ny)
	after := DateOf(time.Date(2024, 3, 10, 23, 30, 0, 0, ny), ny)
	assert.Equal(t, 1, DaysBetween(before, after))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", d.String())
	assert.Equal(t, NewDate(2024, 1, 4), d.AddDays(-1))
	assert.True(t, NewDate(2024, 1, 4).Before(d))
	assert.True(t, d.After(NewDate(2024, 1, 4)))

	_, err = ParseDate("05/01/2024")
	assert.Error(t, err)
}

func TestLoadLocation_DefaultsToUTC(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}

func TestIsSafeNotificationTime(t *testing.T) {
	assert.True(t, IsSafeNotificationTime(time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC), time.UTC))
	assert.False(t, IsSafeNotificationTime(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC), time.UTC))
}

func TestDate_JSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Day Date `json:"day"`
	}{NewDate(2024, time.March, 7)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-03-07"}`, string(raw))

	var decoded struct {
		Day Date `json:"day"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, NewDate(2024, time.March, 7), decoded.Day)
}
