package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStart(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "wednesday",
			now:  time.Date(2026, 10, 21, 15, 30, 0, 0, seoul),
			want: time.Date(2026, 10, 19, 0, 0, 0, 0, seoul),
		},
		{
			name: "monday itself",
			now:  time.Date(2026, 10, 19, 0, 0, 1, 0, seoul),
			want: time.Date(2026, 10, 19, 0, 0, 0, 0, seoul),
		},
		{
			name: "sunday belongs to previous week",
			now:  time.Date(2026, 10, 25, 23, 0, 0, 0, seoul),
			want: time.Date(2026, 10, 19, 0, 0, 0, 0, seoul),
		},
		{
			name: "utc instant converted to local day",
			// В UTC еще воскресенье, в Сеуле уже понедельник
			now:  time.Date(2026, 10, 25, 20, 0, 0, 0, time.UTC),
			want: time.Date(2026, 10, 26, 0, 0, 0, 0, seoul),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStart(tt.now, seoul)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestApplyRate(t *testing.T) {
	assert.Equal(t, 40, ApplyRate(4, 10))
	assert.Equal(t, 0, ApplyRate(0, 0))
	assert.Equal(t, 33, ApplyRate(1, 3))
	assert.Equal(t, 67, ApplyRate(2, 3))
	assert.Equal(t, 100, ApplyRate(5, 5))
}
