package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayTitle(t *testing.T) {
	cases := []struct {
		name  string
		offer Offer
		want  string
	}{
		{"custom wins", Offer{Title: "Big Burger 2x1", CustomTitle: "🍔 2x1"}, "🍔 2x1"},
		{"blank custom falls back", Offer{Title: "Fries", CustomTitle: "  "}, "Fries"},
		{"no custom", Offer{Title: "Coffee"}, "Coffee"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.offer.DisplayTitle())
		})
	}
}

func TestAvailableAt(t *testing.T) {
	// 2026-10-14 is a Wednesday (index 2).
	wed := time.Date(2026, 10, 14, 12, 30, 0, 0, time.UTC)

	regular := Offer{}
	assert.True(t, regular.AvailableAt(wed))

	lunch := Offer{Special: true, DaysOfWeek: []int{2, 3}, DailyStartTime: "11:00:00", DailyEndTime: "15:00:00"}
	assert.True(t, lunch.AvailableAt(wed))
	assert.False(t, lunch.AvailableAt(wed.Add(4*time.Hour)))
	assert.False(t, lunch.AvailableAt(wed.AddDate(0, 0, 2)))

	night := Offer{Special: true, DailyStartTime: "22:00", DailyEndTime: "02:00"}
	assert.True(t, night.AvailableAt(time.Date(2026, 10, 14, 23, 0, 0, 0, time.UTC)))
	assert.True(t, night.AvailableAt(time.Date(2026, 10, 14, 1, 0, 0, 0, time.UTC)))
	assert.False(t, night.AvailableAt(wed))

	ranged := Offer{Special: true, StartDate: "2026-10-01", EndDate: "2026-10-14"}
	assert.True(t, ranged.AvailableAt(wed))
	assert.False(t, ranged.AvailableAt(wed.AddDate(0, 0, 1)))
	assert.False(t, ranged.AvailableAt(time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC)))
}

func TestMondayIndex(t *testing.T) {
	assert.Equal(t, 0, MondayIndex(time.Monday))
	assert.Equal(t, 6, MondayIndex(time.Sunday))
}
