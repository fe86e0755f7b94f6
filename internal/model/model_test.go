package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekdayCodes(t *testing.T) {
	want := map[Weekday]string{
		Monday: "MO", Tuesday: "TU", Wednesday: "WE", Thursday: "TH",
		Friday: "FR", Saturday: "SA", Sunday: "SU",
	}
	for d, code := range want {
		assert.Equal(t, code, d.Code(), d.Abbrev())
	}
	assert.Equal(t, "", Weekday(7).Code())
}

func TestWeekdayOf(t *testing.T) {
	// 2025-09-01 is a Monday.
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		assert.Equal(t, Weekday(i), WeekdayOf(base.AddDate(0, 0, i)))
	}
}

func TestWeekdaySet(t *testing.T) {
	s := NewWeekdaySet(Friday, Monday, Wednesday, Monday)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []Weekday{Monday, Wednesday, Friday}, s.Days())
	assert.True(t, s.Has(Wednesday))
	assert.False(t, s.Has(Tuesday))
	assert.False(t, s.Empty())
	assert.True(t, WeekdaySet(0).Empty())
	assert.Equal(t, s, s.Add(Weekday(-1)))
}

func TestAtUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Vancouver")
	if err != nil {
		t.Skip("tz database unavailable")
	}
	got := At(time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC), TimeOfDay{Hour: 16}, loc)
	assert.Equal(t, "2025-09-05T16:00:00-07:00", got.Format(time.RFC3339))
}
