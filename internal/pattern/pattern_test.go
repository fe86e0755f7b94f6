package pattern

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseFullLine(t *testing.T) {
	spec, err := Parse("2025-09-05 - 2025-11-28 | Fri | 4:00 p.m. - 6:00 p.m. | MCLD-Floor 2-Room 202")
	require.NoError(t, err)

	assert.Equal(t, date(2025, 9, 5), spec.DateStart)
	assert.Equal(t, date(2025, 11, 28), spec.DateEnd)
	assert.Equal(t, model.NewWeekdaySet(model.Friday), spec.Weekdays)
	assert.Equal(t, model.TimeOfDay{Hour: 16}, spec.TimeStart)
	assert.Equal(t, model.TimeOfDay{Hour: 18}, spec.TimeEnd)
	assert.Equal(t, "MCLD-Floor 2-Room 202", spec.Location)
	assert.False(t, spec.AlternateWeeks)
	assert.Equal(t, "Fri", spec.Raw.Days)
	assert.Equal(t, "4:00 p.m.", spec.Raw.TimeStart)
	assert.Equal(t, "6:00 p.m.", spec.Raw.TimeEnd)
}

func TestParseEnDashDateRange(t *testing.T) {
	a, err := Parse("2025-09-02 - 2025-12-05 | Tue Thu | 9:30 a.m. - 11:00 a.m.")
	require.NoError(t, err)
	b, err := Parse("2025-09-02 – 2025-12-05 | Tue Thu | 9:30 a.m. - 11:00 a.m.")
	require.NoError(t, err)
	c, err := Parse("2025-09-02–2025-12-05 | Tue Thu | 9:30 a.m. - 11:00 a.m.")
	require.NoError(t, err)

	assert.Equal(t, a.DateStart, b.DateStart)
	assert.Equal(t, a.DateEnd, b.DateEnd)
	assert.Equal(t, a.DateEnd, c.DateEnd)
	assert.Equal(t, "", a.Location)
}

func TestParseAlternateWeeks(t *testing.T) {
	spec, err := Parse("2025-09-05 - 2025-10-24 | Fri (Alternate weeks) | 16:00 - 18:00 | Room")
	require.NoError(t, err)
	assert.True(t, spec.AlternateWeeks)
	assert.Equal(t, model.NewWeekdaySet(model.Friday), spec.Weekdays)
	assert.Equal(t, "Fri (Alternate weeks)", spec.Raw.Days)
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		in   string
		want []model.Weekday
	}{
		{"Mon Wed Fri", []model.Weekday{model.Monday, model.Wednesday, model.Friday}},
		{"tue, THU", []model.Weekday{model.Tuesday, model.Thursday}},
		{"Sat Sun", []model.Weekday{model.Saturday, model.Sunday}},
		{"Wednesday", []model.Weekday{model.Wednesday}},
		{"Mon Xyz", []model.Weekday{model.Monday}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			set, _, err := parseDays(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, set.Days())
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want model.TimeOfDay
	}{
		{"4:00 p.m.", model.TimeOfDay{Hour: 16}},
		{"4:00 P.M.", model.TimeOfDay{Hour: 16}},
		{"16:00PM", model.TimeOfDay{Hour: 16}},
		{"16:00", model.TimeOfDay{Hour: 16}},
		{"12:30 p.m.", model.TimeOfDay{Hour: 12, Minute: 30}},
		{"12:15 a.m.", model.TimeOfDay{Hour: 0, Minute: 15}},
		{"9:30AM", model.TimeOfDay{Hour: 9, Minute: 30}},
		{"08:05", model.TimeOfDay{Hour: 8, Minute: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTwelveHourAndDegenerateFormsAgree(t *testing.T) {
	a, err := Parse("2025-09-05 - 2025-11-28 | Fri | 4:00 p.m. - 6:00 p.m.")
	require.NoError(t, err)
	b, err := Parse("2025-09-05 - 2025-11-28 | Fri | 16:00PM-18:00PM")
	require.NoError(t, err)
	assert.Equal(t, a.TimeStart, b.TimeStart)
	assert.Equal(t, a.TimeEnd, b.TimeEnd)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"empty":           "   ",
		"too few fields":  "2025-09-05 - 2025-11-28 | Fri",
		"too many fields": "2025-09-05 - 2025-11-28 | Fri | 4:00 - 5:00 | A | B",
		"bad dates":       "2025-13-40 - 2025-14-50 | Mon | 9:00 - 10:00",
		"reversed dates":  "2025-12-01 - 2025-09-01 | Mon | 9:00 - 10:00",
		"no weekday":      "2025-09-01 - 2025-12-01 | Xyz | 9:00 - 10:00",
		"no time range":   "2025-09-01 - 2025-12-01 | Mon | noon",
		"bad time":        "2025-09-01 - 2025-12-01 | Mon | 9:75 - 10:00",
		"start after end": "2025-09-01 - 2025-12-01 | Mon | 11:00 - 10:00",
		"equal times":     "2025-09-01 - 2025-12-01 | Mon | 10:00 - 10:00",
		"hour too large":  "2025-09-01 - 2025-12-01 | Mon | 24:00 - 25:00",
		"garbage":         "not a pattern",
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			spec, err := Parse(line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnparseable))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.NotEmpty(t, perr.Reason)
			assert.Equal(t, model.MeetingSpec{}, spec)
		})
	}
}

func TestParseBlock(t *testing.T) {
	block := "2025-09-02 - 2025-12-05 | Tue Thu | 9:30 a.m. - 11:00 a.m. | Room A\r\n" +
		"\n" +
		"garbage line\n" +
		"2025-09-03 - 2025-12-03 | Wed | 2:00 p.m. - 3:00 p.m. | Room B\n"

	res := ParseBlock(block)
	require.Len(t, res.Specs, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Room A", res.Specs[0].Location)
	assert.Equal(t, "Room B", res.Specs[1].Location)
	assert.Equal(t, "garbage line", res.Errors[0].Line)
}
