package schedule

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

var rruleDays = map[model.Weekday]rrule.Weekday{
	model.Monday:    rrule.MO,
	model.Tuesday:   rrule.TU,
	model.Wednesday: rrule.WE,
	model.Thursday:  rrule.TH,
	model.Friday:    rrule.FR,
	model.Saturday:  rrule.SA,
	model.Sunday:    rrule.SU,
}

// WeekParity counts the Mondays crossed walking from start to d. Week 0 is
// the week containing start.
func WeekParity(start, d time.Time) int {
	return int(mondayOf(d).Sub(mondayOf(start)).Hours() / (24 * 7))
}

func mondayOf(t time.Time) time.Time {
	t = model.Date(t)
	return t.AddDate(0, 0, -int(model.WeekdayOf(t)))
}

// MeetingDates lists every date in [DateStart, DateEnd] the pattern meets
// on, before holidays. Alternate-week patterns keep even-parity weeks only.
func MeetingDates(spec model.MeetingSpec) []time.Time {
	var out []time.Time
	for d := model.Date(spec.DateStart); !d.After(spec.DateEnd); d = d.AddDate(0, 0, 1) {
		if meets(spec, d) {
			out = append(out, d)
		}
	}
	return out
}

// FirstOccurrence is the earliest meeting date on or after DateStart.
func FirstOccurrence(spec model.MeetingSpec) (time.Time, bool) {
	for d := model.Date(spec.DateStart); !d.After(spec.DateEnd); d = d.AddDate(0, 0, 1) {
		if meets(spec, d) {
			return d, true
		}
	}
	return time.Time{}, false
}

func meets(spec model.MeetingSpec, d time.Time) bool {
	if !spec.Weekdays.Has(model.WeekdayOf(d)) {
		return false
	}
	return !spec.AlternateWeeks || WeekParity(spec.DateStart, d)%2 == 0
}

// Occurrences expands an event into its concrete start times: the RRULE
// walked from Start until Until, minus Exceptions.
func Occurrences(ev model.CalendarEvent) []time.Time {
	if ev.Recurrence == nil {
		for _, ex := range ev.Exceptions {
			if ex.Equal(ev.Start) {
				return nil
			}
		}
		return []time.Time{ev.Start}
	}

	days := make([]rrule.Weekday, 0, ev.Recurrence.Weekdays.Len())
	for _, d := range ev.Recurrence.Weekdays.Days() {
		days = append(days, rruleDays[d])
	}
	interval := ev.Recurrence.Interval
	if interval < 1 {
		interval = 1
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  interval,
		Wkst:      rrule.MO,
		Byweekday: days,
		Dtstart:   ev.Start,
		Until:     ev.Recurrence.Until,
	})
	if err != nil {
		return nil
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, ex := range ev.Exceptions {
		set.ExDate(ex)
	}
	return set.All()
}
