package ics

import (
	"fmt"
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"

	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

// transition describes one yearly UTC-offset change as an RFC 5545 rule.
type transition struct {
	daylight   bool
	name       string
	offsetFrom int
	offsetTo   int
	month      time.Month
	nth        int // 1..4, or -1 for "last"
	weekday    time.Weekday
	hour, min  int
}

// Timezone builds the VTIMEZONE block for loc from the tz database. The
// yearly rules are derived from the transitions observed in refYear and
// anchored in 1970. Zones without daylight time get a single STANDARD block.
func Timezone(loc *time.Location, refYear int) *ical.VTimezone {
	tz := ical.NewTimezone(loc.String())

	trans := yearTransitions(loc, refYear)
	if len(trans) != 2 {
		name, off := time.Date(refYear, time.January, 1, 12, 0, 0, 0, loc).Zone()
		std := tz.AddStandard()
		addOffsetProps(&std.ComponentBase, off, off, name)
		std.AddProperty(ical.ComponentProperty(ical.PropertyDtstart), "19700101T000000")
		return tz
	}

	// STANDARD first, then DAYLIGHT.
	if trans[0].daylight {
		trans[0], trans[1] = trans[1], trans[0]
	}
	for _, tr := range trans {
		var base *ical.ComponentBase
		if tr.daylight {
			dl := &ical.Daylight{}
			tz.Components = append(tz.Components, dl)
			base = &dl.ComponentBase
		} else {
			base = &tz.AddStandard().ComponentBase
		}
		addOffsetProps(base, tr.offsetFrom, tr.offsetTo, tr.name)
		base.AddProperty(ical.ComponentProperty(ical.PropertyDtstart), tr.anchor(1970).Format(localLayout))
		base.AddProperty(ical.ComponentProperty(ical.PropertyRrule), tr.rrule())
	}
	return tz
}

func addOffsetProps(cb *ical.ComponentBase, from, to int, name string) {
	cb.AddProperty(ical.ComponentProperty(ical.PropertyTzoffsetfrom), formatOffset(from))
	cb.AddProperty(ical.ComponentProperty(ical.PropertyTzoffsetto), formatOffset(to))
	cb.AddProperty(ical.ComponentProperty(ical.PropertyTzname), name)
}

// yearTransitions walks the zone bounds of refYear and returns its offset
// changes in chronological order.
func yearTransitions(loc *time.Location, refYear int) []transition {
	out := make([]transition, 0, 2)
	t := time.Date(refYear, time.January, 1, 0, 0, 0, 0, loc)
	for len(out) < 3 {
		_, end := t.ZoneBounds()
		if end.IsZero() || end.Year() != refYear {
			break
		}
		out = append(out, newTransition(end))
		t = end
	}
	return out
}

func newTransition(at time.Time) transition {
	name, to := at.Zone()
	_, from := at.Add(-time.Second).Zone()

	// Wall-clock time just before the change.
	wall := at.UTC().Add(time.Duration(from) * time.Second)
	nth := (wall.Day()-1)/7 + 1
	if wall.Day()+7 > daysIn(wall.Year(), wall.Month()) {
		nth = -1
	}
	return transition{
		daylight:   at.IsDST(),
		name:       name,
		offsetFrom: from,
		offsetTo:   to,
		month:      wall.Month(),
		nth:        nth,
		weekday:    wall.Weekday(),
		hour:       wall.Hour(),
		min:        wall.Minute(),
	}
}

// anchor returns the rule's local onset in the given year.
func (tr transition) anchor(year int) time.Time {
	var d time.Time
	if tr.nth > 0 {
		d = time.Date(year, tr.month, 1, 0, 0, 0, 0, time.UTC)
		for d.Weekday() != tr.weekday {
			d = d.AddDate(0, 0, 1)
		}
		d = d.AddDate(0, 0, 7*(tr.nth-1))
	} else {
		d = time.Date(year, tr.month, daysIn(year, tr.month), 0, 0, 0, 0, time.UTC)
		for d.Weekday() != tr.weekday {
			d = d.AddDate(0, 0, -1)
		}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), tr.hour, tr.min, 0, 0, time.UTC)
}

func (tr transition) rrule() string {
	day := model.Weekday((int(tr.weekday) + 6) % 7).Code()
	return fmt.Sprintf("FREQ=YEARLY;BYMONTH=%d;BYDAY=%d%s", int(tr.month), tr.nth, day)
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// formatOffset renders seconds east of UTC as +HHMM / -HHMM.
func formatOffset(sec int) string {
	sign := '+'
	if sec < 0 {
		sign = '-'
		sec = -sec
	}
	return fmt.Sprintf("%c%02d%02d", sign, sec/3600, (sec%3600)/60)
}
