package model

import (
	"fmt"
	"time"
)

// Weekday numbers days Monday=0 through Sunday=6, the order the schedule
// export and RFC 5545 BYDAY lists both use.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var (
	weekdayCodes   = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}
	weekdayAbbrevs = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
)

// Code returns the two-letter RFC 5545 day code.
func (d Weekday) Code() string {
	if !d.Valid() {
		return ""
	}
	return weekdayCodes[d]
}

// Abbrev returns the three-letter form used in meeting patterns.
func (d Weekday) Abbrev() string {
	if !d.Valid() {
		return ""
	}
	return weekdayAbbrevs[d]
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	return d.Abbrev()
}

// WeekdayOf returns the Monday-based weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// WeekdaySet is a bitmask of weekdays.
type WeekdaySet uint8

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

func (s WeekdaySet) Add(d Weekday) WeekdaySet {
	if !d.Valid() {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d Weekday) bool {
	return d.Valid() && s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool {
	return s == 0
}

func (s WeekdaySet) Len() int {
	n := 0
	for d := Monday; d <= Sunday; d++ {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Days lists the members Monday first.
func (s WeekdaySet) Days() []Weekday {
	out := make([]Weekday, 0, 7)
	for d := Monday; d <= Sunday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Minutes() < o.Minutes()
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Date truncates t to a calendar date at midnight UTC. Dates are kept in UTC
// so that day arithmetic never crosses a DST change.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// At combines a calendar date with a time of day in loc.
func At(date time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour, tod.Minute, 0, 0, loc)
}

// RawPattern keeps the untouched tokens of a meeting-pattern line.
type RawPattern struct {
	Line      string
	Days      string
	TimeStart string
	TimeEnd   string
}

// MeetingSpec is one successfully parsed meeting-pattern line.
type MeetingSpec struct {
	DateStart      time.Time // calendar date, see Date
	DateEnd        time.Time // calendar date, inclusive
	Weekdays       WeekdaySet
	TimeStart      TimeOfDay
	TimeEnd        TimeOfDay
	Location       string
	AlternateWeeks bool

	Raw RawPattern
}

// CourseSection is a course section with its parsed meeting lines.
type CourseSection struct {
	Summary    string
	Instructor string
	Meetings   []MeetingSpec
}

// Recurrence is a weekly rule bounded by an inclusive Until.
type Recurrence struct {
	Weekdays WeekdaySet
	Interval int
	Until    time.Time
}

// CalendarEvent is one VEVENT ready for serialization. Start, End, Until and
// Exceptions all carry the calendar's location.
type CalendarEvent struct {
	UID       string
	CreatedAt time.Time

	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time

	Recurrence *Recurrence
	Exceptions []time.Time
}

// Calendar is the full output of one conversion run.
type Calendar struct {
	TZID     string
	Location *time.Location
	// Generated is when the run produced the calendar. It picks the
	// VTIMEZONE rule year when there are no events.
	Generated time.Time
	Events    []CalendarEvent
}

// Row is one record of the schedule export.
type Row struct {
	CourseListing   string
	Section         string
	Instructor      string
	MeetingPatterns string
}

// Occurrence represents a single concrete instance of an event
// after recurrence expansion.
type Occurrence struct {
	SourceID string
	UID      string

	// InstanceKey uniquely identifies one occurrence of a recurring event.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	Start time.Time
	End   time.Time
}
