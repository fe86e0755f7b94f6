// Package schedule turns parsed meeting patterns into calendar events.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minjunminji/ubcxlsxtoics/internal/clock"
	appLog "github.com/minjunminji/ubcxlsxtoics/internal/log"
	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

// DefaultUIDDomain is the right-hand side of generated UIDs.
const DefaultUIDDomain = "ubc-xlsx-to-ics"

// Exclusions is the holiday view the expander needs.
type Exclusions interface {
	IsExcluded(d time.Time) bool
	DatesBetween(from, to time.Time) []time.Time
}

// Expander builds events for course sections. Its fields are read-only
// during expansion, so one Expander may serve concurrent conversions.
type Expander struct {
	Location   *time.Location
	Exclusions Exclusions
	Clock      clock.Clock
	NewUID     func() string
}

// UIDGenerator returns a generator of "<uuid>@domain" identifiers.
func UIDGenerator(domain string) func() string {
	if domain == "" {
		domain = DefaultUIDDomain
	}
	return func() string {
		return uuid.NewString() + "@" + domain
	}
}

// Expand returns the events of every meeting of section, in meeting order.
func (e *Expander) Expand(section model.CourseSection) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(section.Meetings))
	for _, spec := range section.Meetings {
		out = append(out, e.ExpandMeeting(section, spec)...)
	}
	return out
}

// ExpandMeeting builds the events for one meeting line. Normally that is a
// single recurring event; an alternate-week pattern whose first meeting is a
// holiday is emitted as one event per meeting date instead.
func (e *Expander) ExpandMeeting(section model.CourseSection, spec model.MeetingSpec) []model.CalendarEvent {
	first, ok := FirstOccurrence(spec)
	if !ok {
		appLog.Debug("meeting has no occurrence in its date range", "section", section.Summary, "pattern", spec.Raw.Line)
		return nil
	}

	if e.excluded(first) {
		if spec.AlternateWeeks {
			return e.singleEvents(section, spec)
		}
		first = first.AddDate(0, 0, 7)
		if first.After(spec.DateEnd) {
			appLog.Debug("meeting shifted past its end date", "section", section.Summary, "pattern", spec.Raw.Line)
			return nil
		}
	}

	ev := e.newEvent(section, spec, first)
	interval := 1
	if spec.AlternateWeeks {
		interval = 2
	}
	ev.Recurrence = &model.Recurrence{
		Weekdays: spec.Weekdays,
		Interval: interval,
		Until:    model.At(spec.DateEnd, spec.TimeEnd, e.location()),
	}
	ev.Exceptions = e.exceptions(spec, first)

	if len(Occurrences(ev)) == 0 {
		appLog.Debug("meeting has no occurrence after exclusions", "section", section.Summary, "pattern", spec.Raw.Line)
		return nil
	}
	return []model.CalendarEvent{ev}
}

// singleEvents emits one non-recurring event per kept date.
func (e *Expander) singleEvents(section model.CourseSection, spec model.MeetingSpec) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0)
	for _, d := range MeetingDates(spec) {
		if e.excluded(d) {
			continue
		}
		out = append(out, e.newEvent(section, spec, d))
	}
	return out
}

// exceptions lists the excluded dates from first through DateEnd that the
// rule would otherwise produce, at the meeting's start time.
func (e *Expander) exceptions(spec model.MeetingSpec, first time.Time) []time.Time {
	if e.Exclusions == nil {
		return nil
	}
	var out []time.Time
	for _, d := range e.Exclusions.DatesBetween(first, spec.DateEnd) {
		if !spec.Weekdays.Has(model.WeekdayOf(d)) {
			continue
		}
		if spec.AlternateWeeks && WeekParity(spec.DateStart, d)%2 != 0 {
			continue
		}
		out = append(out, model.At(d, spec.TimeStart, e.location()))
	}
	return out
}

func (e *Expander) newEvent(section model.CourseSection, spec model.MeetingSpec, day time.Time) model.CalendarEvent {
	loc := e.location()
	return model.CalendarEvent{
		UID:         e.uid(),
		CreatedAt:   e.now(),
		Summary:     section.Summary,
		Description: Description(section.Instructor, spec),
		Location:    spec.Location,
		Start:       model.At(day, spec.TimeStart, loc),
		End:         model.At(day, spec.TimeEnd, loc),
	}
}

func (e *Expander) excluded(d time.Time) bool {
	return e.Exclusions != nil && e.Exclusions.IsExcluded(d)
}

func (e *Expander) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

func (e *Expander) now() time.Time {
	c := e.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return c.Now().UTC().Truncate(time.Second)
}

func (e *Expander) uid() string {
	if e.NewUID == nil {
		return UIDGenerator(DefaultUIDDomain)()
	}
	return e.NewUID()
}

// Description renders the instructor and the meeting time as written in the
// source line.
func Description(instructor string, spec model.MeetingSpec) string {
	days, start, end := spec.Raw.Days, spec.Raw.TimeStart, spec.Raw.TimeEnd
	if days == "" {
		abbrevs := make([]string, 0, spec.Weekdays.Len())
		for _, d := range spec.Weekdays.Days() {
			abbrevs = append(abbrevs, d.Abbrev())
		}
		days = strings.Join(abbrevs, " ")
	}
	if start == "" || end == "" {
		start, end = spec.TimeStart.String(), spec.TimeEnd.String()
	}
	return fmt.Sprintf("Instructor: %s\nTime: %s %s-%s", instructor, days, start, end)
}
