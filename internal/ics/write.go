package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

const (
	// ProductID is written as the calendar PRODID.
	ProductID = "-//ubc-xlsx-to-ics//Course Calendar//EN"

	localLayout = "20060102T150405"
)

// crlf is the RFC 5545 line terminator, independent of the host platform.
var crlf = ical.WithNewLine("\r\n")

// Build assembles the calendar object: header properties, one VTIMEZONE
// for cal.TZID, then the events in order.
func Build(cal *model.Calendar) (*ical.Calendar, error) {
	if cal == nil {
		return nil, errors.New("calendar is nil")
	}
	loc, tzid, err := resolveLocation(cal)
	if err != nil {
		return nil, err
	}

	year, err := referenceYear(cal)
	if err != nil {
		return nil, err
	}

	out := ical.NewCalendar()
	out.SetProductId(ProductID)
	out.SetCalscale("GREGORIAN")
	out.Components = append(out.Components, Timezone(loc, year))

	for i, ev := range cal.Events {
		ve, err := buildEvent(ev, tzid, loc)
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, ev.Summary, err)
		}
		out.Components = append(out.Components, ve)
	}
	return out, nil
}

// Serialize renders cal as RFC 5545 text with CRLF line endings.
func Serialize(cal *model.Calendar) (string, error) {
	out, err := Build(cal)
	if err != nil {
		return "", err
	}
	return out.Serialize(crlf), nil
}

// Write serializes cal to w.
func Write(w io.Writer, cal *model.Calendar) error {
	out, err := Build(cal)
	if err != nil {
		return err
	}
	return out.SerializeTo(w, crlf)
}

func buildEvent(ev model.CalendarEvent, tzid string, loc *time.Location) (*ical.VEvent, error) {
	if ev.UID == "" {
		return nil, errors.New("missing UID")
	}
	if !ev.Start.Before(ev.End) {
		return nil, errors.New("start is not before end")
	}

	tzParam := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{tzid}}

	ve := ical.NewEvent(ev.UID)
	ve.SetDtStampTime(ev.CreatedAt)
	ve.SetSummary(ev.Summary)
	ve.SetProperty(ical.ComponentPropertyDtStart, ev.Start.In(loc).Format(localLayout), tzParam)
	ve.SetProperty(ical.ComponentPropertyDtEnd, ev.End.In(loc).Format(localLayout), tzParam)
	if ev.Recurrence != nil {
		rule, err := RRule(ev.Recurrence, loc)
		if err != nil {
			return nil, err
		}
		ve.AddRrule(rule)
	}
	for _, ex := range ev.Exceptions {
		ve.AddExdate(ex.In(loc).Format(localLayout), tzParam)
	}
	// TEXT values are escaped by the serializer.
	ve.SetLocation(ev.Location)
	ve.SetDescription(ev.Description)
	return ve, nil
}

// RRule renders a weekly recurrence. UNTIL is written as local time in the
// event's zone, matching DTSTART.
func RRule(r *model.Recurrence, loc *time.Location) (string, error) {
	if r.Weekdays.Empty() {
		return "", errors.New("recurrence has no weekdays")
	}
	codes := make([]string, 0, r.Weekdays.Len())
	for _, d := range r.Weekdays.Days() {
		codes = append(codes, d.Code())
	}

	var b strings.Builder
	b.WriteString("FREQ=WEEKLY")
	if r.Interval > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", r.Interval)
	}
	b.WriteString(";BYDAY=" + strings.Join(codes, ","))
	b.WriteString(";UNTIL=" + r.Until.In(loc).Format(localLayout))
	if r.Interval > 1 {
		b.WriteString(";WKST=MO")
	}
	return b.String(), nil
}

func resolveLocation(cal *model.Calendar) (*time.Location, string, error) {
	if cal.Location != nil {
		return cal.Location, cal.Location.String(), nil
	}
	if cal.TZID == "" {
		return nil, "", errors.New("calendar has no timezone")
	}
	loc, err := time.LoadLocation(cal.TZID)
	if err != nil {
		return nil, "", fmt.Errorf("load timezone %q: %w", cal.TZID, err)
	}
	return loc, cal.TZID, nil
}

// referenceYear picks the year whose DST rules are published: the first
// event's year, else the year the calendar was generated.
func referenceYear(cal *model.Calendar) (int, error) {
	for _, ev := range cal.Events {
		if !ev.Start.IsZero() {
			return ev.Start.Year(), nil
		}
	}
	if cal.Generated.IsZero() {
		return 0, errors.New("calendar has no events and no generation time")
	}
	return cal.Generated.Year(), nil
}
