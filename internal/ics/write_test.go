package ics

import (
	"strings"
	"testing"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

const vancouverTimezone = `BEGIN:VTIMEZONE
TZID:America/Vancouver
BEGIN:STANDARD
TZOFFSETFROM:-0700
TZOFFSETTO:-0800
TZNAME:PST
DTSTART:19701101T020000
RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU
END:STANDARD
BEGIN:DAYLIGHT
TZOFFSETFROM:-0800
TZOFFSETTO:-0700
TZNAME:PDT
DTSTART:19700308T020000
RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU
END:DAYLIGHT
END:VTIMEZONE
`

func vancouver(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Vancouver")
	require.NoError(t, err)
	return loc
}

// unfold joins folded lines and normalizes line endings to "\n".
func unfold(doc string) string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	return strings.ReplaceAll(doc, "\n ", "")
}

func section(doc, begin, end string) string {
	i := strings.Index(doc, begin)
	j := strings.Index(doc, end)
	if i < 0 || j < 0 {
		return ""
	}
	return doc[i : j+len(end)+1]
}

// generated fixes the VTIMEZONE rule year for calendars without events.
var generated = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func fridayCalendar(t *testing.T) *model.Calendar {
	loc := vancouver(t)
	return &model.Calendar{
		TZID:     "America/Vancouver",
		Location: loc,
		Events: []model.CalendarEvent{{
			UID:         "uid-1@test",
			CreatedAt:   time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
			Summary:     "CPEN 211-101 - Computing Systems I",
			Description: "Instructor: Jane Doe\nTime: Fri 4:00 p.m.-6:00 p.m.",
			Location:    "MCLD, Room 202",
			Start:       time.Date(2025, 9, 5, 16, 0, 0, 0, loc),
			End:         time.Date(2025, 9, 5, 18, 0, 0, 0, loc),
			Recurrence: &model.Recurrence{
				Weekdays: model.NewWeekdaySet(model.Friday),
				Interval: 1,
				Until:    time.Date(2025, 11, 28, 18, 0, 0, 0, loc),
			},
			Exceptions: []time.Time{time.Date(2025, 10, 10, 16, 0, 0, 0, loc)},
		}},
	}
}

func TestTimezoneVancouver(t *testing.T) {
	doc, err := Serialize(&model.Calendar{TZID: "America/Vancouver", Generated: generated})
	require.NoError(t, err)

	got := section(unfold(doc), "BEGIN:VTIMEZONE", "END:VTIMEZONE")
	if diff := cmp.Diff(vancouverTimezone, got); diff != "" {
		t.Errorf("VTIMEZONE mismatch (-want +got):\n%s", diff)
	}
}

func TestTimezoneWithoutDST(t *testing.T) {
	loc, err := time.LoadLocation("America/Regina")
	require.NoError(t, err)

	doc, err := Serialize(&model.Calendar{Location: loc, Generated: generated})
	require.NoError(t, err)
	got := section(unfold(doc), "BEGIN:VTIMEZONE", "END:VTIMEZONE")

	assert.Contains(t, got, "TZID:America/Regina\n")
	assert.Contains(t, got, "TZOFFSETTO:-0600\n")
	assert.Contains(t, got, "TZNAME:CST\n")
	assert.NotContains(t, got, "DAYLIGHT")
}

func TestTimezoneLastSundayRule(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	doc, err := Serialize(&model.Calendar{Location: loc, Generated: generated})
	require.NoError(t, err)
	got := section(unfold(doc), "BEGIN:VTIMEZONE", "END:VTIMEZONE")

	assert.Contains(t, got, "RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU\n")
	assert.Contains(t, got, "RRULE:FREQ=YEARLY;BYMONTH=10;BYDAY=-1SU\n")
	assert.Contains(t, got, "DTSTART:19700329T020000\n")
	assert.Contains(t, got, "DTSTART:19701025T030000\n")
}

func TestSerializeEvent(t *testing.T) {
	doc, err := Serialize(fridayCalendar(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n"), "document must use CRLF")
	assert.True(t, strings.HasSuffix(doc, "END:VCALENDAR\r\n"))

	text := unfold(doc)
	header := text[:strings.Index(text, "BEGIN:VTIMEZONE")]
	assert.Contains(t, header, "VERSION:2.0\n")
	assert.Contains(t, header, "PRODID:"+ProductID+"\n")
	assert.Contains(t, header, "CALSCALE:GREGORIAN\n")

	want := []string{
		"BEGIN:VEVENT",
		"UID:uid-1@test",
		"DTSTAMP:20250801T120000Z",
		"SUMMARY:CPEN 211-101 - Computing Systems I",
		"DTSTART;TZID=America/Vancouver:20250905T160000",
		"DTEND;TZID=America/Vancouver:20250905T180000",
		"RRULE:FREQ=WEEKLY;BYDAY=FR;UNTIL=20251128T180000",
		"EXDATE;TZID=America/Vancouver:20251010T160000",
		`LOCATION:MCLD\, Room 202`,
		`DESCRIPTION:Instructor: Jane Doe\nTime: Fri 4:00 p.m.-6:00 p.m.`,
		"END:VEVENT",
	}
	got := strings.Split(strings.TrimSuffix(section(text, "BEGIN:VEVENT", "END:VEVENT"), "\n"), "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("VEVENT mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	a, err := Serialize(fridayCalendar(t))
	require.NoError(t, err)
	b, err := Serialize(fridayCalendar(t))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSerializeLongLinesFolded(t *testing.T) {
	cal := fridayCalendar(t)
	cal.Events[0].Summary = strings.Repeat("Very Long Course Title ", 8)

	doc, err := Serialize(cal)
	require.NoError(t, err)
	for _, line := range strings.Split(doc, "\r\n") {
		assert.LessOrEqual(t, len(line), 75, line)
	}
	assert.Contains(t, unfold(doc), "SUMMARY:"+cal.Events[0].Summary)
}

func TestRRuleAlternateWeeks(t *testing.T) {
	loc := vancouver(t)
	rule, err := RRule(&model.Recurrence{
		Weekdays: model.NewWeekdaySet(model.Thursday, model.Tuesday),
		Interval: 2,
		Until:    time.Date(2025, 12, 4, 17, 0, 0, 0, loc),
	}, loc)
	require.NoError(t, err)
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=2;BYDAY=TU,TH;UNTIL=20251204T170000;WKST=MO", rule)

	_, err = RRule(&model.Recurrence{}, loc)
	assert.Error(t, err)
}

func TestBuildRejectsBadEvents(t *testing.T) {
	cal := fridayCalendar(t)
	cal.Events[0].UID = ""
	_, err := Build(cal)
	assert.Error(t, err)

	cal = fridayCalendar(t)
	cal.Events[0].End = cal.Events[0].Start
	_, err = Build(cal)
	assert.Error(t, err)

	_, err = Build(&model.Calendar{})
	assert.Error(t, err)
	_, err = Build(nil)
	assert.Error(t, err)
}

func TestSerializedDocumentDecodesIndependently(t *testing.T) {
	doc, err := Serialize(fridayCalendar(t))
	require.NoError(t, err)

	cal, err := goical.NewDecoder(strings.NewReader(doc)).Decode()
	require.NoError(t, err)

	var events []*goical.Component
	for _, child := range cal.Children {
		if child.Name == goical.CompEvent {
			events = append(events, child)
		}
	}
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "uid-1@test", ev.Props.Get(goical.PropUID).Value)

	start, err := ev.Props.Get(goical.PropDateTimeStart).DateTime(time.UTC)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 9, 5, 23, 0, 0, 0, time.UTC)), start.String())

	rset, err := ev.RecurrenceSet(time.UTC)
	require.NoError(t, err)
	require.NotNil(t, rset)
	first := rset.After(start.Add(-time.Second), true)
	assert.True(t, first.Equal(start))
}

func TestTextPropertiesRoundTrip(t *testing.T) {
	const (
		summary     = `CPSC 110-101 - Computation, Programs; and\ Programming`
		location    = "Hugh Dempster Pavilion, Room 110"
		description = "Instructor: Ann, B\nTime: Mon Wed Fri 9:00 a.m.-10:00 a.m."
	)
	cal := fridayCalendar(t)
	cal.Events[0].Summary = summary
	cal.Events[0].Location = location
	cal.Events[0].Description = description

	doc, err := Serialize(cal)
	require.NoError(t, err)

	text := unfold(doc)
	assert.Contains(t, text, `SUMMARY:CPSC 110-101 - Computation\, Programs\; and\\ Programming`+"\n")
	assert.Contains(t, text, `LOCATION:Hugh Dempster Pavilion\, Room 110`+"\n")
	assert.Contains(t, text, `DESCRIPTION:Instructor: Ann\, B\nTime: Mon Wed Fri 9:00 a.m.-10:00 a.m.`+"\n")

	decoded, err := goical.NewDecoder(strings.NewReader(doc)).Decode()
	require.NoError(t, err)
	events := decoded.Events()
	require.Len(t, events, 1)

	for prop, want := range map[string]string{
		goical.PropSummary:     summary,
		goical.PropLocation:    location,
		goical.PropDescription: description,
	} {
		got, err := events[0].Props.Get(prop).Text()
		require.NoError(t, err, prop)
		assert.Equal(t, want, got, prop)
	}

	parsed, err := ParseICS(Source{ID: "generated"}, []byte(doc))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, summary, parsed[0].Summary)
	assert.Equal(t, location, parsed[0].Location)
	assert.Equal(t, description, parsed[0].Description)
}

func TestBuildEmptyCalendarUsesGenerationYear(t *testing.T) {
	_, err := Build(&model.Calendar{TZID: "America/Vancouver"})
	assert.Error(t, err)

	a, err := Serialize(&model.Calendar{TZID: "America/Vancouver", Generated: generated})
	require.NoError(t, err)
	b, err := Serialize(&model.Calendar{TZID: "America/Vancouver", Generated: generated.AddDate(0, 3, 0)})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
