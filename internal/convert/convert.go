// Package convert runs the whole pipeline: schedule rows in, calendar
// document out.
package convert

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/minjunminji/ubcxlsxtoics/internal/clock"
	"github.com/minjunminji/ubcxlsxtoics/internal/holiday"
	"github.com/minjunminji/ubcxlsxtoics/internal/ics"
	appLog "github.com/minjunminji/ubcxlsxtoics/internal/log"
	"github.com/minjunminji/ubcxlsxtoics/internal/model"
	"github.com/minjunminji/ubcxlsxtoics/internal/pattern"
	"github.com/minjunminji/ubcxlsxtoics/internal/schedule"
	"github.com/minjunminji/ubcxlsxtoics/internal/sheet"
)

// DefaultTimezone is the zone the schedule export's local times are in.
const DefaultTimezone = "America/Vancouver"

// maxDiagnostic bounds the detail carried by UnparseableError.
const maxDiagnostic = 200

var (
	ErrNoContent   = errors.New("no file/content provided")
	ErrNoEvents    = errors.New("no events produced")
	ErrUnparseable = errors.New("unparseable input")
)

// UnparseableError carries a bounded diagnostic for input that could not be
// read at all.
type UnparseableError struct {
	Detail string
}

func (e *UnparseableError) Error() string {
	if e.Detail == "" {
		return ErrUnparseable.Error()
	}
	return ErrUnparseable.Error() + ": " + e.Detail
}

func (e *UnparseableError) Unwrap() error {
	return ErrUnparseable
}

// Unparseable wraps err with a diagnostic truncated to a safe length.
func Unparseable(err error) error {
	if err == nil {
		return nil
	}
	return &UnparseableError{Detail: truncate(err.Error(), maxDiagnostic)}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// Options configures a Converter. Zero values select the defaults.
type Options struct {
	Location *time.Location
	Policy   *holiday.Policy
	Clock    clock.Clock
	NewUID   func() string
}

// Stats summarizes one conversion.
type Stats struct {
	Rows         int
	Sections     int
	Lines        int
	SkippedLines int
	Events       int
}

// Converter holds immutable settings; Calendar and ICS may be called
// concurrently.
type Converter struct {
	loc      *time.Location
	clock    clock.Clock
	expander *schedule.Expander
	policy   *holiday.Policy
}

func New(opts Options) (*Converter, error) {
	loc := opts.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %s: %w", DefaultTimezone, err)
		}
	}
	policy := opts.Policy
	if policy == nil {
		policy = holiday.Default()
	}
	c := opts.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	newUID := opts.NewUID
	if newUID == nil {
		newUID = schedule.UIDGenerator(schedule.DefaultUIDDomain)
	}
	return &Converter{
		loc:    loc,
		clock:  c,
		policy: policy,
		expander: &schedule.Expander{
			Location:   loc,
			Exclusions: policy,
			Clock:      c,
			NewUID:     newUID,
		},
	}, nil
}

// Policy returns the holiday policy in effect.
func (c *Converter) Policy() *holiday.Policy {
	return c.policy
}

// Location returns the zone events are generated in.
func (c *Converter) Location() *time.Location {
	return c.loc
}

// Sections turns rows into course sections. Rows without a title or a
// meeting pattern are skipped; lines that fail to parse are dropped and
// counted.
func Sections(rows []model.Row) ([]model.CourseSection, Stats) {
	st := Stats{Rows: len(rows)}
	out := make([]model.CourseSection, 0, len(rows))
	for _, row := range rows {
		title := strings.TrimSpace(row.Section)
		if title == "" {
			title = strings.TrimSpace(row.CourseListing)
		}
		if title == "" || strings.TrimSpace(row.MeetingPatterns) == "" {
			continue
		}

		res := pattern.ParseBlock(row.MeetingPatterns)
		st.Lines += len(res.Specs) + len(res.Errors)
		st.SkippedLines += len(res.Errors)
		for _, perr := range res.Errors {
			appLog.Debug("skipping meeting pattern", "section", title, "line", perr.Line, "reason", perr.Reason)
		}
		if len(res.Specs) == 0 {
			continue
		}
		out = append(out, model.CourseSection{
			Summary:    CleanSummary(title),
			Instructor: strings.TrimSpace(row.Instructor),
			Meetings:   res.Specs,
		})
	}
	st.Sections = len(out)
	return out, st
}

// Calendar converts rows into a calendar model.
func (c *Converter) Calendar(rows []model.Row) (*model.Calendar, Stats, error) {
	if len(rows) == 0 {
		return nil, Stats{}, ErrNoContent
	}

	sections, st := Sections(rows)
	cal := &model.Calendar{TZID: c.loc.String(), Location: c.loc, Generated: c.clock.Now()}
	for _, s := range sections {
		cal.Events = append(cal.Events, c.expander.Expand(s)...)
	}
	st.Events = len(cal.Events)

	appLog.Debug("conversion finished",
		"rows", st.Rows,
		"sections", st.Sections,
		"lines", st.Lines,
		"skipped_lines", st.SkippedLines,
		"events", st.Events,
	)
	if st.Events == 0 {
		return nil, st, ErrNoEvents
	}
	return cal, st, nil
}

// ICS converts rows straight to document bytes.
func (c *Converter) ICS(rows []model.Row) ([]byte, Stats, error) {
	cal, st, err := c.Calendar(rows)
	if err != nil {
		return nil, st, err
	}
	text, err := ics.Serialize(cal)
	if err != nil {
		return nil, st, fmt.Errorf("serialize calendar: %w", err)
	}
	return []byte(text), st, nil
}

// ReadRows reads an uploaded export. Empty input maps to ErrNoContent and
// unreadable input to an UnparseableError.
func ReadRows(name string, data []byte) ([]model.Row, error) {
	if len(data) == 0 {
		return nil, ErrNoContent
	}
	rows, err := sheet.Read(name, data)
	switch {
	case errors.Is(err, sheet.ErrEmpty):
		return nil, ErrNoContent
	case err != nil:
		return nil, Unparseable(err)
	}
	return rows, nil
}

// File converts an uploaded export straight to document bytes.
func (c *Converter) File(name string, data []byte) ([]byte, Stats, error) {
	rows, err := ReadRows(name, data)
	if err != nil {
		return nil, Stats{}, err
	}
	return c.ICS(rows)
}

// Preview decodes a generated document and lists its concrete occurrences
// in the converter's zone.
func (c *Converter) Preview(doc []byte) ([]model.Occurrence, error) {
	events, err := ics.ParseICS(ics.Source{ID: "courses"}, doc)
	if err != nil {
		return nil, fmt.Errorf("parse generated calendar: %w", err)
	}
	res, err := ics.ExpandOccurrences(events, ics.ExpandConfig{DisplayLocation: c.loc})
	if err != nil {
		return nil, fmt.Errorf("expand generated calendar: %w", err)
	}
	if len(res.TruncatedEvents) > 0 {
		appLog.Warn("preview truncated", "events", len(res.TruncatedEvents))
	}
	return res.Occurrences, nil
}

var campusSuffixRe = regexp.MustCompile(`\b([A-Z]{2,5})_[VO](\b|\d)`)

// CleanSummary strips the campus markers the export appends to subject
// codes, e.g. "CPEN_V 211" becomes "CPEN 211" and "CPSC_V110" becomes
// "CPSC110".
func CleanSummary(s string) string {
	return strings.TrimSpace(campusSuffixRe.ReplaceAllString(s, "$1$2"))
}
