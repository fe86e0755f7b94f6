// Package pattern parses the free-form "Meeting Patterns" text of a course
// schedule export.
//
// A line looks like
//
//	2025-09-02 - 2025-12-05 | Tue Thu (Alternate weeks) | 4:00 p.m. - 5:30 p.m. | DMP-Floor 1-Room 110
//
// and is parsed either completely or not at all.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

// ErrUnparseable is wrapped by every ParseError.
var ErrUnparseable = errors.New("unparseable meeting pattern")

// ParseError reports why a line was rejected.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnparseable.Error(), e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrUnparseable
}

var (
	dateRangeRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s*[-–]\s*(\d{4}-\d{2}-\d{2})$`)
	trailingRe  = regexp.MustCompile(`\([^)]*\)\s*$`)
	timeRangeRe = regexp.MustCompile(`^(.+?)\s*-\s*(.+)$`)
	timeRe      = regexp.MustCompile(`^(\d{1,2}):(\d{2})(am|pm|a|p)?$`)
)

var weekdayNames = map[string]model.Weekday{
	"mon": model.Monday, "monday": model.Monday,
	"tue": model.Tuesday, "tuesday": model.Tuesday,
	"wed": model.Wednesday, "wednesday": model.Wednesday,
	"thu": model.Thursday, "thursday": model.Thursday,
	"fri": model.Friday, "friday": model.Friday,
	"sat": model.Saturday, "saturday": model.Saturday,
	"sun": model.Sunday, "sunday": model.Sunday,
}

// Parse parses one meeting-pattern line. On failure the returned spec is the
// zero value and err is a *ParseError.
func Parse(line string) (model.MeetingSpec, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.MeetingSpec{}, fail(line, "empty line")
	}

	parts := strings.Split(line, "|")
	if len(parts) < 3 || len(parts) > 4 {
		return model.MeetingSpec{}, fail(line, fmt.Sprintf("expected 3 or 4 fields, got %d", len(parts)))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var spec model.MeetingSpec
	var err error

	spec.DateStart, spec.DateEnd, err = parseDateRange(parts[0])
	if err != nil {
		return model.MeetingSpec{}, fail(line, err.Error())
	}

	spec.Weekdays, spec.AlternateWeeks, err = parseDays(parts[1])
	if err != nil {
		return model.MeetingSpec{}, fail(line, err.Error())
	}

	rawStart, rawEnd, err := splitTimeRange(parts[2])
	if err != nil {
		return model.MeetingSpec{}, fail(line, err.Error())
	}
	if spec.TimeStart, err = ParseTime(rawStart); err != nil {
		return model.MeetingSpec{}, fail(line, err.Error())
	}
	if spec.TimeEnd, err = ParseTime(rawEnd); err != nil {
		return model.MeetingSpec{}, fail(line, err.Error())
	}
	if !spec.TimeStart.Before(spec.TimeEnd) {
		return model.MeetingSpec{}, fail(line, fmt.Sprintf("start time %s is not before end time %s", spec.TimeStart, spec.TimeEnd))
	}

	if len(parts) == 4 {
		spec.Location = parts[3]
	}

	spec.Raw = model.RawPattern{
		Line:      line,
		Days:      parts[1],
		TimeStart: rawStart,
		TimeEnd:   rawEnd,
	}
	return spec, nil
}

// BlockResult is the outcome of parsing a multi-line cell.
type BlockResult struct {
	Specs  []model.MeetingSpec
	Errors []*ParseError
}

// ParseBlock parses every non-blank line of a cell. Failed lines are
// collected, never fatal.
func ParseBlock(block string) BlockResult {
	var res BlockResult
	for _, line := range strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		spec, err := Parse(line)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				res.Errors = append(res.Errors, perr)
			}
			continue
		}
		res.Specs = append(res.Specs, spec)
	}
	return res
}

func fail(line, reason string) error {
	return &ParseError{Line: line, Reason: reason}
}

func parseDateRange(s string) (time.Time, time.Time, error) {
	m := dateRangeRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("malformed date range %q", s)
	}
	start, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", m[1])
	}
	end, err := time.Parse("2006-01-02", m[2])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", m[2])
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s precedes start date %s", m[2], m[1])
	}
	return start, end, nil
}

// parseDays reads the weekday token. Any trailing parenthetical marks an
// alternate-week pattern.
func parseDays(s string) (model.WeekdaySet, bool, error) {
	alternate := false
	if loc := trailingRe.FindStringIndex(s); loc != nil {
		alternate = true
		s = s[:loc[0]]
	}

	var set model.WeekdaySet
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	for _, tok := range tokens {
		if d, ok := weekdayNames[strings.ToLower(tok)]; ok {
			set = set.Add(d)
		}
	}
	if set.Empty() {
		return 0, false, fmt.Errorf("no weekday in %q", s)
	}
	return set, alternate, nil
}

func splitTimeRange(s string) (string, string, error) {
	if i := strings.Index(s, " - "); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+3:]), nil
	}
	m := timeRangeRe.FindStringSubmatch(s)
	if m == nil {
		return "", "", fmt.Errorf("malformed time range %q", s)
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), nil
}

// ParseTime reads "4:00 p.m.", "16:00", "9:30AM" and the degenerate
// "16:00PM". An hour above 12 is taken as 24-hour and the suffix is ignored.
func ParseTime(s string) (model.TimeOfDay, error) {
	norm := strings.ToLower(s)
	norm = strings.ReplaceAll(norm, ".", "")
	norm = strings.Join(strings.Fields(norm), "")

	m := timeRe.FindStringSubmatch(norm)
	if m == nil {
		return model.TimeOfDay{}, fmt.Errorf("malformed time %q", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return model.TimeOfDay{}, fmt.Errorf("time out of range %q", s)
	}

	if hour <= 12 {
		switch m[3] {
		case "pm", "p":
			if hour < 12 {
				hour += 12
			}
		case "am", "a":
			if hour == 12 {
				hour = 0
			}
		}
	}
	return model.TimeOfDay{Hour: hour, Minute: minute}, nil
}
