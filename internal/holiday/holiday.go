// Package holiday holds the dates on which recurring meetings are cancelled.
package holiday

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

// Period is a named, inclusive range of excluded dates. A single holiday has
// Start equal to End.
type Period struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Policy answers whether a calendar date is excluded. It is read-only once
// built and safe for concurrent use.
type Policy struct {
	periods []Period
	names   map[time.Time]string
}

// NewPolicy builds a policy from periods. Periods with End before Start are
// treated as single dates.
func NewPolicy(periods ...Period) *Policy {
	p := &Policy{
		periods: make([]Period, 0, len(periods)),
		names:   make(map[time.Time]string),
	}
	for _, per := range periods {
		p.add(per)
	}
	return p
}

func (p *Policy) add(per Period) {
	per.Start = model.Date(per.Start)
	per.End = model.Date(per.End)
	if per.End.Before(per.Start) {
		per.End = per.Start
	}
	p.periods = append(p.periods, per)
	for d := per.Start; !d.After(per.End); d = d.AddDate(0, 0, 1) {
		if _, ok := p.names[d]; !ok {
			p.names[d] = per.Name
		}
	}
}

// With returns a new policy extended by extra periods.
func (p *Policy) With(extra ...Period) *Policy {
	all := make([]Period, 0, len(p.Periods())+len(extra))
	all = append(all, p.Periods()...)
	all = append(all, extra...)
	return NewPolicy(all...)
}

// IsExcluded reports whether the calendar date of d is excluded.
func (p *Policy) IsExcluded(d time.Time) bool {
	_, ok := p.Lookup(d)
	return ok
}

// Lookup returns the period name covering d.
func (p *Policy) Lookup(d time.Time) (string, bool) {
	if p == nil {
		return "", false
	}
	name, ok := p.names[model.Date(d)]
	return name, ok
}

// DatesBetween lists excluded dates in [from, to], ascending.
func (p *Policy) DatesBetween(from, to time.Time) []time.Time {
	if p == nil {
		return nil
	}
	from, to = model.Date(from), model.Date(to)
	out := make([]time.Time, 0)
	for d := range p.names {
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Periods returns a copy of the configured periods.
func (p *Policy) Periods() []Period {
	if p == nil {
		return nil
	}
	out := make([]Period, len(p.periods))
	copy(out, p.periods)
	return out
}

// Len is the number of distinct excluded dates.
func (p *Policy) Len() int {
	if p == nil {
		return 0
	}
	return len(p.names)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Default is the built-in single-day exclusion table.
func Default() *Policy {
	return NewPolicy(Period{Name: "Labour Day", Start: day(2025, 9, 1), End: day(2025, 9, 1)})
}

// Breaks are the multi-day term breaks enabled with skip_breaks.
func Breaks() []Period {
	return []Period{
		{Name: "Winter Break", Start: day(2025, 12, 21), End: day(2026, 1, 1)},
		{Name: "Reading Week", Start: day(2026, 2, 16), End: day(2026, 2, 20)},
	}
}

// ParsePeriod builds a period from config strings in YYYY-MM-DD form.
// An empty end means a single day.
func ParsePeriod(name, start, end string) (Period, error) {
	if start == "" {
		return Period{}, errors.New("holiday start date is empty")
	}
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return Period{}, fmt.Errorf("holiday %q: invalid start: %w", name, err)
	}
	e := s
	if end != "" {
		e, err = time.Parse("2006-01-02", end)
		if err != nil {
			return Period{}, fmt.Errorf("holiday %q: invalid end: %w", name, err)
		}
		if e.Before(s) {
			return Period{}, fmt.Errorf("holiday %q: end %s precedes start %s", name, end, start)
		}
	}
	return Period{Name: name, Start: s, End: e}, nil
}
