package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/minjunminji/ubcxlsxtoics/internal/log"
	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

const defaultMaxOccurrencesPerEvent = 1000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone occurrences are converted to. Nil keeps
	// each event's own zone.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound occurrence starts, inclusive. A zero
	// RangeStart or RangeEnd leaves that side open.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single event's expansion.
	MaxOccurrencesPerEvent int
}

// ExpandResult is the sorted list of occurrences plus the UIDs that hit the
// cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed events into concrete occurrences, applying
// RRULE and EXDATE. Results are sorted by start time, then UID.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if !cfg.RangeStart.IsZero() && !cfg.RangeEnd.IsZero() && cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	all := make([]model.Occurrence, 0)
	for _, ev := range events {
		occ, hitCap, err := expandEvent(ev, cfg)
		if err != nil {
			appLog.Error("expand: skipping event", err, "uid", ev.UID, "rrule", ev.RawRRule)
			continue
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Warn("expand: occurrences truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		all = append(all, occ...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Start.Equal(all[j].Start) {
			return all[i].Start.Before(all[j].Start)
		}
		return all[i].UID < all[j].UID
	})
	result.Occurrences = all
	return result, nil
}

func expandEvent(ev ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	if ev.RawRRule == "" {
		if !inRange(ev.Start, cfg) {
			return nil, false, nil
		}
		return []model.Occurrence{makeOccurrence(ev, ev.Start, ev.End, cfg.DisplayLocation)}, false, nil
	}

	starts, hitCap, err := RecurrenceStarts(ev.RawRRule, ev.Start, ev.ExDates, Window{
		From:  cfg.RangeStart,
		To:    cfg.RangeEnd,
		Limit: cfg.MaxOccurrencesPerEvent,
	})
	if err != nil {
		return nil, false, err
	}

	out := make([]model.Occurrence, 0, len(starts))
	dur := ev.End.Sub(ev.Start)
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			e = s.AddDate(0, 0, 1)
		}
		out = append(out, makeOccurrence(ev, s, e, cfg.DisplayLocation))
	}
	return out, hitCap, nil
}

// Window bounds a recurrence walk. Zero From/To leave that side open; Limit
// caps the number of starts returned.
type Window struct {
	From  time.Time
	To    time.Time
	Limit int
}

// RecurrenceStarts evaluates an RRULE value anchored at dtstart, removes
// exdates and returns the starts inside w. Floating UNTIL values are read in
// dtstart's zone. The bool reports whether w.Limit cut the walk short.
func RecurrenceStarts(raw string, dtstart time.Time, exdates []time.Time, w Window) ([]time.Time, bool, error) {
	opt, err := rrule.StrToROptionInLocation(raw, dtstart.Location())
	if err != nil {
		return nil, false, err
	}
	opt.Dtstart = dtstart
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, false, err
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, ex := range exdates {
		set.ExDate(ex.In(dtstart.Location()))
	}

	limit := w.Limit
	if limit <= 0 {
		limit = defaultMaxOccurrencesPerEvent
	}
	out := make([]time.Time, 0)
	next := set.Iterator()
	for t, ok := next(); ok; t, ok = next() {
		if !w.To.IsZero() && t.After(w.To) {
			break
		}
		if !w.From.IsZero() && t.Before(w.From) {
			continue
		}
		if len(out) == limit {
			return out, true, nil
		}
		out = append(out, t)
	}
	return out, false, nil
}

func inRange(t time.Time, cfg ExpandConfig) bool {
	if !cfg.RangeStart.IsZero() && t.Before(cfg.RangeStart) {
		return false
	}
	if !cfg.RangeEnd.IsZero() && t.After(cfg.RangeEnd) {
		return false
	}
	return true
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	if displayLoc != nil {
		start = start.In(displayLoc)
		end = end.In(displayLoc)
	}
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}
