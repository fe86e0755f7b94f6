package holiday

import (
	"context"
	"time"

	"github.com/minjunminji/ubcxlsxtoics/internal/ics"
	appLog "github.com/minjunminji/ubcxlsxtoics/internal/log"
	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

// FeedFetcher is the part of ics.Fetcher used to load holiday feeds.
type FeedFetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// feedOccurrenceCap bounds how many instances of a recurring feed event
// become periods.
const feedOccurrenceCap = 50

// FromOccurrences converts feed occurrences into exclusion periods. All-day
// occurrences cover [start, end); timed ones cover every date they touch.
func FromOccurrences(occs []model.Occurrence) []Period {
	out := make([]Period, 0, len(occs))
	for _, ev := range occs {
		if ev.Start.IsZero() {
			continue
		}
		start := model.Date(ev.Start)
		end := start
		switch {
		case ev.AllDay && ev.End.After(ev.Start):
			end = model.Date(ev.End).AddDate(0, 0, -1)
		case !ev.AllDay && ev.End.After(ev.Start):
			end = model.Date(ev.End.Add(-time.Nanosecond))
		}
		if end.Before(start) {
			end = start
		}
		name := ev.Summary
		if name == "" {
			name = ev.SourceID
		}
		out = append(out, Period{Name: name, Start: start, End: end})
	}
	return out
}

// FromFeeds downloads and parses every source. A feed that cannot be fetched
// or parsed is logged and skipped.
func FromFeeds(ctx context.Context, f FeedFetcher, sources []ics.Source) []Period {
	if len(sources) == 0 {
		return nil
	}
	results, errs := f.FetchAll(ctx, sources)
	if len(errs) > 0 {
		appLog.Warn("some holiday feeds unavailable", "failed", len(errs), "total", len(sources))
	}

	var out []Period
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("holiday feed parse failed", err, "id", res.Source.ID)
			continue
		}
		expanded, err := ics.ExpandOccurrences(events, ics.ExpandConfig{MaxOccurrencesPerEvent: feedOccurrenceCap})
		if err != nil {
			appLog.Error("holiday feed expand failed", err, "id", res.Source.ID)
			continue
		}
		periods := FromOccurrences(expanded.Occurrences)
		appLog.Info("holiday feed loaded", "id", res.Source.ID, "periods", len(periods), "from_cache", res.FromCache)
		out = append(out, periods...)
	}
	return out
}
